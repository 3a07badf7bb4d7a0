package publish

import (
	"context"

	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// ItemPublisher posts one item, optionally as a reply. The Twitter adapter
// implements it.
type ItemPublisher interface {
	PublishOne(ctx context.Context, pair domain.TokenPair, post domain.Post, inReplyTo string) (string, error)
}

// ThreadPublisher posts an ordered batch as a reply chain: the first item
// stands alone, every later item replies to the platform post created just
// before it.
type ThreadPublisher struct {
	client ItemPublisher
	logger *zap.Logger
}

// NewThreadPublisher wires the publisher.
func NewThreadPublisher(client ItemPublisher, logger *zap.Logger) *ThreadPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &ThreadPublisher{client: client, logger: logger}
}

// PublishThread posts the batch in order and returns the created platform
// post IDs. On the first failure it stops: later items are never attempted
// and earlier posts are never retracted (the platform has no atomic
// multi-post primitive). The returned PartialThreadFailure carries the IDs
// that did get created so the caller can report exactly how many succeeded.
func (p *ThreadPublisher) PublishThread(ctx context.Context, pair domain.TokenPair, batch domain.PostBatch) ([]string, error) {
	if err := batch.ValidateForPublish(); err != nil {
		return nil, err
	}

	postIDs := make([]string, 0, len(batch))
	lastID := ""
	for i, post := range batch {
		id, err := p.client.PublishOne(ctx, pair, post, lastID)
		if err != nil {
			p.logger.Warn("thread publish stopped",
				zap.Int("failed_index", i),
				zap.Int("posted", len(postIDs)),
				zap.Error(err),
			)
			if len(postIDs) > 0 {
				return postIDs, &domain.PartialThreadFailure{PostedIDs: postIDs, Err: err}
			}
			return nil, err
		}
		postIDs = append(postIDs, id)
		lastID = id
	}
	return postIDs, nil
}
