package publish

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

type recordedCall struct {
	text      string
	inReplyTo string
}

type fakeItemPublisher struct {
	calls  []recordedCall
	failAt int // index that errors; -1 for never
	err    error
}

func (f *fakeItemPublisher) PublishOne(_ context.Context, _ domain.TokenPair, post domain.Post, inReplyTo string) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, recordedCall{text: post.Text, inReplyTo: inReplyTo})
	if idx == f.failAt {
		return "", f.err
	}
	return fmt.Sprintf("id-%d", idx), nil
}

func batchOf(texts ...string) domain.PostBatch {
	batch := make(domain.PostBatch, 0, len(texts))
	for _, t := range texts {
		batch = append(batch, domain.Post{Text: t})
	}
	return batch
}

func TestPublishThreadSinglePost(t *testing.T) {
	fake := &fakeItemPublisher{failAt: -1}
	tp := NewThreadPublisher(fake, zap.NewNop())

	ids, err := tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, batchOf("solo"))
	require.NoError(t, err)
	require.Equal(t, []string{"id-0"}, ids)
	require.Len(t, fake.calls, 1)
	require.Empty(t, fake.calls[0].inReplyTo, "a single post must not reference a parent")
}

func TestPublishThreadChainsReplies(t *testing.T) {
	fake := &fakeItemPublisher{failAt: -1}
	tp := NewThreadPublisher(fake, zap.NewNop())

	ids, err := tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, batchOf("a", "b", "c"))
	require.NoError(t, err)
	require.Equal(t, []string{"id-0", "id-1", "id-2"}, ids)

	require.Empty(t, fake.calls[0].inReplyTo)
	require.Equal(t, "id-0", fake.calls[1].inReplyTo)
	require.Equal(t, "id-1", fake.calls[2].inReplyTo)
}

func TestPublishThreadStopsAtFirstFailure(t *testing.T) {
	upstream := errors.New("rate limited")
	fake := &fakeItemPublisher{failAt: 2, err: upstream}
	tp := NewThreadPublisher(fake, zap.NewNop())

	ids, err := tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, batchOf("a", "b", "c", "d"))
	require.Error(t, err)
	require.Equal(t, []string{"id-0", "id-1"}, ids)
	require.Len(t, fake.calls, 3, "items past the failure must not be attempted")

	var partial *domain.PartialThreadFailure
	require.ErrorAs(t, err, &partial)
	require.Equal(t, []string{"id-0", "id-1"}, partial.PostedIDs)
	require.ErrorIs(t, err, upstream)
}

func TestPublishThreadFirstItemFailure(t *testing.T) {
	upstream := errors.New("forbidden")
	fake := &fakeItemPublisher{failAt: 0, err: upstream}
	tp := NewThreadPublisher(fake, zap.NewNop())

	ids, err := tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, batchOf("a", "b"))
	require.ErrorIs(t, err, upstream)
	require.Empty(t, ids)
	require.Len(t, fake.calls, 1)

	var partial *domain.PartialThreadFailure
	require.False(t, errors.As(err, &partial), "nothing posted means no partial failure")
}

func TestPublishThreadRejectsInvalidBatch(t *testing.T) {
	fake := &fakeItemPublisher{failAt: -1}
	tp := NewThreadPublisher(fake, zap.NewNop())

	_, err := tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, domain.PostBatch{})
	require.ErrorIs(t, err, domain.ErrEmptyBatch)

	_, err = tp.PublishThread(context.Background(), domain.TokenPair{AccessToken: "at"}, batchOf("ok", ""))
	require.ErrorIs(t, err, domain.ErrEmptyPostText)
	require.Empty(t, fake.calls, "validation failures must not reach the platform")
}
