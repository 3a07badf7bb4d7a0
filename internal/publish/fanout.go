package publish

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/config"
	"github.com/NEARBuilders/crosspost/internal/domain"
)

// ProtocolPublisher is the blockchain social protocol destination. It has no
// native thread concept; the batch is published as one document.
type ProtocolPublisher interface {
	PublishBatch(ctx context.Context, batch domain.PostBatch) error
}

// PlatformPublisher is the microblogging destination: the batch goes out as a
// reply chain and the created post IDs come back.
type PlatformPublisher interface {
	PublishThread(ctx context.Context, batch domain.PostBatch) ([]string, error)
}

// ProtocolPublisherFunc adapts a closure into a ProtocolPublisher.
type ProtocolPublisherFunc func(ctx context.Context, batch domain.PostBatch) error

func (f ProtocolPublisherFunc) PublishBatch(ctx context.Context, batch domain.PostBatch) error {
	return f(ctx, batch)
}

// PlatformPublisherFunc adapts a closure into a PlatformPublisher.
type PlatformPublisherFunc func(ctx context.Context, batch domain.PostBatch) ([]string, error)

func (f PlatformPublisherFunc) PublishThread(ctx context.Context, batch domain.PostBatch) ([]string, error) {
	return f(ctx, batch)
}

// Outcome is the aggregate fan-out verdict.
type Outcome int

const (
	// OutcomeFailure: no enabled destination succeeded.
	OutcomeFailure Outcome = iota
	// OutcomePartial: at least one enabled destination succeeded, at least
	// one failed. The caller must tell the user which side went through so
	// they do not re-post to it.
	OutcomePartial
	// OutcomeFull: every enabled destination succeeded.
	OutcomeFull
)

// Result aggregates the per-destination outcomes of one fan-out.
type Result struct {
	PlatformEnabled bool
	ProtocolEnabled bool
	PlatformOK      bool
	ProtocolOK      bool
	PlatformPostIDs []string
	Errors          []error
}

// Outcome folds the per-destination flags into the three-way verdict.
func (r Result) Outcome() Outcome {
	succeeded, failed := 0, 0
	if r.PlatformEnabled {
		if r.PlatformOK {
			succeeded++
		} else {
			failed++
		}
	}
	if r.ProtocolEnabled {
		if r.ProtocolOK {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case succeeded > 0 && failed == 0:
		return OutcomeFull
	case succeeded > 0:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}

// Coordinator fans one batch out to every enabled destination concurrently.
// Destination enablement is fixed at construction; the coordinator never
// reads ambient configuration.
type Coordinator struct {
	dests  config.Destinations
	logger *zap.Logger
}

// NewCoordinator wires the fan-out coordinator.
func NewCoordinator(dests config.Destinations, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.L()
	}
	return &Coordinator{dests: dests, logger: logger}
}

// Publish dispatches the same batch to both destinations without awaiting one
// before starting the other, then waits for all. One destination's failure
// never cancels the other; Publish never returns an error, only the
// aggregated Result.
func (c *Coordinator) Publish(ctx context.Context, batch domain.PostBatch, protocol ProtocolPublisher, platform PlatformPublisher) Result {
	result := Result{
		PlatformEnabled: c.dests.TwitterEnabled,
		ProtocolEnabled: c.dests.NearSocialEnabled,
	}

	if !result.PlatformEnabled && !result.ProtocolEnabled {
		result.Errors = append(result.Errors, errors.New("no destinations enabled"))
		return result
	}

	var (
		wg          sync.WaitGroup
		platformIDs []string
		platformErr error
		protocolErr error
	)

	if result.PlatformEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if platform == nil {
				platformErr = errors.New("platform destination unavailable")
				return
			}
			platformIDs, platformErr = platform.PublishThread(ctx, batch)
		}()
	}

	if result.ProtocolEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if protocol == nil {
				protocolErr = errors.New("protocol destination unavailable")
				return
			}
			protocolErr = protocol.PublishBatch(ctx, batch)
		}()
	}

	wg.Wait()

	result.PlatformPostIDs = platformIDs
	if result.PlatformEnabled {
		result.PlatformOK = platformErr == nil
		if platformErr != nil {
			result.Errors = append(result.Errors, platformErr)
		}
	}
	if result.ProtocolEnabled {
		result.ProtocolOK = protocolErr == nil
		if protocolErr != nil {
			result.Errors = append(result.Errors, protocolErr)
		}
	}

	c.logger.Info("fanout complete",
		zap.Bool("platform_ok", result.PlatformOK),
		zap.Bool("protocol_ok", result.ProtocolOK),
		zap.Int("platform_posts", len(platformIDs)),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}
