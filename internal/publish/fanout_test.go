package publish

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/config"
	"github.com/NEARBuilders/crosspost/internal/domain"
)

func TestFanoutFullSuccess(t *testing.T) {
	c := NewCoordinator(config.Destinations{NearSocialEnabled: true, TwitterEnabled: true}, zap.NewNop())

	protocol := ProtocolPublisherFunc(func(context.Context, domain.PostBatch) error { return nil })
	platform := PlatformPublisherFunc(func(context.Context, domain.PostBatch) ([]string, error) {
		return []string{"id-0", "id-1"}, nil
	})

	res := c.Publish(context.Background(), batchOf("a", "b"), protocol, platform)
	require.Equal(t, OutcomeFull, res.Outcome())
	require.True(t, res.PlatformOK)
	require.True(t, res.ProtocolOK)
	require.Equal(t, []string{"id-0", "id-1"}, res.PlatformPostIDs)
	require.Empty(t, res.Errors)
}

func TestFanoutOneSideFailsIsPartial(t *testing.T) {
	c := NewCoordinator(config.Destinations{NearSocialEnabled: true, TwitterEnabled: true}, zap.NewNop())

	boom := errors.New("transaction rejected")
	protocol := ProtocolPublisherFunc(func(context.Context, domain.PostBatch) error { return boom })
	platform := PlatformPublisherFunc(func(context.Context, domain.PostBatch) ([]string, error) {
		return []string{"id-0"}, nil
	})

	res := c.Publish(context.Background(), batchOf("a"), protocol, platform)
	require.Equal(t, OutcomePartial, res.Outcome())
	require.True(t, res.PlatformOK)
	require.False(t, res.ProtocolOK)
	require.Len(t, res.Errors, 1)
	require.ErrorIs(t, res.Errors[0], boom)
}

func TestFanoutBothFail(t *testing.T) {
	c := NewCoordinator(config.Destinations{NearSocialEnabled: true, TwitterEnabled: true}, zap.NewNop())

	protocol := ProtocolPublisherFunc(func(context.Context, domain.PostBatch) error { return errors.New("a") })
	platform := PlatformPublisherFunc(func(context.Context, domain.PostBatch) ([]string, error) {
		return nil, errors.New("b")
	})

	res := c.Publish(context.Background(), batchOf("a"), protocol, platform)
	require.Equal(t, OutcomeFailure, res.Outcome())
	require.Len(t, res.Errors, 2)
}

func TestFanoutDisabledDestinationIsSkipped(t *testing.T) {
	c := NewCoordinator(config.Destinations{NearSocialEnabled: false, TwitterEnabled: true}, zap.NewNop())

	var protocolCalls atomic.Int32
	protocol := ProtocolPublisherFunc(func(context.Context, domain.PostBatch) error {
		protocolCalls.Add(1)
		return nil
	})
	platform := PlatformPublisherFunc(func(context.Context, domain.PostBatch) ([]string, error) {
		return []string{"id-0"}, nil
	})

	res := c.Publish(context.Background(), batchOf("a"), protocol, platform)
	require.Equal(t, OutcomeFull, res.Outcome())
	require.False(t, res.ProtocolEnabled)
	require.Zero(t, protocolCalls.Load(), "disabled destination must never be invoked")
}

func TestFanoutNoDestinationsEnabled(t *testing.T) {
	c := NewCoordinator(config.Destinations{}, zap.NewNop())

	res := c.Publish(context.Background(), batchOf("a"), nil, nil)
	require.Equal(t, OutcomeFailure, res.Outcome())
	require.Len(t, res.Errors, 1)
}

func TestFanoutSlowSideDoesNotBlockDispatch(t *testing.T) {
	c := NewCoordinator(config.Destinations{NearSocialEnabled: true, TwitterEnabled: true}, zap.NewNop())

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	protocol := ProtocolPublisherFunc(func(context.Context, domain.PostBatch) error {
		started <- struct{}{}
		<-release
		return nil
	})
	platform := PlatformPublisherFunc(func(context.Context, domain.PostBatch) ([]string, error) {
		started <- struct{}{}
		<-release
		return []string{"id-0"}, nil
	})

	done := make(chan Result, 1)
	go func() {
		done <- c.Publish(context.Background(), batchOf("a"), protocol, platform)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("destinations were not dispatched concurrently")
		}
	}
	close(release)

	res := <-done
	require.Equal(t, OutcomeFull, res.Outcome())
}
