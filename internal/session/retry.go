package session

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// TokenRefresher exchanges a refresh token for a new pair. The OAuth flow
// manager implements it.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// Refresher collapses concurrent refresh attempts for the same refresh token
// into one upstream call. Concurrent publishes that each hit a 401 would
// otherwise race each other and invalidate the rotated token.
type Refresher struct {
	upstream TokenRefresher
	group    singleflight.Group
}

// NewRefresher wraps the upstream refresher with a single-flight guard.
func NewRefresher(upstream TokenRefresher) *Refresher {
	return &Refresher{upstream: upstream}
}

// Refresh performs (or joins) the refresh for the given token.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	v, err, _ := r.group.Do(refreshToken, func() (any, error) {
		return r.upstream.Refresh(ctx, refreshToken)
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return v.(domain.TokenPair), nil
}

// Result tags the outcome of an authenticated call made through WithAuthRetry.
type Result[T any] struct {
	Value T
	// Refreshed is true when a transparent token refresh happened during the
	// call; the caller must persist the new pair to the client.
	Refreshed bool
	// Tokens is the pair that produced the value, refreshed or not.
	Tokens domain.TokenPair
}

// WithAuthRetry runs an authenticated call with the single-retry contract:
// a 401 triggers exactly one refresh followed by one retry with the new
// token. A failed refresh, or a 401 on the retried call, surfaces as
// AuthExpiredError wrapping the original rejection. Every other error passes
// through untouched.
func WithAuthRetry[T any](ctx context.Context, store Store, refresher TokenRefresher, call func(ctx context.Context, pair domain.TokenPair) (T, error)) (Result[T], error) {
	var zero Result[T]

	pair, ok := store.Get()
	if !ok {
		return zero, &domain.AuthExpiredError{Err: errors.New("no token pair available")}
	}

	value, err := call(ctx, pair)
	if err == nil {
		return Result[T]{Value: value, Tokens: pair}, nil
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		return zero, err
	}
	// A failure after partial side effects is never retried, even on 401:
	// rerunning the call would duplicate what already went through.
	var partial *domain.PartialThreadFailure
	if errors.As(err, &partial) {
		return zero, err
	}

	fresh, refreshErr := refresher.Refresh(ctx, pair.RefreshToken)
	if refreshErr != nil {
		return zero, &domain.AuthExpiredError{Err: err}
	}
	store.Set(fresh)

	value, err = call(ctx, fresh)
	if err == nil {
		return Result[T]{Value: value, Refreshed: true, Tokens: fresh}, nil
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return zero, &domain.AuthExpiredError{Err: err}
	}
	return zero, err
}
