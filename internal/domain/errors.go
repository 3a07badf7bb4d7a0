package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks an upstream 401. It is never surfaced to callers
// directly: the auth-retry wrapper either recovers it with a refresh or maps
// it to AuthExpiredError.
var ErrUnauthorized = errors.New("platform: unauthorized")

// AuthExchangeError indicates the authorization-code exchange was rejected
// upstream (expired, reused, or mismatched code). Terminal: the user must
// restart the authorization flow.
type AuthExchangeError struct {
	Reason string
	Err    error
}

func (e *AuthExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth exchange failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth exchange failed: %s", e.Reason)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// RefreshError indicates the refresh token itself is invalid or expired.
// Terminal: never retried, the user must reconnect. Reason carries the
// upstream description for the user-facing message.
type RefreshError struct {
	Reason string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh rejected: %s", e.Reason)
}

// AuthExpiredError indicates the access token was rejected and refresh failed
// or was unavailable. Same remediation as RefreshError.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("authentication expired: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// MediaValidationError is a client-detectable violation of the media type,
// size, or batch composition rules. Detected before any network call.
type MediaValidationError struct {
	Rule   string
	Detail string
}

func (e *MediaValidationError) Error() string {
	return fmt.Sprintf("media rejected (%s): %s", e.Rule, e.Detail)
}

// PlatformPostError is an upstream publish rejection for a reason other than
// auth. Surfaced with the upstream message, not retried.
type PlatformPostError struct {
	StatusCode int
	Message    string
}

func (e *PlatformPostError) Error() string {
	return fmt.Sprintf("platform rejected post (status %d): %s", e.StatusCode, e.Message)
}

// PartialThreadFailure reports a thread that failed mid-chain. PostedIDs are
// the platform IDs created before the failing item; they are never retracted.
type PartialThreadFailure struct {
	PostedIDs []string
	Err       error
}

func (e *PartialThreadFailure) Error() string {
	return fmt.Sprintf("thread stopped after %d posts: %v", len(e.PostedIDs), e.Err)
}

func (e *PartialThreadFailure) Unwrap() error { return e.Err }
