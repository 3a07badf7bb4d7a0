package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

func newTestFlowManager(exchanger Exchanger) *FlowManager {
	return NewFlowManager(FlowConfig{
		AuthorizeURL: "https://twitter.com/i/oauth2/authorize",
		ClientID:     "client-id",
		RedirectURI:  "http://localhost:3000/api/twitter/callback",
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
	}, exchanger, zap.NewNop())
}

func TestBeginAuthorization(t *testing.T) {
	m := newTestFlowManager(nil)

	authURL, session, err := m.BeginAuthorization()
	require.NoError(t, err)
	require.NotEmpty(t, session.CodeVerifier)
	require.NotEmpty(t, session.State)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, session.State, q.Get("state"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, "tweet.read tweet.write users.read offline.access", q.Get("scope"))

	sum := sha256.Sum256([]byte(session.CodeVerifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), q.Get("code_challenge"))
}

func TestBeginAuthorization_FreshSessionPerCall(t *testing.T) {
	m := newTestFlowManager(nil)

	_, first, err := m.BeginAuthorization()
	require.NoError(t, err)
	_, second, err := m.BeginAuthorization()
	require.NoError(t, err)
	require.NotEqual(t, first.State, second.State)
	require.NotEqual(t, first.CodeVerifier, second.CodeVerifier)
}

func TestValidateCallback(t *testing.T) {
	m := newTestFlowManager(nil)
	goodCookies := SessionCookies{CodeVerifier: "verifier", State: "A"}

	tests := []struct {
		name    string
		query   CallbackQuery
		cookies SessionCookies
		valid   bool
		reason  string
	}{
		{
			name:    "upstream denial wins over everything",
			query:   CallbackQuery{Error: "access_denied", Code: "c", State: "A"},
			cookies: goodCookies,
			reason:  ReasonAccessDenied,
		},
		{
			name:    "missing code",
			query:   CallbackQuery{State: "A"},
			cookies: goodCookies,
			reason:  ReasonMissingCode,
		},
		{
			name:    "missing state",
			query:   CallbackQuery{Code: "c"},
			cookies: goodCookies,
			reason:  ReasonMissingCode,
		},
		{
			name:    "missing session cookies",
			query:   CallbackQuery{Code: "c", State: "A"},
			cookies: SessionCookies{},
			reason:  ReasonInvalidSession,
		},
		{
			name:    "state mismatch regardless of code",
			query:   CallbackQuery{Code: "c", State: "A"},
			cookies: SessionCookies{CodeVerifier: "verifier", State: "B"},
			reason:  ReasonInvalidState,
		},
		{
			name:    "happy path",
			query:   CallbackQuery{Code: "c", State: "A"},
			cookies: goodCookies,
			valid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.ValidateCallback(tt.query, tt.cookies)
			require.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.Equal(t, tt.reason, result.Reason)
				return
			}
			require.Equal(t, "c", result.Code)
			require.Equal(t, "verifier", result.CodeVerifier)
		})
	}
}

func TestCompleteAuthorization(t *testing.T) {
	exchanger := &fakeExchanger{
		pair: domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
	}
	m := newTestFlowManager(exchanger)

	pair, err := m.CompleteAuthorization(context.Background(), "code", Session{CodeVerifier: "verifier"})
	require.NoError(t, err)
	require.Equal(t, "access", pair.AccessToken)
	require.Equal(t, "verifier", exchanger.gotVerifier)
}

func TestCompleteAuthorization_UpstreamReject(t *testing.T) {
	exchanger := &fakeExchanger{
		exchangeErr: &domain.AuthExchangeError{Reason: "invalid_grant"},
	}
	m := newTestFlowManager(exchanger)

	_, err := m.CompleteAuthorization(context.Background(), "expired-code", Session{CodeVerifier: "v"})
	var exchangeErr *domain.AuthExchangeError
	require.ErrorAs(t, err, &exchangeErr)
}

func TestRefresh(t *testing.T) {
	exchanger := &fakeExchanger{
		pair: domain.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"},
	}
	m := newTestFlowManager(exchanger)

	pair, err := m.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", pair.AccessToken)
	require.Equal(t, "new-refresh", pair.RefreshToken)
}

func TestRefresh_DeadToken(t *testing.T) {
	exchanger := &fakeExchanger{
		refreshErr: &domain.RefreshError{Reason: "refresh token expired"},
	}
	m := newTestFlowManager(exchanger)

	_, err := m.Refresh(context.Background(), "stale")
	var refreshErr *domain.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	require.Contains(t, refreshErr.Reason, "expired")
}

func TestRefresh_EmptyToken(t *testing.T) {
	m := newTestFlowManager(&fakeExchanger{})
	_, err := m.Refresh(context.Background(), "  ")
	var refreshErr *domain.RefreshError
	require.ErrorAs(t, err, &refreshErr)
}

type fakeExchanger struct {
	pair        domain.TokenPair
	exchangeErr error
	refreshErr  error
	gotVerifier string
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code, codeVerifier, redirectURI string) (domain.TokenPair, error) {
	f.gotVerifier = codeVerifier
	if f.exchangeErr != nil {
		return domain.TokenPair{}, f.exchangeErr
	}
	if code == "" {
		return domain.TokenPair{}, fmt.Errorf("missing code")
	}
	return f.pair, nil
}

func (f *fakeExchanger) RefreshToken(_ context.Context, refreshToken string) (domain.TokenPair, error) {
	if f.refreshErr != nil {
		return domain.TokenPair{}, f.refreshErr
	}
	return f.pair, nil
}
