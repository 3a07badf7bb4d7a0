package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Exchanger performs the outbound token-endpoint calls of the flow. The
// Twitter adapter implements it; tests substitute a fake.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (domain.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// Session is the short-lived PKCE state for one authorization round-trip.
// The caller persists it as HttpOnly cookies; a new authorization overwrites
// any prior unconsumed session.
type Session struct {
	CodeVerifier string
	State        string
	CreatedAt    time.Time
}

// CallbackQuery carries the provider callback query parameters.
type CallbackQuery struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// SessionCookies carries the verifier/state cookie values present on the
// callback request. Empty strings mean the cookie was absent.
type SessionCookies struct {
	CodeVerifier string
	State        string
}

// Callback validation failure reasons, in check order. Each is terminal for
// that callback: the session is discarded and the user sees the error.
const (
	ReasonAccessDenied   = "Access was denied"
	ReasonMissingCode    = "Missing authorization code"
	ReasonInvalidSession = "Invalid session state"
	ReasonInvalidState   = "Invalid OAuth state"
)

// ValidationResult is the outcome of checking a provider callback against the
// stored session cookies.
type ValidationResult struct {
	Valid        bool
	Reason       string
	Description  string
	Code         string
	CodeVerifier string
}

// FlowConfig captures the static parameters of the authorization flow.
type FlowConfig struct {
	AuthorizeURL string
	ClientID     string
	RedirectURI  string
	Scopes       []string
}

// FlowManager drives the OAuth 2.0 PKCE authorization-code flow: link
// generation, callback validation, code exchange, and refresh.
type FlowManager struct {
	cfg       FlowConfig
	exchanger Exchanger
	logger    *zap.Logger
}

// NewFlowManager wires the flow manager.
func NewFlowManager(cfg FlowConfig, exchanger Exchanger, logger *zap.Logger) *FlowManager {
	if logger == nil {
		logger = zap.L()
	}
	return &FlowManager{cfg: cfg, exchanger: exchanger, logger: logger}
}

// BeginAuthorization generates a PKCE verifier and state and builds the
// authorization redirect URL. Pure value generation: nothing is persisted
// here, the caller stores the returned session as cookies.
func (m *FlowManager) BeginAuthorization() (string, Session, error) {
	state, err := secureRandomString(32)
	if err != nil {
		return "", Session{}, fmt.Errorf("generate state: %w", err)
	}
	verifier, err := secureRandomString(64)
	if err != nil {
		return "", Session{}, fmt.Errorf("generate pkce verifier: %w", err)
	}

	authURL, err := url.Parse(m.cfg.AuthorizeURL)
	if err != nil {
		return "", Session{}, fmt.Errorf("parse authorize url: %w", err)
	}

	params := authURL.Query()
	params.Set("response_type", "code")
	params.Set("client_id", m.cfg.ClientID)
	params.Set("redirect_uri", m.cfg.RedirectURI)
	params.Set("scope", strings.Join(m.cfg.Scopes, " "))
	params.Set("state", state)
	params.Set("code_challenge", pkceChallenge(verifier))
	params.Set("code_challenge_method", "S256")
	authURL.RawQuery = params.Encode()

	session := Session{
		CodeVerifier: verifier,
		State:        state,
		CreatedAt:    time.Now().UTC(),
	}
	return authURL.String(), session, nil
}

// ValidateCallback checks the provider callback, in order: upstream denial,
// missing code/state, missing session cookies, then the CSRF state
// comparison. The first failure wins and is terminal.
func (m *FlowManager) ValidateCallback(query CallbackQuery, cookies SessionCookies) ValidationResult {
	if query.Error != "" {
		return ValidationResult{
			Valid:       false,
			Reason:      ReasonAccessDenied,
			Description: fmt.Sprintf("%s: %s", query.Error, query.ErrorDescription),
		}
	}
	if query.Code == "" || query.State == "" {
		return ValidationResult{Valid: false, Reason: ReasonMissingCode}
	}
	if cookies.CodeVerifier == "" || cookies.State == "" {
		return ValidationResult{Valid: false, Reason: ReasonInvalidSession}
	}
	if query.State != cookies.State {
		return ValidationResult{Valid: false, Reason: ReasonInvalidState}
	}
	return ValidationResult{
		Valid:        true,
		Code:         query.Code,
		CodeVerifier: cookies.CodeVerifier,
	}
}

// CompleteAuthorization exchanges the authorization code plus the original
// verifier for a token pair.
func (m *FlowManager) CompleteAuthorization(ctx context.Context, code string, session Session) (domain.TokenPair, error) {
	pair, err := m.exchanger.ExchangeCode(ctx, code, session.CodeVerifier, m.cfg.RedirectURI)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !pair.Valid() {
		return domain.TokenPair{}, &domain.AuthExchangeError{Reason: "empty access token in exchange response"}
	}
	return pair, nil
}

// Refresh exchanges the refresh token for a new pair. A RefreshError from the
// exchanger means the refresh token itself is dead; the caller must prompt a
// reconnect, never retry.
func (m *FlowManager) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.TokenPair{}, &domain.RefreshError{Reason: "no refresh token"}
	}
	pair, err := m.exchanger.RefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !pair.Valid() {
		return domain.TokenPair{}, &domain.RefreshError{Reason: "empty access token in refresh response"}
	}
	m.logger.Debug("access token refreshed")
	return pair, nil
}

func secureRandomString(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
