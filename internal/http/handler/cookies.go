package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NEARBuilders/crosspost/internal/domain"
	"github.com/NEARBuilders/crosspost/internal/oauth"
)

// Cookie names shared with the web client. Tokens are HttpOnly so page
// scripts never see them; the verifier/state pair only lives between the
// authorize redirect and the callback.
const (
	accessTokenCookie  = "twitter_access_token"
	refreshTokenCookie = "twitter_refresh_token"
	verifierCookie     = "code_verifier"
	stateCookie        = "oauth_state"
)

// The verifier/state cookies only need to survive the trip to the provider
// and back.
const sessionCookieMaxAge = 600

// cookieTokenStore adapts the request's cookies to the token store contract.
// One instance serves one request; writes become Set-Cookie headers on the
// response.
type cookieTokenStore struct {
	c *gin.Context
}

func newCookieTokenStore(c *gin.Context) *cookieTokenStore {
	return &cookieTokenStore{c: c}
}

func (s *cookieTokenStore) Get() (domain.TokenPair, bool) {
	access, err := s.c.Cookie(accessTokenCookie)
	if err != nil || access == "" {
		return domain.TokenPair{}, false
	}
	refresh, _ := s.c.Cookie(refreshTokenCookie)
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, true
}

func (s *cookieTokenStore) Set(pair domain.TokenPair) {
	setCookie(s.c, accessTokenCookie, pair.AccessToken, 0)
	setCookie(s.c, refreshTokenCookie, pair.RefreshToken, 0)
}

func (s *cookieTokenStore) Clear() {
	expireCookie(s.c, accessTokenCookie)
	expireCookie(s.c, refreshTokenCookie)
}

func setSessionCookies(c *gin.Context, sess oauth.Session) {
	setCookie(c, verifierCookie, sess.CodeVerifier, sessionCookieMaxAge)
	setCookie(c, stateCookie, sess.State, sessionCookieMaxAge)
}

func readSessionCookies(c *gin.Context) oauth.SessionCookies {
	verifier, _ := c.Cookie(verifierCookie)
	state, _ := c.Cookie(stateCookie)
	return oauth.SessionCookies{CodeVerifier: verifier, State: state}
}

func clearSessionCookies(c *gin.Context) {
	expireCookie(c, verifierCookie)
	expireCookie(c, stateCookie)
}

func clearAllAuthCookies(c *gin.Context) {
	expireCookie(c, accessTokenCookie)
	expireCookie(c, refreshTokenCookie)
	clearSessionCookies(c)
}

func setCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func expireCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
