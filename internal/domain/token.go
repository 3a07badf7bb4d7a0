package domain

import "strings"

// TokenPair holds the platform access/refresh tokens for one connection.
// Created on a successful OAuth callback, replaced in place whenever a
// refresh succeeds, deleted on explicit disconnect. The platform does not
// report an expiry; expiration is discovered by a 401 on use.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether the pair carries a usable access token.
func (t TokenPair) Valid() bool {
	return strings.TrimSpace(t.AccessToken) != ""
}
