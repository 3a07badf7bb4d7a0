package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

func newTestClient(tokenURL, tweetURL, meURL string) *Client {
	c := NewClient(Credentials{ClientID: "client", ClientSecret: "secret"}, nil)
	return c.WithEndpoints(tokenURL, tweetURL, meURL, "")
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "the-code", r.PostForm.Get("code"))
		require.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))
		require.NotEmpty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "access",
			"refresh_token": "refresh",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	pair, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier", "http://localhost/cb")
	require.NoError(t, err)
	require.Equal(t, "access", pair.AccessToken)
	require.Equal(t, "refresh", pair.RefreshToken)
}

func TestExchangeCode_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Value passed for the authorization code was invalid.",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	_, err := c.ExchangeCode(context.Background(), "reused-code", "v", "http://localhost/cb")
	var exchangeErr *domain.AuthExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	require.Contains(t, exchangeErr.Reason, "authorization code")
}

func TestRefreshToken_DeadTokenIsRefreshError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_request",
			"error_description": "Refresh token has expired.",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	_, err := c.RefreshToken(context.Background(), "stale")
	var refreshErr *domain.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	require.Equal(t, "Refresh token has expired.", refreshErr.Reason)
}

func TestRefreshToken_KeepsOldRefreshWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "new-access"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	pair, err := c.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", pair.AccessToken)
	require.Equal(t, "old-refresh", pair.RefreshToken)
}

func TestPublishOne(t *testing.T) {
	var got tweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "111"}})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	pair := domain.TokenPair{AccessToken: "access"}

	id, err := c.PublishOne(context.Background(), pair, domain.Post{Text: "hello"}, "")
	require.NoError(t, err)
	require.Equal(t, "111", id)
	require.Nil(t, got.Reply)
	require.Nil(t, got.Media)

	post := domain.Post{Text: "part two", Media: &domain.MediaHandle{PlatformMediaID: "m-9"}}
	_, err = c.PublishOne(context.Background(), pair, post, "111")
	require.NoError(t, err)
	require.NotNil(t, got.Reply)
	require.Equal(t, "111", got.Reply.InReplyToTweetID)
	require.Equal(t, []string{"m-9"}, got.Media.MediaIDs)
}

func TestPublishOne_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	_, err := c.PublishOne(context.Background(), domain.TokenPair{AccessToken: "expired"}, domain.Post{Text: "x"}, "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPublishOne_UpstreamReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "You are not allowed to create a Tweet with duplicate content."})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	_, err := c.PublishOne(context.Background(), domain.TokenPair{AccessToken: "a"}, domain.Post{Text: "dup"}, "")
	var postErr *domain.PlatformPostError
	require.ErrorAs(t, err, &postErr)
	require.Equal(t, http.StatusForbidden, postErr.StatusCode)
	require.Contains(t, postErr.Message, "duplicate content")
}

func TestFetchIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "42", "username": "crossposter", "name": "Cross Poster"},
		})
	}))
	defer srv.Close()

	c := newTestClient("", "", srv.URL)
	identity, err := c.FetchIdentity(context.Background(), domain.TokenPair{AccessToken: "access"})
	require.NoError(t, err)
	require.Equal(t, "crossposter", identity.Handle)
}

func TestFetchIdentity_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient("", "", srv.URL)
	_, err := c.FetchIdentity(context.Background(), domain.TokenPair{AccessToken: "expired"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUploadMedia_NotConfigured(t *testing.T) {
	c := NewClient(Credentials{ClientID: "client", ClientSecret: "secret"}, nil)
	_, err := c.UploadMedia(context.Background(), []byte("bytes"), "image/jpeg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OAuth 1.0a")
}
