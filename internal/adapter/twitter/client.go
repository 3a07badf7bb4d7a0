package twitter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// AuthorizeURL is where the user grants access; the PKCE flow redirects
// there with the challenge and state attached.
const AuthorizeURL = "https://twitter.com/i/oauth2/authorize"

const (
	defaultTokenURL  = "https://api.twitter.com/2/oauth2/token"
	defaultTweetURL  = "https://api.twitter.com/2/tweets"
	defaultMeURL     = "https://api.twitter.com/2/users/me"
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// Identity is the connected account as reported by the platform.
type Identity struct {
	ID     string
	Handle string
	Name   string
}

// Credentials holds the app-level secrets for both auth schemes the platform
// requires: OAuth 2.0 for the user-context API, OAuth 1.0a for media uploads.
type Credentials struct {
	ClientID     string
	ClientSecret string

	ConsumerKey    string
	ConsumerSecret string
	UploadToken    string
	UploadSecret   string
}

// Client issues authenticated calls against the platform API. A 401 from any
// user-context call is reported as domain.ErrUnauthorized so the auth-retry
// wrapper can attempt exactly one refresh.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	uploader   *http.Client

	tokenURL  string
	tweetURL  string
	meURL     string
	uploadURL string
}

// NewClient constructs the platform client. The uploader is only wired when
// all OAuth 1.0a credentials are present; UploadMedia fails fast otherwise.
func NewClient(creds Credentials, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		creds:      creds,
		httpClient: httpClient,
		tokenURL:   defaultTokenURL,
		tweetURL:   defaultTweetURL,
		meURL:      defaultMeURL,
		uploadURL:  defaultUploadURL,
	}
	if creds.ConsumerKey != "" && creds.ConsumerSecret != "" && creds.UploadToken != "" && creds.UploadSecret != "" {
		oauthCfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
		token := oauth1.NewToken(creds.UploadToken, creds.UploadSecret)
		c.uploader = oauthCfg.Client(oauth1.NoContext, token)
		c.uploader.Timeout = 2 * time.Minute
	}
	return c
}

// WithEndpoints overrides the API endpoints. Used by tests against httptest
// servers.
func (c *Client) WithEndpoints(tokenURL, tweetURL, meURL, uploadURL string) *Client {
	if tokenURL != "" {
		c.tokenURL = tokenURL
	}
	if tweetURL != "" {
		c.tweetURL = tweetURL
	}
	if meURL != "" {
		c.meURL = meURL
	}
	if uploadURL != "" {
		c.uploadURL = uploadURL
	}
	return c
}

// ExchangeCode swaps an authorization code plus PKCE verifier for a token
// pair.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (domain.TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.creds.ClientID)
	data.Set("code_verifier", codeVerifier)

	pair, status, upstream, err := c.tokenGrant(ctx, data)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if status >= 300 {
		return domain.TokenPair{}, &domain.AuthExchangeError{Reason: upstream}
	}
	return pair, nil
}

// RefreshToken exchanges the refresh token for a new pair. A 4xx means the
// refresh token itself is dead and maps to RefreshError; anything else is a
// transport-level failure.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.creds.ClientID)

	pair, status, upstream, err := c.tokenGrant(ctx, data)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if status >= 500 {
		return domain.TokenPair{}, fmt.Errorf("token refresh: upstream status %d", status)
	}
	if status >= 300 {
		return domain.TokenPair{}, &domain.RefreshError{Reason: upstream}
	}
	// Some responses omit the rotated refresh token; keep the old one so the
	// connection survives.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

func (c *Client) tokenGrant(ctx context.Context, data url.Values) (domain.TokenPair, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return domain.TokenPair{}, 0, "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.creds.ClientID, c.creds.ClientSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TokenPair{}, 0, "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.TokenPair{}, 0, "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return domain.TokenPair{}, resp.StatusCode, upstreamOAuthReason(body, resp.StatusCode), nil
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.TokenPair{}, 0, "", fmt.Errorf("decode token response: %w", err)
	}
	return domain.TokenPair{AccessToken: raw.AccessToken, RefreshToken: raw.RefreshToken}, resp.StatusCode, "", nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

// PublishOne posts a single item, optionally as a reply to a previous post,
// and returns the created platform post ID.
func (c *Client) PublishOne(ctx context.Context, pair domain.TokenPair, post domain.Post, inReplyTo string) (string, error) {
	payload := tweetRequest{Text: post.Text}
	if inReplyTo != "" {
		payload.Reply = &tweetReply{InReplyToTweetID: inReplyTo}
	}
	if post.HasMedia() {
		payload.Media = &tweetMedia{MediaIDs: []string{post.Media.PlatformMediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tweetURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tweet request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read tweet response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("publish: %w", domain.ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		return "", &domain.PlatformPostError{
			StatusCode: resp.StatusCode,
			Message:    upstreamAPIReason(respBody, resp.StatusCode),
		}
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if result.Data.ID == "" {
		return "", &domain.PlatformPostError{StatusCode: resp.StatusCode, Message: "response missing post id"}
	}
	return result.Data.ID, nil
}

// FetchIdentity loads the connected user's handle.
func (c *Client) FetchIdentity(ctx context.Context, pair domain.TokenPair) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.meURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read identity response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return Identity{}, fmt.Errorf("identity: %w", domain.ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		return Identity{}, fmt.Errorf("identity failed: status=%d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w", err)
	}
	return Identity{ID: result.Data.ID, Handle: result.Data.Username, Name: result.Data.Name}, nil
}

// UploadMedia pushes one media file through the v1.1 upload endpoint and
// returns the assigned media ID. Requires the OAuth 1.0a uploader.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	if c.uploader == nil {
		return "", fmt.Errorf("media uploads not configured: OAuth 1.0a credentials are missing")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploader.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, upstreamAPIReason(body, resp.StatusCode))
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.MediaIDString == "" {
		return "", fmt.Errorf("upload response missing media id")
	}
	return result.MediaIDString, nil
}

func basicAuth(id, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(id + ":" + secret))
}

// upstreamOAuthReason extracts the error_description of an OAuth error body.
func upstreamOAuthReason(body []byte, status int) string {
	var raw struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		switch {
		case raw.ErrorDescription != "":
			return raw.ErrorDescription
		case raw.Error != "":
			return raw.Error
		}
	}
	return fmt.Sprintf("upstream status %d", status)
}

// upstreamAPIReason extracts the detail/title of a v2 API error body, or the
// v1.1 errors array.
func upstreamAPIReason(body []byte, status int) string {
	var raw struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		switch {
		case raw.Detail != "":
			return raw.Detail
		case raw.Title != "":
			return raw.Title
		case len(raw.Errors) > 0 && raw.Errors[0].Message != "":
			return raw.Errors[0].Message
		}
	}
	return fmt.Sprintf("upstream status %d", status)
}
