package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/adapter/twitter"
	"github.com/NEARBuilders/crosspost/internal/config"
	"github.com/NEARBuilders/crosspost/internal/domain"
	"github.com/NEARBuilders/crosspost/internal/media"
	"github.com/NEARBuilders/crosspost/internal/oauth"
	"github.com/NEARBuilders/crosspost/internal/publish"
	"github.com/NEARBuilders/crosspost/internal/session"
)

// TwitterHandler serves the connection lifecycle and direct platform
// operations: connect/disconnect, the OAuth callback, status, posting, and
// media upload.
type TwitterHandler struct {
	cfg       config.Config
	flow      *oauth.FlowManager
	client    *twitter.Client
	refresher session.TokenRefresher
	thread    *publish.ThreadPublisher
	logger    *zap.Logger
}

// NewTwitterHandler wires the handler.
func NewTwitterHandler(cfg config.Config, flow *oauth.FlowManager, client *twitter.Client, refresher session.TokenRefresher, thread *publish.ThreadPublisher, logger *zap.Logger) *TwitterHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &TwitterHandler{
		cfg:       cfg,
		flow:      flow,
		client:    client,
		refresher: refresher,
		thread:    thread,
		logger:    logger,
	}
}

// Connect begins the authorization flow: it generates the PKCE session,
// parks verifier and state in short-lived cookies, and hands the authorize
// URL to the client for the redirect.
func (h *TwitterHandler) Connect(c *gin.Context) {
	authURL, sess, err := h.flow.BeginAuthorization()
	if err != nil {
		h.logger.Error("begin authorization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize Twitter authentication"})
		return
	}

	setSessionCookies(c, sess)
	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}

// Disconnect drops every auth cookie. Local-only: the provider-side grant is
// not revoked.
func (h *TwitterHandler) Disconnect(c *gin.Context) {
	clearAllAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Callback completes the authorization flow. Validation failures are
// terminal for the pending session; the browser always lands back on the
// app root, with either the connected handle or the failure reason in the
// query.
func (h *TwitterHandler) Callback(c *gin.Context) {
	query := oauth.CallbackQuery{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	result := h.flow.ValidateCallback(query, readSessionCookies(c))
	if !result.Valid {
		h.logger.Warn("oauth callback rejected", zap.String("reason", result.Reason))
		clearSessionCookies(c)
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(result.Reason))
		return
	}

	pair, err := h.flow.CompleteAuthorization(c.Request.Context(), result.Code, oauth.Session{
		CodeVerifier: result.CodeVerifier,
	})
	if err != nil {
		h.logger.Error("token exchange failed", zap.Error(err))
		clearSessionCookies(c)
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape("Failed to complete Twitter authentication"))
		return
	}

	store := newCookieTokenStore(c)
	store.Set(pair)
	clearSessionCookies(c)

	// The handle is decoration on the landing redirect; failing to fetch it
	// must not fail the connection.
	redirect := "/?connected=true"
	if identity, err := h.client.FetchIdentity(c.Request.Context(), pair); err == nil {
		redirect += "&handle=" + url.QueryEscape(identity.Handle)
	} else {
		h.logger.Warn("identity fetch after connect failed", zap.Error(err))
	}
	c.Redirect(http.StatusFound, redirect)
}

// Status reports whether a connection exists and, when possible, the
// connected handle. An expired session downgrades to disconnected and the
// stale cookies are dropped.
func (h *TwitterHandler) Status(c *gin.Context) {
	store := newCookieTokenStore(c)
	if _, ok := store.Get(); !ok {
		c.JSON(http.StatusOK, gin.H{"isConnected": false, "handle": nil})
		return
	}

	result, err := session.WithAuthRetry(c.Request.Context(), store, h.refresher,
		func(ctx context.Context, pair domain.TokenPair) (twitter.Identity, error) {
			return h.client.FetchIdentity(ctx, pair)
		})
	if err != nil {
		var expired *domain.AuthExpiredError
		if errors.As(err, &expired) {
			clearAllAuthCookies(c)
			c.JSON(http.StatusOK, gin.H{"isConnected": false, "handle": nil})
			return
		}
		h.logger.Warn("identity fetch failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"isConnected": true, "handle": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"isConnected": true, "handle": result.Value.Handle})
}

// Tweet publishes a batch as a reply chain under the caller's connection.
func (h *TwitterHandler) Tweet(c *gin.Context) {
	var req struct {
		Posts domain.PostBatch `json:"posts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid posts array is required"})
		return
	}
	if err := req.Posts.ValidateForPublish(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid posts array is required"})
		return
	}

	store := newCookieTokenStore(c)
	if _, ok := store.Get(); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated with Twitter"})
		return
	}

	result, err := session.WithAuthRetry(c.Request.Context(), store, h.refresher,
		func(ctx context.Context, pair domain.TokenPair) ([]string, error) {
			return h.thread.PublishThread(ctx, pair, req.Posts)
		})
	if err != nil {
		h.respondPublishError(c, err)
		return
	}

	body := gin.H{"success": true, "data": result.Value}
	if result.Refreshed {
		// Cookies already carry the rotated pair; the body copy lets
		// non-cookie clients persist it too.
		body["tokens"] = result.Tokens
	}
	c.JSON(http.StatusOK, body)
}

// Upload receives one media file and stages it with the platform, returning
// the media ID to attach to a post.
func (h *TwitterHandler) Upload(c *gin.Context) {
	store := newCookieTokenStore(c)
	if _, ok := store.Get(); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated with Twitter"})
		return
	}

	if !h.cfg.UploadCredentialsConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Server is not configured for media uploads. OAuth 1.0a credentials are missing.",
		})
		return
	}

	file, header, err := c.Request.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No media file provided"})
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := media.ValidateFile(mimeType, header.Size); err != nil {
		respondMediaError(c, err)
		return
	}

	// The client reports what the batch already carries so the composition
	// rules can be checked before any bytes go upstream.
	comp := media.Composition{
		StaticImages:    formCount(c, "attachedImages"),
		VideoOrAnimated: formCount(c, "attachedVideos"),
	}
	if err := media.ValidateAddition(comp, media.Classify(mimeType)); err != nil {
		respondMediaError(c, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, media.MaxVideoBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read media file"})
		return
	}

	mediaID, err := h.client.UploadMedia(c.Request.Context(), data, mimeType)
	if err != nil {
		h.logger.Error("media upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload media: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mediaId": mediaID})
}

func respondMediaError(c *gin.Context, err error) {
	var validation *domain.MediaValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Detail, "rule": validation.Rule})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func formCount(c *gin.Context, field string) int {
	n, err := strconv.Atoi(c.PostForm(field))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (h *TwitterHandler) respondPublishError(c *gin.Context, err error) {
	var (
		expired *domain.AuthExpiredError
		partial *domain.PartialThreadFailure
		apiErr  *domain.PlatformPostError
	)
	switch {
	case errors.As(err, &expired):
		clearAllAuthCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated with Twitter"})
	case errors.As(err, &partial):
		h.logger.Warn("thread partially published", zap.Int("posted", len(partial.PostedIDs)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   fmt.Sprintf("Thread partially posted: %d of the posts went through", len(partial.PostedIDs)),
			"postIds": partial.PostedIDs,
		})
	case errors.As(err, &apiErr):
		h.logger.Warn("platform rejected post", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send tweet"})
	default:
		h.logger.Error("publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send tweet"})
	}
}
