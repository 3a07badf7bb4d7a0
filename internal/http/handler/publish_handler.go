package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
	"github.com/NEARBuilders/crosspost/internal/publish"
	"github.com/NEARBuilders/crosspost/internal/session"
)

// PublishHandler fans one batch out to every enabled destination.
type PublishHandler struct {
	coordinator *publish.Coordinator
	protocol    publish.ProtocolPublisher
	thread      *publish.ThreadPublisher
	refresher   session.TokenRefresher
	logger      *zap.Logger
}

// NewPublishHandler wires the handler. protocol may be nil when the protocol
// destination is disabled.
func NewPublishHandler(coordinator *publish.Coordinator, protocol publish.ProtocolPublisher, thread *publish.ThreadPublisher, refresher session.TokenRefresher, logger *zap.Logger) *PublishHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &PublishHandler{
		coordinator: coordinator,
		protocol:    protocol,
		thread:      thread,
		refresher:   refresher,
		logger:      logger,
	}
}

type destinationStatus struct {
	Success bool     `json:"success"`
	PostIDs []string `json:"postIds,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Publish sends the batch to both destinations and reports per-destination
// outcomes. A half-success returns 207 so the client can tell the user which
// side is already live and must not be re-sent.
func (h *PublishHandler) Publish(c *gin.Context) {
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
	platform := publish.PlatformPublisherFunc(func(ctx context.Context, batch domain.PostBatch) ([]string, error) {
		result, err := session.WithAuthRetry(ctx, store, h.refresher,
			func(ctx context.Context, pair domain.TokenPair) ([]string, error) {
				return h.thread.PublishThread(ctx, pair, batch)
			})
		if err != nil {
			// A mid-thread failure still created posts; surface their IDs
			// so the client can report what is already live.
			var partial *domain.PartialThreadFailure
			if errors.As(err, &partial) {
				return partial.PostedIDs, err
			}
			return nil, err
		}
		return result.Value, nil
	})

	result := h.coordinator.Publish(c.Request.Context(), req.Posts, h.protocol, platform)

	resp := gin.H{"success": result.Outcome() == publish.OutcomeFull}
	if result.PlatformEnabled {
		resp["twitter"] = h.platformStatus(result)
	}
	if result.ProtocolEnabled {
		resp["nearSocial"] = h.protocolStatus(result)
	}

	switch result.Outcome() {
	case publish.OutcomeFull:
		c.JSON(http.StatusOK, resp)
	case publish.OutcomePartial:
		c.JSON(http.StatusMultiStatus, resp)
	default:
		c.JSON(http.StatusBadGateway, resp)
	}
}

func (h *PublishHandler) platformStatus(result publish.Result) destinationStatus {
	status := destinationStatus{Success: result.PlatformOK, PostIDs: result.PlatformPostIDs}
	if !result.PlatformOK {
		status.Error = "Failed to post to Twitter"
	}
	return status
}

func (h *PublishHandler) protocolStatus(result publish.Result) destinationStatus {
	status := destinationStatus{Success: result.ProtocolOK}
	if !result.ProtocolOK {
		status.Error = "Failed to post to NEAR Social"
	}
	return status
}
