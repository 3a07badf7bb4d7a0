package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
	"github.com/NEARBuilders/crosspost/internal/draft"
)

// DraftHandler serves composer persistence: saved drafts, the autosave
// snapshot, and the thread-mode flag.
type DraftHandler struct {
	store     *draft.Store
	scheduler *draft.Scheduler
	logger    *zap.Logger
}

// NewDraftHandler wires the handler.
func NewDraftHandler(store *draft.Store, scheduler *draft.Scheduler, logger *zap.Logger) *DraftHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &DraftHandler{store: store, scheduler: scheduler, logger: logger}
}

// List returns all saved drafts, newest first.
func (h *DraftHandler) List(c *gin.Context) {
	drafts, err := h.store.ListDrafts(c.Request.Context())
	if err != nil {
		h.logger.Error("list drafts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drafts"})
		return
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

// Save stores the batch as a new draft.
func (h *DraftHandler) Save(c *gin.Context) {
	var req struct {
		Posts domain.PostBatch `json:"posts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Posts.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid posts array is required"})
		return
	}

	saved, err := h.store.SaveDraft(c.Request.Context(), req.Posts)
	if err != nil {
		h.logger.Error("save draft failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": saved})
}

// Delete removes one draft by ID.
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("delete draft failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Autosave schedules a debounced write of the in-progress batch. The write
// happens after the quiet period; rapid edits collapse into one.
func (h *DraftHandler) Autosave(c *gin.Context) {
	var req struct {
		Posts domain.PostBatch `json:"posts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid posts array is required"})
		return
	}

	h.scheduler.Schedule(req.Posts)
	c.JSON(http.StatusAccepted, gin.H{"scheduled": true})
}

// LoadAutosave returns the current snapshot, if any.
func (h *DraftHandler) LoadAutosave(c *gin.Context) {
	snapshot, ok, err := h.store.LoadAutosave(c.Request.Context())
	if err != nil {
		h.logger.Error("load autosave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load autosave"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"autosave": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"autosave": snapshot})
}

// ClearAutosave drops any pending write and the stored snapshot. Called
// after a successful publish.
func (h *DraftHandler) ClearAutosave(c *gin.Context) {
	if err := h.scheduler.Clear(c.Request.Context()); err != nil {
		h.logger.Error("clear autosave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear autosave"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ThreadMode reports the persisted composer mode.
func (h *DraftHandler) ThreadMode(c *gin.Context) {
	mode, err := h.store.ThreadMode(c.Request.Context())
	if err != nil {
		h.logger.Error("load thread mode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load thread mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threadMode": mode})
}

// SetThreadMode persists the composer mode.
func (h *DraftHandler) SetThreadMode(c *gin.Context) {
	var req struct {
		ThreadMode *bool `json:"threadMode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ThreadMode == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threadMode boolean is required"})
		return
	}

	if err := h.store.SetThreadMode(c.Request.Context(), *req.ThreadMode); err != nil {
		h.logger.Error("set thread mode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save thread mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threadMode": *req.ThreadMode})
}
