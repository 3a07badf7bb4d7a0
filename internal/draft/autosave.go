package draft

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Saver persists autosave snapshots. *Store satisfies it.
type Saver interface {
	SaveAutosave(ctx context.Context, snapshot domain.Autosave) error
	ClearAutosave(ctx context.Context) error
}

// Scheduler debounces autosave writes: rapid successive Schedule calls
// collapse into one write of the latest content after the quiet period.
type Scheduler struct {
	saver    Saver
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending domain.PostBatch
}

// NewScheduler wires the scheduler with the given quiet period.
func NewScheduler(saver Saver, debounce time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.L()
	}
	return &Scheduler{saver: saver, debounce: debounce, logger: logger}
}

// Schedule records the batch as the pending snapshot and restarts the quiet
// period. Only the content present when the period elapses is written.
// All-empty batches are not worth persisting and clear any pending write.
func (s *Scheduler) Schedule(posts domain.PostBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if posts.Empty() {
		s.pending = nil
		return
	}

	s.pending = posts
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	posts := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if posts == nil {
		return
	}
	s.save(posts)
}

// Flush writes any pending snapshot immediately instead of waiting out the
// quiet period. Used on shutdown so edits are not lost.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	posts := s.pending
	s.pending = nil
	s.mu.Unlock()

	if posts == nil {
		return
	}
	s.save(posts)
}

// Clear drops any pending write and removes the stored snapshot.
func (s *Scheduler) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()

	return s.saver.ClearAutosave(ctx)
}

func (s *Scheduler) save(posts domain.PostBatch) {
	snapshot := domain.Autosave{Posts: posts, UpdatedAt: time.Now().UTC()}
	if err := s.saver.SaveAutosave(context.Background(), snapshot); err != nil {
		s.logger.Warn("autosave write failed", zap.Error(err))
	}
}
