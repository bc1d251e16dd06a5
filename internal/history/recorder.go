package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"providence/internal/domain"
	"providence/internal/permanent"
	"providence/internal/store"
)

// Recorder commits transition batches with bounded retries.
// Params: store backend, retry budget, and logger.
// Returns: durable write path for intake and escalation.
type Recorder struct {
	store      store.Store
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRecorder creates a recorder.
// Params: store backend, commit attempt budget, and logger.
// Returns: initialized recorder; attempts below one becomes one.
func NewRecorder(st store.Store, attempts int, logger *slog.Logger) *Recorder {
	if attempts < 1 {
		attempts = 1
	}
	return &Recorder{
		store:      st,
		attempts:   attempts,
		retryDelay: 100 * time.Millisecond,
		logger:     logger,
	}
}

// Commit writes one accepted alert's transitions atomically.
// Params: record id of the source alert and transition batch.
// Returns: store.ErrDuplicateRecord unchanged, other failures wrapped in
// PersistenceFailure after the retry budget is exhausted.
func (r *Recorder) Commit(ctx context.Context, recordID uuid.UUID, transitions []domain.StateTransition) error {
	if len(transitions) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err := r.store.CommitTransitions(ctx, recordID, transitions)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrDuplicateRecord) || permanent.Is(err) {
			return err
		}
		lastErr = err
		r.logger.Warn("transition commit failed",
			"recordId", recordID,
			"attempt", attempt,
			"transitions", len(transitions),
			"error", err)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return &domain.PersistenceFailure{Op: "commit transitions", Err: ctx.Err()}
		case <-time.After(r.retryDelay * time.Duration(attempt)):
		}
	}
	return &domain.PersistenceFailure{Op: "commit transitions", Err: lastErr}
}
