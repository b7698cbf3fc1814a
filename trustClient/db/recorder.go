package db

import (
	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/store"
)

// AttemptRecorder persists every fetch attempt reported by the scheduler.
type AttemptRecorder struct {
	db     *DB
	logger zerolog.Logger
}

var _ scheduler.Observer = (*AttemptRecorder)(nil)

func NewAttemptRecorder(db *DB, logger zerolog.Logger) *AttemptRecorder {
	return &AttemptRecorder{
		db:     db,
		logger: logger.With().Str("component", "attempt_recorder").Logger(),
	}
}

func (r *AttemptRecorder) OnFetchAttempt(a scheduler.Attempt) {
	row := &store.FetchAttempt{
		SourceID:   a.SourceID,
		StartedAt:  a.Started,
		DurationMs: a.Duration.Milliseconds(),
		Status:     store.AttemptStatusSuccess,
		Count:      a.Count,
		Failures:   a.Schedule.ConsecutiveFailures,
	}
	if a.Err != nil {
		row.Status = string(errors.Code(a.Err))
		row.ErrorMsg = a.Err.Error()
	}
	if a.Delta != nil {
		row.Added = len(a.Delta.Added)
		row.Removed = len(a.Delta.Removed)
	}

	if err := r.db.RecordAttempt(row); err != nil {
		r.logger.Error().Err(err).Str("source_id", a.SourceID).Msg("failed to record fetch attempt")
	}
}
