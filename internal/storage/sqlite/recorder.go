package sqlite

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/domain"
	"ticketbot/internal/session"
)

// OutcomeRecorder stores acknowledged cycles and failure counts. It
// implements session.Observer; write errors are logged, never surfaced to
// the user.
type OutcomeRecorder struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ session.Observer = (*OutcomeRecorder)(nil)

func NewOutcomeRecorder(db *sql.DB, logger *zap.Logger) *OutcomeRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeRecorder{db: db, logger: logger, now: time.Now}
}

func (r *OutcomeRecorder) PredictionCompleted(_ context.Context, ev session.PredictionEvent) {
	if ev.Err == nil {
		return
	}
	if err := IncrementFailure(r.db, FailurePredict, r.now()); err != nil {
		r.logger.Error("Failed to record prediction failure", zap.String("cycle_id", ev.CycleID), zap.Error(err))
	}
}

func (r *OutcomeRecorder) FeedbackCompleted(_ context.Context, ev session.FeedbackEvent) {
	if ev.Err != nil {
		if err := IncrementFailure(r.db, FailureFeedback, r.now()); err != nil {
			r.logger.Error("Failed to record feedback failure", zap.String("cycle_id", ev.CycleID), zap.Error(err))
		}
		return
	}

	outcome := domain.CycleOutcome{
		CycleID:        ev.CycleID,
		PredictedLabel: ev.PredictedLabel,
		Kind:           ev.Kind,
		Source:         ev.Source,
		RecordedAt:     r.now(),
	}
	if ev.Kind == domain.FeedbackCorrection {
		outcome.CorrectedLabel = ev.TrueLabel
	}
	if err := InsertCycleOutcome(r.db, outcome); err != nil {
		r.logger.Error("Failed to record cycle outcome", zap.String("cycle_id", ev.CycleID), zap.Error(err))
		return
	}
	r.logger.Debug("Cycle outcome recorded",
		zap.String("cycle_id", ev.CycleID),
		zap.String("outcome", string(ev.Kind)),
	)
}

func (r *OutcomeRecorder) ResultDiscarded(context.Context, session.RequestKind) {}
