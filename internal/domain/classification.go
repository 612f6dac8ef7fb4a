package domain

import "time"

// State is the phase of one prediction+feedback cycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StatePredicted
	StateAwaitingCorrection
	StateSubmittingFeedback
	StateFeedbackAcknowledged
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateRequesting:           "requesting",
	StatePredicted:            "predicted",
	StateAwaitingCorrection:   "awaiting_correction",
	StateSubmittingFeedback:   "submitting_feedback",
	StateFeedbackAcknowledged: "feedback_acknowledged",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Pending reports whether a network call is outstanding in this state.
func (s State) Pending() bool {
	return s == StateRequesting || s == StateSubmittingFeedback
}

// FeedbackRecord is the body sent to the classifier's /feedback endpoint.
type FeedbackRecord struct {
	Text       string `json:"text"`
	Prediction string `json:"prediction"`
	TrueLabel  string `json:"true_label"`
}

func (r FeedbackRecord) Kind() FeedbackKind {
	if r.TrueLabel == r.Prediction {
		return FeedbackConfirmation
	}
	return FeedbackCorrection
}

type FeedbackKind string

const (
	FeedbackConfirmation FeedbackKind = "confirmed"
	FeedbackCorrection   FeedbackKind = "corrected"
)

// CycleOutcome is the label-level summary of an acknowledged cycle. It never
// carries the issue text.
type CycleOutcome struct {
	ID             int64        `json:"-"`
	CycleID        string       `json:"cycle_id"`
	PredictedLabel string       `json:"predicted_label"`
	Kind           FeedbackKind `json:"outcome"`
	CorrectedLabel string       `json:"corrected_label,omitempty"`
	Source         string       `json:"source"`
	RecordedAt     time.Time    `json:"recorded_at"`
}

type OutcomeStats struct {
	TotalCycles        int
	TotalConfirmations int
	TotalCorrections   int
	PredictFailures    int
	FeedbackFailures   int
}

// Accuracy is the share of acknowledged cycles whose prediction was confirmed,
// as a percentage. Zero when nothing has been recorded.
func (s OutcomeStats) Accuracy() float64 {
	if s.TotalCycles == 0 {
		return 0
	}
	return 100.0 * float64(s.TotalConfirmations) / float64(s.TotalCycles)
}

type LabelCorrectionStat struct {
	PredictedLabel  string
	CorrectionCount int
}

type CorrectionPair struct {
	PredictedLabel string
	CorrectedLabel string
	Count          int
}

type WeeklyTrend struct {
	WeekStart   string
	Cycles      int
	Corrections int
}
