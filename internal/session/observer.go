package session

import (
	"context"
	"time"

	"ticketbot/internal/domain"
)

type PredictionEvent struct {
	CycleID string
	Label   string
	Err     error
	Latency time.Duration
}

type FeedbackEvent struct {
	CycleID        string
	Kind           domain.FeedbackKind
	PredictedLabel string
	TrueLabel      string
	Source         string
	Message        string
	Err            error
	Latency        time.Duration
}

// Observer is told about every applied or discarded result. Events carry
// labels only, never the issue text.
type Observer interface {
	PredictionCompleted(ctx context.Context, ev PredictionEvent)
	FeedbackCompleted(ctx context.Context, ev FeedbackEvent)
	ResultDiscarded(ctx context.Context, kind RequestKind)
}

type nopObserver struct{}

func (nopObserver) PredictionCompleted(context.Context, PredictionEvent) {}
func (nopObserver) FeedbackCompleted(context.Context, FeedbackEvent)     {}
func (nopObserver) ResultDiscarded(context.Context, RequestKind)         {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nopObserver{}
	}
	return out
}

func (m multiObserver) PredictionCompleted(ctx context.Context, ev PredictionEvent) {
	for _, o := range m {
		o.PredictionCompleted(ctx, ev)
	}
}

func (m multiObserver) FeedbackCompleted(ctx context.Context, ev FeedbackEvent) {
	for _, o := range m {
		o.FeedbackCompleted(ctx, ev)
	}
}

func (m multiObserver) ResultDiscarded(ctx context.Context, kind RequestKind) {
	for _, o := range m {
		o.ResultDiscarded(ctx, kind)
	}
}
