package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticketbot/internal/domain"
	"ticketbot/internal/session"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisherSendsCorrectionKeyedByCycle(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())
	fixed := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	p.FeedbackCompleted(context.Background(), session.FeedbackEvent{
		CycleID:        "cycle-7",
		Kind:           domain.FeedbackCorrection,
		PredictedLabel: "Access",
		TrueLabel:      "Hardware",
		Source:         "slack",
	})

	require.Len(t, w.msgs, 1)
	require.Equal(t, "cycle-7", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	require.Equal(t, "Access", got["predicted_label"])
	require.Equal(t, "corrected", got["outcome"])
	require.Equal(t, "Hardware", got["corrected_label"])
	require.Equal(t, "slack", got["source"])
	require.NotContains(t, got, "text")
}

func TestPublisherSkipsFailuresAndPredictions(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())
	ctx := context.Background()

	p.PredictionCompleted(ctx, session.PredictionEvent{CycleID: "c1", Label: "Access"})
	p.FeedbackCompleted(ctx, session.FeedbackEvent{CycleID: "c1", Kind: domain.FeedbackConfirmation, Err: errors.New("503")})
	p.ResultDiscarded(ctx, session.KindFeedback)

	require.Empty(t, w.msgs)
}

func TestPublisherConfirmationOmitsCorrectedLabel(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())

	p.FeedbackCompleted(context.Background(), session.FeedbackEvent{
		CycleID: "c2", Kind: domain.FeedbackConfirmation, PredictedLabel: "Storage", TrueLabel: "Storage",
	})

	require.Len(t, w.msgs, 1)
	require.NotContains(t, string(w.msgs[0].Value), "corrected_label")
}

func TestPublishReturnsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), domain.CycleOutcome{CycleID: "c3"})
	require.EqualError(t, err, "broker down")

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}
