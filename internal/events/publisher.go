// Package events publishes acknowledged cycle outcomes to Kafka so other
// systems (dashboards, the retraining pipeline) can follow accuracy without
// reading the bot's database.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ticketbot/internal/domain"
	"ticketbot/internal/session"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends one JSON message per acknowledged cycle, keyed by cycle
// ID. It implements session.Observer.
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

var _ session.Observer = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Failed to publish outcome events", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// Publish writes outcome to the topic.
func (p *Publisher) Publish(ctx context.Context, outcome domain.CycleOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(outcome.CycleID),
		Value: data,
		Time:  outcome.RecordedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("Sent outcome to Kafka", zap.String("cycle_id", outcome.CycleID))
	return nil
}

func (p *Publisher) PredictionCompleted(context.Context, session.PredictionEvent) {}

func (p *Publisher) FeedbackCompleted(ctx context.Context, ev session.FeedbackEvent) {
	if ev.Err != nil {
		return
	}
	outcome := domain.CycleOutcome{
		CycleID:        ev.CycleID,
		PredictedLabel: ev.PredictedLabel,
		Kind:           ev.Kind,
		Source:         ev.Source,
		RecordedAt:     p.now().UTC(),
	}
	if ev.Kind == domain.FeedbackCorrection {
		outcome.CorrectedLabel = ev.TrueLabel
	}
	if err := p.Publish(ctx, outcome); err != nil {
		p.logger.Warn("Failed to publish outcome", zap.String("cycle_id", ev.CycleID), zap.Error(err))
	}
}

func (p *Publisher) ResultDiscarded(context.Context, session.RequestKind) {}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
