// Package session drives one user's predict → confirm/correct → feedback
// cycle against the classifier service.
//
// A Controller owns exactly one Session at a time. Transitions are gated on
// the current domain.State, and every network request is tagged with the
// cycle it was issued for, so a response that arrives after the user has
// moved on is dropped instead of overwriting newer data.
//
// Operations come in two forms. The synchronous methods (Submit,
// ConfirmCorrect, RejectPrediction, SubmitCorrection) block on the network
// call and suit request/response surfaces such as Slack and the CLI. Event
// loops such as the terminal UI use BeginX to transition and obtain a
// Request, run Execute off the loop, and feed the Result back through Apply.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketbot/internal/classifier"
	"ticketbot/internal/domain"
	"ticketbot/internal/labels"
)

// Session is a snapshot of one interaction cycle.
type Session struct {
	CycleID    string
	State      domain.State
	Text       string
	Prediction string
	// Error holds the last failure or validation message for display.
	Error string
	// Acknowledgement is the service's reply to the feedback that closed the
	// previous cycle. Only set on the fresh session created by that reset.
	Acknowledgement string
}

// HasPrediction reports whether Prediction is a real label rather than an
// error surrogate.
func (s Session) HasPrediction() bool {
	switch s.State {
	case domain.StatePredicted, domain.StateAwaitingCorrection, domain.StateSubmittingFeedback:
		return true
	}
	return false
}

type RequestKind int

const (
	KindPredict RequestKind = iota
	KindFeedback
)

func (k RequestKind) String() string {
	if k == KindFeedback {
		return "feedback"
	}
	return "predict"
}

// Request is one outbound call, tagged with the cycle that issued it.
type Request struct {
	Kind    RequestKind
	CycleID string
	Text    string
	Record  domain.FeedbackRecord

	// state to fall back to if feedback fails
	returnTo domain.State
}

type Result struct {
	Request    Request
	Prediction string
	Message    string
	Err        error
	Latency    time.Duration
}

type Controller struct {
	mu       sync.Mutex
	sess     Session
	service  classifier.Service
	registry *labels.Registry
	observer Observer
	logger   *zap.Logger
	source   string
	newID    func() string
}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSource names the surface driving this controller (slack, tui, cli).
func WithSource(source string) Option {
	return func(c *Controller) {
		c.source = source
	}
}

// WithIDGenerator replaces the cycle ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func NewController(service classifier.Service, registry *labels.Registry, opts ...Option) *Controller {
	c := &Controller{
		service:  service,
		registry: registry,
		observer: nopObserver{},
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess = Session{CycleID: c.newID(), State: domain.StateIdle}
	return c
}

func (c *Controller) Registry() *labels.Registry {
	return c.registry
}

func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Reset discards the current cycle and starts an empty one. Results still in
// flight for the old cycle will be dropped when they arrive.
func (c *Controller) Reset() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked("")
	return c.sess
}

func (c *Controller) resetLocked(ack string) {
	old := c.sess.CycleID
	c.sess = Session{CycleID: c.newID(), State: domain.StateIdle, Acknowledgement: ack}
	c.logger.Debug("Session reset", zap.String("previous_cycle_id", old), zap.String("cycle_id", c.sess.CycleID))
}

// BeginPrediction starts a new cycle for text. It refuses with
// ErrRequestInFlight while a prediction is pending.
func (c *Controller) BeginPrediction(text string) (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.State == domain.StateRequesting {
		c.logger.Debug("Prediction refused, request in flight", zap.String("cycle_id", c.sess.CycleID))
		return Request{}, ErrRequestInFlight
	}

	c.sess = Session{
		CycleID: c.newID(),
		State:   domain.StateRequesting,
		Text:    text,
	}
	c.logger.Info("Cycle started", zap.String("cycle_id", c.sess.CycleID), zap.Int("text_len", len(text)))
	c.logger.Debug("Cycle input", zap.String("cycle_id", c.sess.CycleID), zap.String("input", text))
	return Request{Kind: KindPredict, CycleID: c.sess.CycleID, Text: text}, nil
}

// BeginConfirm records that the prediction was right and prepares agreement
// feedback. Only valid from Predicted.
func (c *Controller) BeginConfirm() (Request, error) {
	return c.beginConfirm("")
}

func (c *Controller) beginConfirm(cycleID string) (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(cycleID, "confirm", domain.StatePredicted); err != nil {
		return Request{}, err
	}
	return c.feedbackRequestLocked(c.sess.Prediction), nil
}

// BeginCorrection validates trueLabel against the registry and prepares
// correction feedback. Only valid from AwaitingCorrection. An unknown or
// empty label yields *ValidationError and leaves the state unchanged.
func (c *Controller) BeginCorrection(trueLabel string) (Request, error) {
	return c.beginCorrection("", trueLabel)
}

func (c *Controller) beginCorrection(cycleID, trueLabel string) (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(cycleID, "submit a correction", domain.StateAwaitingCorrection); err != nil {
		return Request{}, err
	}
	if trueLabel == "" || !c.registry.Contains(trueLabel) {
		verr := &ValidationError{Label: trueLabel}
		c.sess.Error = verr.Error()
		c.logger.Info("Correction rejected", zap.String("cycle_id", c.sess.CycleID), zap.String("true_label", trueLabel))
		return Request{}, verr
	}
	return c.feedbackRequestLocked(trueLabel), nil
}

func (c *Controller) feedbackRequestLocked(trueLabel string) Request {
	req := Request{
		Kind:    KindFeedback,
		CycleID: c.sess.CycleID,
		Record: domain.FeedbackRecord{
			Text:       c.sess.Text,
			Prediction: c.sess.Prediction,
			TrueLabel:  trueLabel,
		},
		returnTo: c.sess.State,
	}
	c.sess.State = domain.StateSubmittingFeedback
	c.sess.Error = ""
	return req
}

// RejectPrediction enters the correction flow. It never touches the network.
func (c *Controller) RejectPrediction() (Session, error) {
	return c.reject("")
}

func (c *Controller) reject(cycleID string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(cycleID, "reject", domain.StatePredicted); err != nil {
		return c.sess, err
	}
	c.sess.State = domain.StateAwaitingCorrection
	c.sess.Error = ""
	c.logger.Debug("Prediction rejected", zap.String("cycle_id", c.sess.CycleID), zap.String("prediction", c.sess.Prediction))
	return c.sess, nil
}

func (c *Controller) checkLocked(cycleID, op string, want domain.State) error {
	if cycleID != "" && cycleID != c.sess.CycleID {
		return ErrStaleCycle
	}
	if c.sess.State != want {
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, c.sess.State)
	}
	return nil
}

// Execute performs the network call for req. It does not touch session
// state and may run on any goroutine.
func (c *Controller) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	res := Result{Request: req}
	switch req.Kind {
	case KindPredict:
		res.Prediction, res.Err = c.service.Predict(ctx, req.Text)
	case KindFeedback:
		res.Message, res.Err = c.service.SendFeedback(ctx, req.Record)
	}
	res.Latency = time.Since(start)
	return res
}

// Apply folds res into the session if it still belongs to the current cycle
// and the cycle is still waiting for it. It reports whether res was applied;
// stale results are discarded.
func (c *Controller) Apply(ctx context.Context, res Result) (Session, bool) {
	c.mu.Lock()

	req := res.Request
	wantState := domain.StateRequesting
	if req.Kind == KindFeedback {
		wantState = domain.StateSubmittingFeedback
	}
	if req.CycleID != c.sess.CycleID || c.sess.State != wantState {
		current := c.sess
		c.mu.Unlock()
		c.logger.Info("Discarded stale result",
			zap.String("kind", req.Kind.String()),
			zap.String("cycle_id", req.CycleID),
			zap.String("current_cycle_id", current.CycleID),
			zap.String("state", current.State.String()),
		)
		c.observer.ResultDiscarded(ctx, req.Kind)
		return current, false
	}

	var notify func()
	switch req.Kind {
	case KindPredict:
		notify = c.applyPredictionLocked(ctx, res)
	case KindFeedback:
		notify = c.applyFeedbackLocked(ctx, res)
	}
	snap := c.sess
	c.mu.Unlock()

	notify()
	return snap, true
}

func (c *Controller) applyPredictionLocked(ctx context.Context, res Result) func() {
	ev := PredictionEvent{CycleID: res.Request.CycleID, Err: res.Err, Latency: res.Latency}
	if res.Err != nil {
		c.sess.State = domain.StateFailed
		c.sess.Error = res.Err.Error()
		c.sess.Prediction = "Error: " + res.Err.Error()
		c.logger.Warn("Prediction failed",
			zap.String("endpoint", classifier.EndpointPredict),
			zap.String("cycle_id", res.Request.CycleID),
			zap.Int64("latency_ms", res.Latency.Milliseconds()),
			zap.Error(res.Err),
		)
	} else {
		c.sess.State = domain.StatePredicted
		c.sess.Prediction = res.Prediction
		c.sess.Error = ""
		ev.Label = res.Prediction
		c.logger.Info("Prediction made",
			zap.String("endpoint", classifier.EndpointPredict),
			zap.String("cycle_id", res.Request.CycleID),
			zap.String("prediction", res.Prediction),
			zap.Int64("latency_ms", res.Latency.Milliseconds()),
		)
	}
	return func() { c.observer.PredictionCompleted(ctx, ev) }
}

func (c *Controller) applyFeedbackLocked(ctx context.Context, res Result) func() {
	rec := res.Request.Record
	ev := FeedbackEvent{
		CycleID:        res.Request.CycleID,
		Kind:           rec.Kind(),
		PredictedLabel: rec.Prediction,
		TrueLabel:      rec.TrueLabel,
		Source:         c.source,
		Message:        res.Message,
		Err:            res.Err,
		Latency:        res.Latency,
	}
	if res.Err != nil {
		c.sess.State = res.Request.returnTo
		c.sess.Error = res.Err.Error()
		c.logger.Warn("Feedback failed",
			zap.String("endpoint", classifier.EndpointFeedback),
			zap.String("cycle_id", res.Request.CycleID),
			zap.String("state", c.sess.State.String()),
			zap.Error(res.Err),
		)
		return func() { c.observer.FeedbackCompleted(ctx, ev) }
	}

	c.sess.State = domain.StateFeedbackAcknowledged
	c.logger.Info("Feedback acknowledged",
		zap.String("endpoint", classifier.EndpointFeedback),
		zap.String("cycle_id", res.Request.CycleID),
		zap.String("outcome", string(ev.Kind)),
		zap.String("prediction", rec.Prediction),
		zap.String("true_label", rec.TrueLabel),
		zap.Int64("latency_ms", res.Latency.Milliseconds()),
	)
	c.resetLocked(res.Message)
	return func() { c.observer.FeedbackCompleted(ctx, ev) }
}

// Submit requests a prediction for text and waits for it. While another
// prediction is pending it returns ErrRequestInFlight and does nothing.
// Service failures are not returned; they leave the session in Failed.
func (c *Controller) Submit(ctx context.Context, text string) (Session, error) {
	req, err := c.BeginPrediction(text)
	if err != nil {
		return c.Snapshot(), err
	}
	snap, _ := c.Apply(ctx, c.Execute(ctx, req))
	return snap, nil
}

// ConfirmCorrect sends agreement feedback for the current prediction. On
// success the session is reset to Idle; on failure it returns to Predicted
// with Error set.
func (c *Controller) ConfirmCorrect(ctx context.Context) (Session, error) {
	req, err := c.beginConfirm("")
	return c.run(ctx, req, err)
}

// ConfirmCycle is ConfirmCorrect guarded against a replaced cycle.
func (c *Controller) ConfirmCycle(ctx context.Context, cycleID string) (Session, error) {
	req, err := c.beginConfirm(cycleID)
	return c.run(ctx, req, err)
}

// RejectCycle is RejectPrediction guarded against a replaced cycle.
func (c *Controller) RejectCycle(cycleID string) (Session, error) {
	return c.reject(cycleID)
}

// SubmitCorrection sends correction feedback with trueLabel. Labels outside
// the registry are refused without contacting the service.
func (c *Controller) SubmitCorrection(ctx context.Context, trueLabel string) (Session, error) {
	req, err := c.beginCorrection("", trueLabel)
	return c.run(ctx, req, err)
}

// CorrectCycle is SubmitCorrection guarded against a replaced cycle.
func (c *Controller) CorrectCycle(ctx context.Context, cycleID, trueLabel string) (Session, error) {
	req, err := c.beginCorrection(cycleID, trueLabel)
	return c.run(ctx, req, err)
}

func (c *Controller) run(ctx context.Context, req Request, err error) (Session, error) {
	if err != nil {
		return c.Snapshot(), err
	}
	snap, _ := c.Apply(ctx, c.Execute(ctx, req))
	return snap, nil
}
