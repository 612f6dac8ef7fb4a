// Package classifier talks to the remote ticket classification service.
//
// The service exposes two JSON endpoints:
//
//	POST {base}/predict   {"text": ...}                                -> {"prediction": ...}
//	POST {base}/feedback  {"text": ..., "prediction": ..., "true_label": ...} -> {"message": ...}
//
// Any non-2xx status or transport error is reported as an error; callers
// decide how to surface it.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/domain"
)

const (
	EndpointPredict  = "/predict"
	EndpointFeedback = "/feedback"

	maxErrorBodyBytes = 4096
)

type Predictor interface {
	Predict(ctx context.Context, text string) (string, error)
}

type FeedbackSender interface {
	SendFeedback(ctx context.Context, record domain.FeedbackRecord) (string, error)
}

// Service is everything one interaction cycle needs from the backend.
type Service interface {
	Predictor
	FeedbackSender
}

type combined struct {
	Predictor
	FeedbackSender
}

// Combine pairs a predictor with a feedback sink, for setups where
// predictions do not come from the classifier service itself.
func Combine(p Predictor, f FeedbackSender) Service {
	return combined{Predictor: p, FeedbackSender: f}
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Prediction string `json:"prediction"`
}

type feedbackResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates baseURL and returns a client for it. There is no
// fallback host: an empty baseURL is an error.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("classifier base URL is not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse classifier base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("classifier base URL must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("classifier base URL has no host: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Predict(ctx context.Context, text string) (string, error) {
	var resp predictResponse
	status, err := c.post(ctx, EndpointPredict, predictRequest{Text: text}, &resp)
	if err != nil {
		return "", err
	}
	c.logger.Info("Prediction received",
		zap.String("endpoint", EndpointPredict),
		zap.String("prediction", resp.Prediction),
		zap.Int("status_code", status),
	)
	return resp.Prediction, nil
}

func (c *Client) SendFeedback(ctx context.Context, record domain.FeedbackRecord) (string, error) {
	var resp feedbackResponse
	status, err := c.post(ctx, EndpointFeedback, record, &resp)
	if err != nil {
		return "", err
	}
	c.logger.Info("Feedback accepted",
		zap.String("endpoint", EndpointFeedback),
		zap.String("prediction", record.Prediction),
		zap.String("true_label", record.TrueLabel),
		zap.Int("status_code", status),
	)
	return resp.Message, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("Request failed",
			zap.String("endpoint", endpoint),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
		c.logger.Warn("Request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("message", statusErr.Message),
		)
		return resp.StatusCode, statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	c.logger.Debug("Request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status_code", resp.StatusCode),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
	return resp.StatusCode, nil
}

// errorMessage pulls a readable message out of an error body. The service
// answers {"error": "..."} for bad input; anything else is used verbatim.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := string(raw)
	if len(msg) > 200 {
		msg = msg[:197] + "..."
	}
	return msg
}
