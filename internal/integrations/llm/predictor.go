// Package llm predicts ticket labels with Claude instead of the classifier
// service. Predictions are constrained to the label registry.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"ticketbot/internal/labels"
)

const maxIssueChars = 4000

type Predictor struct {
	client   anthropic.Client
	model    string
	registry *labels.Registry
	logger   *zap.Logger
}

// NewPredictor builds a Claude-backed predictor. Extra request options are
// appended after the API key and HTTP client.
func NewPredictor(apiKey, model string, registry *labels.Registry, httpClient *http.Client, logger *zap.Logger, opts ...option.RequestOption) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		base = append(base, option.WithHTTPClient(httpClient))
	}
	return &Predictor{
		client:   anthropic.NewClient(append(base, opts...)...),
		model:    model,
		registry: registry,
		logger:   logger,
	}
}

type labelResponse struct {
	Label string `json:"label"`
}

// Predict asks the model for exactly one registry label. A reply naming
// anything else is an error.
func (p *Predictor) Predict(ctx context.Context, text string) (string, error) {
	system, user := buildPrompts(p.registry, text)

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		p.logger.Warn("Anthropic request failed", zap.String("model", p.model), zap.Error(err))
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		label, err := parseLabel(block.Text, p.registry)
		if err != nil {
			return "", err
		}
		p.logger.Info("Prediction received",
			zap.String("endpoint", "anthropic"),
			zap.String("model", p.model),
			zap.String("prediction", label),
			zap.Int64("tokens_in", message.Usage.InputTokens),
			zap.Int64("tokens_out", message.Usage.OutputTokens),
		)
		return label, nil
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

func buildPrompts(registry *labels.Registry, text string) (string, string) {
	var sb strings.Builder
	sb.WriteString("You route IT support tickets to exactly one department.\n")
	sb.WriteString("Allowed labels:\n")
	for _, l := range registry.Labels() {
		fmt.Fprintf(&sb, "- %s\n", l)
	}
	sb.WriteString("\nReply with JSON only: {\"label\": \"<one allowed label, spelled exactly>\"}")

	text = strings.TrimSpace(text)
	if len(text) > maxIssueChars {
		text = text[:maxIssueChars]
	}
	return sb.String(), "Ticket:\n" + text
}

// parseLabel accepts the JSON reply, optionally fenced, or a bare label.
func parseLabel(responseText string, registry *labels.Registry) (string, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	label := responseText
	var resp labelResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err == nil {
		label = resp.Label
	}
	label = strings.Trim(strings.TrimSpace(label), `"`)

	if registry.Contains(label) {
		return label, nil
	}
	for _, known := range registry.Labels() {
		if strings.EqualFold(known, label) {
			return known, nil
		}
	}
	return "", fmt.Errorf("model answered %q, which is not a known label", label)
}
