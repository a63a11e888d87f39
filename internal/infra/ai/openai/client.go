package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/reclaimai/reclaim/internal/domain/ai"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/infra/ai/prompt"
)

const (
	maxTokens    = 1024
	defaultModel = "gpt-4o-mini"
)

type Client struct {
	*openai.Client
	Model string
	now   func() time.Time
}

var _ ai.Client = (*Client)(nil)

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model, now: time.Now}
}

// NewClientWithBaseURL points the client at an OpenAI-compatible endpoint.
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, now: time.Now}
}

type output struct {
	Summary  string          `json:"summary"`
	Labels   []string        `json:"labels"`
	Severity json.RawMessage `json:"severity"`
	Score    *float64        `json:"score"`
}

func (c *Client) Analyze(ctx context.Context, in ai.Input) (evidence.Analysis, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt(in)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if quotaExceeded(err) {
			return evidence.Analysis{}, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return evidence.Analysis{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return evidence.Analysis{}, fmt.Errorf("%w: no choices", ai.ErrMalformedOutput)
	}

	return c.parse(resp.Choices[0].Message.Content)
}

func (c *Client) parse(content string) (evidence.Analysis, error) {
	var out output
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return evidence.Analysis{}, fmt.Errorf("%w: %v", ai.ErrMalformedOutput, err)
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return evidence.Analysis{}, fmt.Errorf("%w: empty summary", ai.ErrMalformedOutput)
	}

	var sev evidence.Severity
	if len(out.Severity) > 0 {
		// an unknown category falls through to the score below
		_ = json.Unmarshal(out.Severity, &sev)
	}
	if !sev.Valid() {
		switch {
		case out.Score != nil:
			sev = evidence.SeverityFromScore(*out.Score)
		default:
			sev = evidence.SeverityMedium
		}
	}

	labels := make([]string, 0, len(out.Labels))
	for _, l := range out.Labels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			labels = append(labels, l)
		}
	}

	return evidence.Analysis{
		Summary:    summary,
		Labels:     labels,
		Severity:   sev,
		Score:      out.Score,
		AnalyzedAt: c.now().UTC(),
	}, nil
}

func quotaExceeded(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
