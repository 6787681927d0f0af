package modelgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/artemis/ai-modernizer/internal/apperrors"
)

// ReasoningProvider stands in for the reasoning-strong model family, the
// better fit for calls where depth of reasoning matters more than latency
// (the Planner and Analyzer). The server wires one provider, chosen by
// cfg.ModelProvider, for every agent.
type ReasoningProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *http.Client
}

// NewReasoningProvider constructs a reasoning provider. baseURL defaults
// to the upstream completions endpoint when empty.
func NewReasoningProvider(apiKey, model, baseURL string) *ReasoningProvider {
	if baseURL == "" {
		baseURL = "https://api.reasoning-model.example/v1/completions"
	}
	if model == "" {
		model = "reasoning-default"
	}
	return &ReasoningProvider{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *ReasoningProvider) Name() string { return "reasoning" }

func (p *ReasoningProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	return chatComplete(ctx, p.client, p.BaseURL, p.APIKey, p.Model, systemPrompt, userPrompt)
}

// EfficientProvider stands in for the cost-efficient model family, the
// better fit for calls where latency/cost matter more (the Validator and
// Deployer). Like ReasoningProvider, it serves every agent when selected.
type EfficientProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *http.Client
}

// NewEfficientProvider constructs an efficient provider.
func NewEfficientProvider(apiKey, model, baseURL string) *EfficientProvider {
	if baseURL == "" {
		baseURL = "https://api.efficient-model.example/v1/completions"
	}
	if model == "" {
		model = "efficient-default"
	}
	return &EfficientProvider{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *EfficientProvider) Name() string { return "efficient" }

func (p *EfficientProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	return chatComplete(ctx, p.client, p.BaseURL, p.APIKey, p.Model, systemPrompt, userPrompt)
}

type completionRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	User   string `json:"user"`
}

type completionResponse struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// chatComplete is the shared HTTP transport both providers use; they
// differ only in endpoint, model, and timeout.
func chatComplete(ctx context.Context, client *http.Client, baseURL, apiKey, model, systemPrompt, userPrompt string) (Completion, error) {
	if apiKey == "" {
		return Completion{}, apperrors.New(apperrors.KindModelUnavailable, "no provider key configured")
	}

	body, err := json.Marshal(completionRequest{Model: model, System: systemPrompt, User: userPrompt})
	if err != nil {
		return Completion{}, apperrors.Wrap(apperrors.KindModelParseFailed, "failed to marshal completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return Completion{}, apperrors.Wrap(apperrors.KindModelUnavailable, "failed to build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return Completion{}, apperrors.Wrap(apperrors.KindModelUnavailable, "completion request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, apperrors.Wrap(apperrors.KindModelUnavailable, "failed to read completion response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, apperrors.New(apperrors.KindModelUnavailable, fmt.Sprintf("completion endpoint returned %d", resp.StatusCode))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Completion{}, apperrors.Wrap(apperrors.KindModelParseFailed, "failed to parse completion response", err)
	}

	return Completion{
		Text:         parsed.Text,
		InputTokens:  parsed.InputTokens,
		OutputTokens: parsed.OutputTokens,
		Cost:         costFor(model, parsed.InputTokens, parsed.OutputTokens),
	}, nil
}
