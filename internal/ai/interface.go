package ai

import (
	"context"
)

// RequestKind selects the token budget and sampling temperature for a call.
type RequestKind string

const (
	KindSchedule       RequestKind = "schedule"
	KindRecommendation RequestKind = "recommendation"
)

// GenerationRequest is the normalized request body handed to an adapter.
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float32
}

// ProviderAdapter is the uniform interface to one LLM vendor.
//
// IsAvailable never returns an error: any probe failure (including a probe
// timeout) maps to false. Invoke returns the normalized text content of the
// model response, or one of the typed errors in errors.go.
type ProviderAdapter interface {
	Family() Family
	IsAvailable(ctx context.Context, modelID string) bool
	Invoke(ctx context.Context, modelID string, req GenerationRequest) (string, error)
}
