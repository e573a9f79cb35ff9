// README: Gemini provider adapter using Google's official SDK.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAdapter implements ProviderAdapter on top of the genai SDK. It is the
// third catalog family: not part of the default preference lists, but fully
// selectable through configured preference overrides.
type GeminiAdapter struct {
	client *genai.Client
}

// NewGeminiAdapter initializes a Gemini client for the given API key.
func NewGeminiAdapter(ctx context.Context, apiKey string) (*GeminiAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiAdapter{client: client}, nil
}

// Close releases SDK resources.
func (a *GeminiAdapter) Close() {
	a.client.Close()
}

func (a *GeminiAdapter) Family() Family { return FamilyGemini }

// IsAvailable fetches model metadata as the probe.
func (a *GeminiAdapter) IsAvailable(ctx context.Context, modelID string) bool {
	info, err := a.client.GenerativeModel(modelID).Info(ctx)
	return err == nil && info != nil
}

// Invoke runs a generation and joins the text parts of the first candidate.
func (a *GeminiAdapter) Invoke(ctx context.Context, modelID string, genReq GenerationRequest) (string, error) {
	model := a.client.GenerativeModel(modelID)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(genReq.Temperature)
	if genReq.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(genReq.MaxTokens))
	}
	if genReq.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(genReq.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(genReq.Prompt))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &TimeoutError{Family: FamilyGemini, ModelID: modelID}
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ParseError{Family: FamilyGemini, ModelID: modelID, Reason: "empty candidates"}
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		txt, ok := part.(genai.Text)
		if !ok || strings.TrimSpace(string(txt)) == "" {
			continue
		}
		textParts = append(textParts, string(txt))
	}
	if len(textParts) == 0 {
		return "", &ParseError{Family: FamilyGemini, ModelID: modelID, Reason: "empty text parts"}
	}
	return strings.Join(textParts, "\n"), nil
}
