// README: OpenAI provider adapter (chat completions over raw HTTP).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter talks to the OpenAI chat completions API.
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type OpenAIOption func(*OpenAIAdapter)

// WithOpenAIBaseURL overrides the API endpoint (used by tests and proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(a *OpenAIAdapter) { a.baseURL = url }
}

// WithOpenAIHTTPClient overrides the HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(a *OpenAIAdapter) { a.client = c }
}

// NewOpenAIAdapter builds an adapter for the OpenAI model family.
// The client timeout guards against stalled connections; per-call deadlines
// are still honoured via NewRequestWithContext.
func NewOpenAIAdapter(apiKey string, opts ...OpenAIOption) *OpenAIAdapter {
	a := &OpenAIAdapter{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *OpenAIAdapter) Family() Family { return FamilyOpenAI }

// IsAvailable probes the models endpoint. Any failure maps to false.
func (a *OpenAIAdapter) IsAvailable(ctx context.Context, modelID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models/"+modelID, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.ID != ""
}

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	MaxTokens      int                 `json:"max_tokens"`
	Temperature    float32             `json:"temperature"`
	ResponseFormat map[string]string   `json:"response_format,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Invoke sends the generation request and extracts choices[0].message.content.
func (a *OpenAIAdapter) Invoke(ctx context.Context, modelID string, genReq GenerationRequest) (string, error) {
	messages := make([]openAIChatMessage, 0, 2)
	if genReq.SystemPrompt != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: genReq.SystemPrompt})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: genReq.Prompt})

	reqBody, err := json.Marshal(openAIChatRequest{
		Model:          modelID,
		Messages:       messages,
		MaxTokens:      genReq.MaxTokens,
		Temperature:    genReq.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return "", &TimeoutError{Family: FamilyOpenAI, ModelID: modelID}
		}
		return "", fmt.Errorf("openai: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Family: FamilyOpenAI, ModelID: modelID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cr openAIChatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", &ParseError{Family: FamilyOpenAI, ModelID: modelID, Reason: "response is not valid JSON"}
	}
	if cr.Error != nil {
		return "", &ParseError{Family: FamilyOpenAI, ModelID: modelID, Reason: "api error: " + cr.Error.Message}
	}
	if len(cr.Choices) == 0 {
		return "", &ParseError{Family: FamilyOpenAI, ModelID: modelID, Reason: "empty choices array"}
	}
	if cr.Choices[0].Message.Content == "" {
		return "", &ParseError{Family: FamilyOpenAI, ModelID: modelID, Reason: "empty message content"}
	}
	return cr.Choices[0].Message.Content, nil
}
