// README: Claude provider adapter (Anthropic messages API over raw HTTP).
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

const (
	defaultClaudeBaseURL = "https://api.anthropic.com/v1"
	claudeAPIVersion     = "2023-06-01"
)

// ClaudeAdapter talks to the Anthropic messages API.
type ClaudeAdapter struct {
	apiKey     string
	baseURL    string
	apiVersion string
	client     *http.Client
}

type ClaudeOption func(*ClaudeAdapter)

// WithClaudeBaseURL overrides the API endpoint (used by tests and proxies).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(a *ClaudeAdapter) { a.baseURL = url }
}

// WithClaudeHTTPClient overrides the HTTP client.
func WithClaudeHTTPClient(c *http.Client) ClaudeOption {
	return func(a *ClaudeAdapter) { a.client = c }
}

// NewClaudeAdapter builds an adapter for the Claude model family.
func NewClaudeAdapter(apiKey string, opts ...ClaudeOption) *ClaudeAdapter {
	a := &ClaudeAdapter{
		apiKey:     apiKey,
		baseURL:    defaultClaudeBaseURL,
		apiVersion: claudeAPIVersion,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ClaudeAdapter) Family() Family { return FamilyClaude }

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// IsAvailable issues a one-token probe request. The messages API has no cheap
// model listing, so a minimal generation stands in for it; any failure maps
// to false.
func (a *ClaudeAdapter) IsAvailable(ctx context.Context, modelID string) bool {
	probe := claudeRequest{
		Model:     modelID,
		MaxTokens: 1,
		Messages:  []claudeMessage{{Role: "user", Content: "ping"}},
	}
	body, err := json.Marshal(probe)
	if err != nil {
		return false
	}

	resp, err := a.post(ctx, body)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return false
	}
	return cr.ID != "" || len(cr.Content) > 0
}

// Invoke sends the generation request and extracts content[0].text.
func (a *ClaudeAdapter) Invoke(ctx context.Context, modelID string, genReq GenerationRequest) (string, error) {
	reqBody, err := json.Marshal(claudeRequest{
		Model:       modelID,
		MaxTokens:   genReq.MaxTokens,
		Temperature: genReq.Temperature,
		System:      genReq.SystemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: genReq.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("claude: marshal request: %w", err)
	}

	resp, err := a.post(ctx, reqBody)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return "", &TimeoutError{Family: FamilyClaude, ModelID: modelID}
		}
		return "", fmt.Errorf("claude: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("claude: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Family: FamilyClaude, ModelID: modelID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cr claudeResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", &ParseError{Family: FamilyClaude, ModelID: modelID, Reason: "response is not valid JSON"}
	}
	if cr.Error != nil {
		return "", &ParseError{Family: FamilyClaude, ModelID: modelID, Reason: "api error: " + cr.Error.Message}
	}
	if len(cr.Content) == 0 {
		return "", &ParseError{Family: FamilyClaude, ModelID: modelID, Reason: "empty content array"}
	}
	if cr.Content[0].Type != "text" || cr.Content[0].Text == "" {
		return "", &ParseError{Family: FamilyClaude, ModelID: modelID, Reason: "first content block is not text"}
	}
	return cr.Content[0].Text, nil
}

func (a *ClaudeAdapter) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", a.apiVersion)
	return a.client.Do(req)
}
