// README: Generation invoker; applies kind budgets and per-family timeouts.
package ai

import (
	"context"
	"time"
)

// Token budgets and temperatures per request kind. Schedules are long-form
// structured output; recommendations are shorter and slightly more factual.
const (
	scheduleMaxTokens       = 4000
	scheduleTemperature     = 0.7
	recommendationMaxTokens = 2000
	recommendationTemp      = 0.6
)

const scheduleSystemPrompt = `You are a professional travel itinerary planner. Generate an optimized travel itinerary in JSON form for the user's request.

Take into account:
1. Traveler ages, health conditions, and preferences
2. Local weather and seasonal characteristics
3. Transport mode and travel times
4. Opening hours and crowding at each place
5. Meal times and rest breaks

The response must be valid JSON and contain a "schedules" array.`

const recommendationSystemPrompt = `You are a local travel expert. Provide personalized recommendation details for a specific place in JSON form.

Include:
1. Reasons this place suits the traveler profile
2. Practical visiting tips
3. Best time to visit
4. Photo spots
5. Alternative places nearby

The response must be valid JSON and contain a "recommendations" object.`

// Generation timeouts per family. Claude calls run longer than OpenAI for
// comparable budgets; both are far above the selector's probe timeout.
var generationTimeouts = map[Family]time.Duration{
	FamilyOpenAI: 60 * time.Second,
	FamilyClaude: 90 * time.Second,
	FamilyGemini: 60 * time.Second,
}

// Invoker wraps adapter calls with a per-family timeout and kind-specific
// request shaping, normalizing every provider envelope to plain text.
type Invoker struct {
	adapters map[Family]ProviderAdapter
}

// NewInvoker builds an Invoker over the given adapters.
func NewInvoker(adapters []ProviderAdapter) *Invoker {
	byFamily := make(map[Family]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		byFamily[a.Family()] = a
	}
	return &Invoker{adapters: byFamily}
}

// Generate issues one provider call for the given model and returns the
// normalized text result. Errors carry the taxonomy from errors.go so callers
// can decide retry eligibility.
func (inv *Invoker) Generate(ctx context.Context, model ModelDescriptor, kind RequestKind, prompt string) (string, error) {
	adapter, ok := inv.adapters[model.Family]
	if !ok {
		return "", ErrNoAdapter
	}

	req := GenerationRequest{Prompt: prompt}
	switch kind {
	case KindSchedule:
		req.SystemPrompt = scheduleSystemPrompt
		req.MaxTokens = scheduleMaxTokens
		req.Temperature = scheduleTemperature
	default:
		req.SystemPrompt = recommendationSystemPrompt
		req.MaxTokens = recommendationMaxTokens
		req.Temperature = recommendationTemp
	}

	timeout, ok := generationTimeouts[model.Family]
	if !ok {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return adapter.Invoke(callCtx, model.ModelID, req)
}
