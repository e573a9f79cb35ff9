// README: One-shot demo of model selection and generation against live
// providers. Useful for key and quota checks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"tripgen/internal/ai"
)

func main() {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	claudeKey := os.Getenv("CLAUDE_API_KEY")
	if openaiKey == "" && claudeKey == "" {
		log.Fatal("set OPENAI_API_KEY or CLAUDE_API_KEY")
	}

	ctx := context.Background()
	var adapters []ai.ProviderAdapter
	if openaiKey != "" {
		adapters = append(adapters, ai.NewOpenAIAdapter(openaiKey))
	}
	if claudeKey != "" {
		adapters = append(adapters, ai.NewClaudeAdapter(claudeKey))
	}

	selector := ai.NewSelector(adapters)
	model, err := selector.Select(ctx, false)
	if err != nil {
		log.Fatalf("no model available: %v", err)
	}
	fmt.Printf("selected model: %s (%s)\n", model.DisplayName, model.ModelID)

	invoker := ai.NewInvoker(adapters)
	result, err := invoker.Generate(ctx, model, ai.KindRecommendation,
		"Place: Fushimi Inari Shrine (id demo)\nTraveler group: solo\nTransport: walking\nGenerate personalized recommendation details for this place.")
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	fmt.Println(result)
}
