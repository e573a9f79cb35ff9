// README: Static model catalog with capability tags (family, tier).
package ai

// Family identifies a provider vendor. Dispatch is driven by this tag and an
// adapter registry, so a new vendor only needs a new adapter plus catalog rows.
type Family string

const (
	FamilyOpenAI Family = "openai"
	FamilyClaude Family = "claude"
	FamilyGemini Family = "gemini"
)

// Tier is a coarse performance class used by the selector preference lists.
type Tier string

const (
	TierHigh     Tier = "high"
	TierStandard Tier = "standard"
	TierLight    Tier = "light"
)

// ModelDescriptor is one catalog entry. Immutable, loaded at startup.
type ModelDescriptor struct {
	DisplayName string
	ModelID     string
	Family      Family
	Tier        Tier
}

var (
	GPT4 = ModelDescriptor{
		DisplayName: "OpenAI GPT-4",
		ModelID:     "gpt-4-turbo-preview",
		Family:      FamilyOpenAI,
		Tier:        TierHigh,
	}
	GPT35 = ModelDescriptor{
		DisplayName: "OpenAI GPT-3.5",
		ModelID:     "gpt-3.5-turbo",
		Family:      FamilyOpenAI,
		Tier:        TierStandard,
	}
	ClaudeOpus = ModelDescriptor{
		DisplayName: "Claude Opus",
		ModelID:     "claude-3-opus-20240229",
		Family:      FamilyClaude,
		Tier:        TierHigh,
	}
	ClaudeSonnet = ModelDescriptor{
		DisplayName: "Claude Sonnet",
		ModelID:     "claude-3-sonnet-20240229",
		Family:      FamilyClaude,
		Tier:        TierStandard,
	}
	ClaudeHaiku = ModelDescriptor{
		DisplayName: "Claude Haiku",
		ModelID:     "claude-3-haiku-20240307",
		Family:      FamilyClaude,
		Tier:        TierLight,
	}
	GeminiFlash = ModelDescriptor{
		DisplayName: "Gemini Flash",
		ModelID:     "gemini-2.0-flash",
		Family:      FamilyGemini,
		Tier:        TierStandard,
	}
)

// Catalog lists every model the service knows about.
var Catalog = []ModelDescriptor{GPT4, GPT35, ClaudeOpus, ClaudeSonnet, ClaudeHaiku, GeminiFlash}

// Preference orders tried by the selector. Outages are the dominant provider
// failure mode, so ordering is static rather than load-based.
var (
	HighPerformancePreference = []ModelDescriptor{GPT4, ClaudeOpus, GPT35, ClaudeSonnet}
	StandardPreference        = []ModelDescriptor{GPT35, ClaudeSonnet, ClaudeHaiku, GPT4}
)

// ByModelID looks a descriptor up in the catalog.
func ByModelID(modelID string) (ModelDescriptor, bool) {
	for _, m := range Catalog {
		if m.ModelID == modelID {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}
