// Package provider holds the static registry of supported LLM providers.
//
// Profiles are compiled-in data: chat and model-list endpoints, whether an
// API key is required, and whether the user may override the endpoint.
// Nothing in this package performs I/O.
package provider

import "strings"

// ID identifies a provider. The set is closed; see All.
type ID string

const (
	Local      ID = "local"
	OpenAI     ID = "openai"
	Claude     ID = "claude"
	Gemini     ID = "gemini"
	KimiGlobal ID = "kimi_global"
	KimiCN     ID = "kimi_cn"
)

const (
	// DefaultLocalChatURL is the LM Studio chat-completions endpoint.
	DefaultLocalChatURL = "http://127.0.0.1:1234/v1/chat/completions"
	// DefaultLocalModelsURL is used when the local chat endpoint does not
	// end in /v1/chat/completions.
	DefaultLocalModelsURL = "http://127.0.0.1:1234/v1/models"

	// GeminiModelsURL is both the model-list endpoint and the base for
	// generateContent calls.
	GeminiModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// AnthropicVersion is sent as the anthropic-version header.
	AnthropicVersion = "2023-06-01"
)

// Profile is the static description of a provider.
type Profile struct {
	ID ID
	// ChatURL is the chat endpoint. Empty when the provider has no single
	// chat URL (gemini templates it per model).
	ChatURL string
	// ModelsURL is the model-list endpoint. Empty for local, whose list URL
	// is derived from the chat endpoint.
	ModelsURL     string
	NeedsKey      bool
	FixedEndpoint bool
	Label         string
}

var profiles = map[ID]Profile{
	Local: {
		ID:      Local,
		ChatURL: DefaultLocalChatURL,
		Label:   "Local (LM Studio)",
	},
	OpenAI: {
		ID:        OpenAI,
		ChatURL:   "https://api.openai.com/v1/chat/completions",
		ModelsURL: "https://api.openai.com/v1/models",
		NeedsKey:  true,
		Label:     "OpenAI",
	},
	Claude: {
		ID:            Claude,
		ChatURL:       "https://api.anthropic.com/v1/messages",
		ModelsURL:     "https://api.anthropic.com/v1/models",
		NeedsKey:      true,
		FixedEndpoint: true,
		Label:         "Claude",
	},
	Gemini: {
		ID:            Gemini,
		ModelsURL:     GeminiModelsURL,
		NeedsKey:      true,
		FixedEndpoint: true,
		Label:         "Gemini",
	},
	KimiGlobal: {
		ID:        KimiGlobal,
		ChatURL:   "https://api.moonshot.ai/v1/chat/completions",
		ModelsURL: "https://api.moonshot.ai/v1/models",
		NeedsKey:  true,
		Label:     "Kimi Global",
	},
	KimiCN: {
		ID:        KimiCN,
		ChatURL:   "https://api.moonshot.cn/v1/chat/completions",
		ModelsURL: "https://api.moonshot.cn/v1/models",
		NeedsKey:  true,
		Label:     "Kimi China",
	},
}

var fallbackModels = map[ID][]string{
	Claude:     {"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"},
	Gemini:     {"gemini-2.0-flash", "gemini-2.0-pro", "gemini-1.5-flash", "gemini-1.5-pro"},
	KimiGlobal: kimiFallback,
	KimiCN:     kimiFallback,
}

var kimiFallback = []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"}

// All returns every known provider in display order.
func All() []ID {
	return []ID{Local, OpenAI, Claude, Gemini, KimiGlobal, KimiCN}
}

// Known reports whether id is one of the supported providers.
func Known(id ID) bool {
	_, ok := profiles[id]
	return ok
}

// ProfileFor returns the profile for id. Unknown ids get the local profile
// labelled "Local".
func ProfileFor(id ID) Profile {
	if p, ok := profiles[id]; ok {
		return p
	}
	p := profiles[Local]
	p.Label = "Local"
	return p
}

// FallbackModels returns the hardcoded model list used when live discovery
// fails. The result is a fresh slice; callers may modify it. Local and
// OpenAI have no fallback.
func FallbackModels(id ID) []string {
	src := fallbackModels[id]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// IsKimi reports whether id is one of the Moonshot deployments.
func IsKimi(id ID) bool {
	return id == KimiGlobal || id == KimiCN
}

// ChatEndpoint returns the chat URL after applying a user override.
// The override is ignored for fixed-endpoint providers and when blank.
func (p Profile) ChatEndpoint(override string) string {
	override = strings.TrimSpace(override)
	if p.FixedEndpoint || override == "" {
		return p.ChatURL
	}
	return override
}

// Hint is the one-line summary shown next to the provider selector.
func (p Profile) Hint() string {
	key := "No key required"
	if p.NeedsKey {
		key = "API key required"
	}
	endpoint := "Endpoint override allowed"
	if p.FixedEndpoint {
		endpoint = "Fixed endpoint"
	}
	return p.Label + " • " + key + " • " + endpoint
}

// EndpointPlaceholder is the hint text for the endpoint field.
func (p Profile) EndpointPlaceholder() string {
	if p.ID == Local {
		return DefaultLocalChatURL
	}
	if p.ChatURL == "" {
		return "(not used)"
	}
	return p.ChatURL
}
