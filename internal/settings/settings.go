// Package settings persists the user's provider choice, credentials, prompt
// template and per-provider model state.
//
// There are three interchangeable backends (YAML file, SQLite, memory). All
// of them are read-modify-write with last-write-wins semantics; the stores
// serialize access within a process but make no cross-process promises.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/timvw/evidence-lens/internal/prompt"
	"github.com/timvw/evidence-lens/internal/provider"
)

// Settings are the persisted user settings. Field names match the browser
// extension storage keys.
type Settings struct {
	Provider        provider.ID              `yaml:"provider" json:"provider"`
	APIKey          string                   `yaml:"apiKey" json:"apiKey"`
	Endpoint        string                   `yaml:"endpoint" json:"endpoint"`
	MaxChars        string                   `yaml:"maxChars" json:"maxChars"`
	PromptPy        string                   `yaml:"promptPy" json:"promptPy"`
	ModelByProvider map[provider.ID]string   `yaml:"model_by_provider" json:"model_by_provider"`
	ModelsCache     map[provider.ID][]string `yaml:"models_cache" json:"models_cache"`
}

// Keys lists the settable scalar keys plus "model", which addresses
// model_by_provider for the current provider.
var Keys = []string{"provider", "apiKey", "endpoint", "maxChars", "promptPy", "model"}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		Provider:        provider.Local,
		MaxChars:        fmt.Sprint(prompt.DefaultMaxChars),
		PromptPy:        prompt.DefaultTemplate,
		ModelByProvider: map[provider.ID]string{},
		ModelsCache:     map[provider.ID][]string{},
	}
}

// WithDefaults fills blank fields from Defaults.
func (s Settings) WithDefaults() Settings {
	d := Defaults()
	if s.Provider == "" {
		s.Provider = d.Provider
	}
	if strings.TrimSpace(s.MaxChars) == "" {
		s.MaxChars = d.MaxChars
	}
	if strings.TrimSpace(s.PromptPy) == "" {
		s.PromptPy = d.PromptPy
	}
	if s.ModelByProvider == nil {
		s.ModelByProvider = d.ModelByProvider
	}
	if s.ModelsCache == nil {
		s.ModelsCache = d.ModelsCache
	}
	return s
}

// PreferredModel returns the model last chosen for the current provider.
func (s Settings) PreferredModel() string {
	return s.ModelByProvider[s.Provider]
}

// Budget returns the page-text character budget.
func (s Settings) Budget() int {
	return prompt.Budget(s.MaxChars)
}

// CachedModels returns the cached model list for id.
func (s Settings) CachedModels(id provider.ID) []string {
	return s.ModelsCache[id]
}

// Get returns the value of key. Unknown keys are an error.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case "provider":
		return string(s.Provider), nil
	case "apiKey":
		return s.APIKey, nil
	case "endpoint":
		return s.Endpoint, nil
	case "maxChars":
		return s.MaxChars, nil
	case "promptPy":
		return s.PromptPy, nil
	case "model":
		return s.PreferredModel(), nil
	}
	return "", unknownKey(key)
}

// Set assigns value to key. Provider values are validated; "model" stores
// the preference for the current provider.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "provider":
		id := provider.ID(strings.TrimSpace(value))
		if !provider.Known(id) {
			return fmt.Errorf("unknown provider %q", value)
		}
		s.Provider = id
	case "apiKey":
		s.APIKey = strings.TrimSpace(value)
	case "endpoint":
		s.Endpoint = strings.TrimSpace(value)
	case "maxChars":
		s.MaxChars = strings.TrimSpace(value)
	case "promptPy":
		s.PromptPy = value
	case "model":
		if s.ModelByProvider == nil {
			s.ModelByProvider = map[provider.ID]string{}
		}
		s.ModelByProvider[s.Provider] = strings.TrimSpace(value)
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown settings key %q (supported: %s)", key, strings.Join(Keys, ", "))
}

// Redacted returns a copy safe to print: the API key is masked.
func (s Settings) Redacted() Settings {
	if n := len(s.APIKey); n > 0 {
		tail := ""
		if n > 8 {
			tail = s.APIKey[n-4:]
		}
		s.APIKey = "****" + tail
	}
	return s
}

// CachedProviders returns the providers with a cached model list, sorted.
func (s Settings) CachedProviders() []provider.ID {
	out := make([]provider.ID, 0, len(s.ModelsCache))
	for id := range s.ModelsCache {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Store loads and saves Settings.
type Store interface {
	// Load returns the stored settings with defaults applied.
	Load(ctx context.Context) (Settings, error)
	// Save replaces the stored settings.
	Save(ctx context.Context, s Settings) error
	Close() error
}

// Update loads the settings, applies fn and saves the result.
func Update(ctx context.Context, st Store, fn func(*Settings) error) (Settings, error) {
	s, err := st.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := fn(&s); err != nil {
		return Settings{}, err
	}
	if err := st.Save(ctx, s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Open returns the store for backend ("file", "sqlite" or "memory").
// path is the file or database location; blank means DefaultPath(backend).
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		if path == "" {
			path = DefaultPath("file")
		}
		return NewFileStore(path), nil
	case "sqlite":
		if path == "" {
			path = DefaultPath("sqlite")
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown settings backend %q (supported: file, sqlite, memory)", backend)
}
