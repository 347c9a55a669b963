package llm

import (
	"errors"
	"fmt"

	"github.com/timvw/evidence-lens/internal/provider"
)

var (
	// ErrMissingCredential is returned before any network call when a
	// provider that needs an API key has none.
	ErrMissingCredential = errors.New("API key required")

	// ErrMissingModel is returned for providers that have no default model.
	ErrMissingModel = errors.New("model name required")

	// ErrEmptyResponse is returned when a 2xx response carries no text.
	ErrEmptyResponse = errors.New("no text in provider response")
)

// ProviderError is a non-2xx answer from a chat or model-list endpoint.
type ProviderError struct {
	Provider provider.ID
	// Label names the request, e.g. "Claude" or "OpenAI models".
	Label  string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Label, e.Status, e.Body)
}

func missingKey(p provider.Profile) error {
	return fmt.Errorf("%s: %w", p.Label, ErrMissingCredential)
}

func missingModel(p provider.Profile) error {
	return fmt.Errorf("%s: %w", p.Label, ErrMissingModel)
}
