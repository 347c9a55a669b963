package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/timvw/evidence-lens/internal/provider"
)

// HTTPClient is the subset of *http.Client the backends need.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// transport performs one request and turns non-2xx answers into
// *ProviderError. It never retries.
type transport struct {
	client HTTPClient
	id     provider.ID
}

func (t transport) get(ctx context.Context, url, label string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return t.do(req, label)
}

func (t transport) postJSON(ctx context.Context, url, label string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return t.do(req, label)
}

func (t transport) do(req *http.Request, label string) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", label, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: t.id, Label: label, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ids collects the non-empty strings at path, e.g. "data.#.id".
func ids(body []byte, path, label string) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", label)
	}
	var out []string
	for _, r := range gjson.GetBytes(body, path).Array() {
		if r.Type == gjson.String && r.Str != "" {
			out = append(out, r.Str)
		}
	}
	return out, nil
}
