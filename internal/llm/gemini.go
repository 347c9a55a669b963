package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/timvw/evidence-lens/internal/model"
	"github.com/timvw/evidence-lens/internal/provider"
)

// geminiBackend talks to generateContent. The key always travels as the
// key query parameter, never as a header.
type geminiBackend struct{}

func (geminiBackend) Provider() provider.ID { return provider.Gemini }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// GeminiChatURL is the generateContent URL for modelName.
func GeminiChatURL(modelName, key string) string {
	return provider.GeminiModelsURL + "/" + url.PathEscape(modelName) +
		":generateContent?key=" + url.QueryEscape(key)
}

func (geminiBackend) chat(ctx context.Context, t transport, creds Credentials, prompt string) (*Completion, error) {
	p := provider.ProfileFor(provider.Gemini)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}
	if creds.Model == "" {
		return nil, missingModel(p)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding Gemini request: %w", err)
	}

	const label = "Gemini"
	raw, err := t.postJSON(ctx, GeminiChatURL(creds.Model, creds.APIKey), label, body, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: response is not valid JSON", label)
	}

	var sb strings.Builder
	for _, part := range gjson.GetBytes(raw, "candidates.0.content.parts.#.text").Array() {
		sb.WriteString(part.String())
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", label, ErrEmptyResponse)
	}

	usage := gjson.GetBytes(raw, "usageMetadata")
	return &Completion{
		Text:  sb.String(),
		Model: gjson.GetBytes(raw, "modelVersion").String(),
		Usage: model.TokenUsage{
			InputTokens:  usage.Get("promptTokenCount").Int(),
			OutputTokens: usage.Get("candidatesTokenCount").Int(),
		},
	}, nil
}

// models never propagates a fetch failure: any error or an empty list
// yields the built-in list. A missing key is still reported.
func (geminiBackend) models(ctx context.Context, t transport, creds Credentials) ([]string, error) {
	p := provider.ProfileFor(provider.Gemini)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}

	const label = "Gemini models"
	body, err := t.get(ctx, p.ModelsURL+"?key="+url.QueryEscape(creds.APIKey), label, nil)
	if err != nil {
		return provider.FallbackModels(provider.Gemini), nil
	}
	names, err := ids(body, "models.#.name", label)
	if err != nil || len(names) == 0 {
		return provider.FallbackModels(provider.Gemini), nil
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, "models/")
	}
	return names, nil
}
