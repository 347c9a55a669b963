package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/sjson"

	"github.com/timvw/evidence-lens/internal/model"
	"github.com/timvw/evidence-lens/internal/provider"
)

// claudeMaxTokens caps the Messages API output.
const claudeMaxTokens = 1024

// claudeBackend talks to the Anthropic Messages API. The endpoint is fixed.
type claudeBackend struct{}

func (claudeBackend) Provider() provider.ID { return provider.Claude }

func claudeHeaders(key string) map[string]string {
	return map[string]string{
		"x-api-key":         key,
		"anthropic-version": provider.AnthropicVersion,
	}
}

func (claudeBackend) chat(ctx context.Context, t transport, creds Credentials, prompt string) (*Completion, error) {
	p := provider.ProfileFor(provider.Claude)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}
	if creds.Model == "" {
		return nil, missingModel(p)
	}

	body, err := json.Marshal(anthropic.MessageNewParams{
		Model:     anthropic.Model(creds.Model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding Claude request: %w", err)
	}
	// The prompt goes out as plain string content rather than a block list.
	if body, err = sjson.SetBytes(body, "messages.0.content", prompt); err != nil {
		return nil, fmt.Errorf("encoding Claude request: %w", err)
	}

	const label = "Claude"
	raw, err := t.postJSON(ctx, p.ChatURL, label, body, claudeHeaders(creds.APIKey))
	if err != nil {
		return nil, err
	}

	var msg anthropic.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", label, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", label, ErrEmptyResponse)
	}
	return &Completion{
		Text:  sb.String(),
		Model: string(msg.Model),
		Usage: model.TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

// models falls back to the built-in list when the API returns nothing.
// Request and HTTP failures propagate.
func (claudeBackend) models(ctx context.Context, t transport, creds Credentials) ([]string, error) {
	p := provider.ProfileFor(provider.Claude)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}

	const label = "Claude models"
	body, err := t.get(ctx, p.ModelsURL, label, claudeHeaders(creds.APIKey))
	if err != nil {
		return nil, err
	}
	out, err := ids(body, "data.#.id", label)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return provider.FallbackModels(provider.Claude), nil
	}
	return out, nil
}
