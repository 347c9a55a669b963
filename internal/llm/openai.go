package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/openai/openai-go"
	"github.com/tidwall/sjson"

	"github.com/timvw/evidence-lens/internal/model"
	"github.com/timvw/evidence-lens/internal/provider"
)

// compatBackend serves the hosted OpenAI-compatible providers: openai and
// both Moonshot (Kimi) deployments. All of them require a key.
type compatBackend struct {
	id provider.ID
}

func (b compatBackend) Provider() provider.ID { return b.id }

func (b compatBackend) chat(ctx context.Context, t transport, creds Credentials, prompt string) (*Completion, error) {
	p := provider.ProfileFor(b.id)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}
	return chatCompletion(ctx, t, p.ChatEndpoint(creds.Endpoint), creds, prompt, false)
}

func (b compatBackend) models(ctx context.Context, t transport, creds Credentials) ([]string, error) {
	p := provider.ProfileFor(b.id)
	if creds.APIKey == "" {
		return nil, missingKey(p)
	}

	label := "OpenAI models"
	if provider.IsKimi(b.id) {
		label = "Kimi models"
	}
	body, err := t.get(ctx, p.ModelsURL, label, bearer(creds.APIKey))
	if err != nil {
		return nil, err
	}
	out, err := ids(body, "data.#.id", label)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && provider.IsKimi(b.id) {
		return provider.FallbackModels(b.id), nil
	}
	return out, nil
}

// localBackend is an LM Studio style server. The key is optional and the
// response is constrained with a strict JSON schema.
type localBackend struct{}

func (localBackend) Provider() provider.ID { return provider.Local }

func (localBackend) chat(ctx context.Context, t transport, creds Credentials, prompt string) (*Completion, error) {
	p := provider.ProfileFor(provider.Local)
	return chatCompletion(ctx, t, p.ChatEndpoint(creds.Endpoint), creds, prompt, true)
}

var chatCompletionsSuffix = regexp.MustCompile(`/v1/chat/completions$`)

// LocalModelsURL derives the model-list URL from a local chat endpoint.
func LocalModelsURL(chatURL string) string {
	u := chatCompletionsSuffix.ReplaceAllString(chatURL, "/v1/models")
	if u == chatURL {
		return provider.DefaultLocalModelsURL
	}
	return u
}

// models never fails: a local server is optional, so any error yields an
// empty list and the user enters a model by hand.
func (localBackend) models(ctx context.Context, t transport, creds Credentials) ([]string, error) {
	p := provider.ProfileFor(provider.Local)
	const label = "Local models"

	body, err := t.get(ctx, LocalModelsURL(p.ChatEndpoint(creds.Endpoint)), label, nil)
	if err != nil {
		return provider.FallbackModels(provider.Local), nil
	}
	out, err := ids(body, "data.#.id", label)
	if err != nil {
		return provider.FallbackModels(provider.Local), nil
	}
	return out, nil
}

func bearer(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func chatCompletion(ctx context.Context, t transport, url string, creds Credentials, prompt string, strictSchema bool) (*Completion, error) {
	body, err := chatCompletionBody(creds.Model, prompt, strictSchema)
	if err != nil {
		return nil, err
	}

	const label = "Provider"
	raw, err := t.postJSON(ctx, url, label, body, bearer(creds.APIKey))
	if err != nil {
		return nil, err
	}

	var resp openai.ChatCompletion
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", label, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%s (OpenAI-compatible): %w", label, ErrEmptyResponse)
	}
	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// chatCompletionBody encodes the chat request. An empty model is left out
// of the body entirely so local servers use whatever model is loaded.
func chatCompletionBody(modelName, prompt string, strictSchema bool) ([]byte, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	}
	if strictSchema {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   evidenceSchemaName,
					Schema: evidenceSchema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	if modelName == "" {
		if body, err = sjson.DeleteBytes(body, "model"); err != nil {
			return nil, fmt.Errorf("encoding chat request: %w", err)
		}
	}
	return body, nil
}
