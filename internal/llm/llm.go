// Package llm sends prompts to the supported providers and lists their
// models.
//
// Each provider speaks a different HTTP dialect (bearer vs x-api-key vs
// query-string auth, three request and response shapes). The dialects are a
// closed set of Backend variants chosen by BackendFor; Client adds the
// transport, tracing and token accounting shared by all of them.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/logging"
	"github.com/timvw/evidence-lens/internal/model"
	telem "github.com/timvw/evidence-lens/internal/otel"
	"github.com/timvw/evidence-lens/internal/provider"
)

// systemInstruction is the system message for OpenAI-compatible providers.
const systemInstruction = "Return only valid JSON that matches the schema/rules."

// Credentials are the settings a single call or model listing runs with.
type Credentials struct {
	Provider provider.ID
	APIKey   string
	// Endpoint overrides the chat URL for providers that allow it.
	Endpoint string
	Model    string
}

// Completion is the text a provider returned plus accounting.
type Completion struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Backend is one provider dialect. The set is closed: the methods are
// unexported and BackendFor is the only constructor.
type Backend interface {
	Provider() provider.ID
	chat(ctx context.Context, t transport, creds Credentials, prompt string) (*Completion, error)
	models(ctx context.Context, t transport, creds Credentials) ([]string, error)
}

// BackendFor returns the dialect for id. Unknown ids use the local backend,
// matching provider.ProfileFor.
func BackendFor(id provider.ID) Backend {
	switch id {
	case provider.Claude:
		return claudeBackend{}
	case provider.Gemini:
		return geminiBackend{}
	case provider.OpenAI, provider.KimiGlobal, provider.KimiCN:
		return compatBackend{id: id}
	default:
		return localBackend{}
	}
}

// Client dispatches calls to backends. The zero value is usable and talks
// to the real endpoints through http.DefaultClient.
type Client struct {
	HTTP    HTTPClient
	Logger  *zap.Logger
	Metrics *telem.Metrics
}

var tracer = otel.Tracer("evidence-lens/llm")

func (c *Client) transport(id provider.ID) transport {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	return transport{client: hc, id: id}
}

// Call sends prompt to the provider named in creds and returns the raw
// response text. Missing credentials fail before any request is made.
func (c *Client) Call(ctx context.Context, creds Credentials, prompt string) (*Completion, error) {
	b := BackendFor(creds.Provider)
	id := b.Provider()
	log := logging.OrNop(c.Logger).With(zap.String("provider", string(id)), zap.String("model", creds.Model))

	ctx, span := tracer.Start(ctx, "chat "+creds.Model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", string(id)),
			attribute.String("gen_ai.request.model", creds.Model),
			attribute.String("langfuse.observation.type", "generation"),
		),
	)
	defer span.End()

	if in, err := json.Marshal([]map[string]string{{"role": "user", "content": prompt}}); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(in)))
	}

	start := time.Now()
	out, err := b.chat(ctx, c.transport(id), creds, prompt)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", errorType(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("provider call failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}
	if out.Model == "" {
		out.Model = creds.Model
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", out.Model),
		attribute.Int64("gen_ai.usage.input_tokens", out.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", out.Usage.OutputTokens),
	)
	if o, err := json.Marshal([]map[string]string{{"role": "assistant", "content": out.Text}}); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(o)))
	}
	c.Metrics.RecordTokens(ctx, string(id), out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)

	log.Debug("provider call",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("input_tokens", out.Usage.InputTokens),
		zap.Int64("output_tokens", out.Usage.OutputTokens),
		zap.Int("chars", len(out.Text)),
	)
	return out, nil
}

// ListModels fetches the provider's model identifiers. Fallback lists are
// applied per provider (see the backends); errors that are not degraded
// are returned as-is.
func (c *Client) ListModels(ctx context.Context, creds Credentials) ([]string, error) {
	b := BackendFor(creds.Provider)
	id := b.Provider()

	ctx, span := tracer.Start(ctx, "models "+string(id),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("gen_ai.provider.name", string(id))),
	)
	defer span.End()

	models, err := b.models(ctx, c.transport(id), creds)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", errorType(err)))
		span.SetStatus(codes.Error, err.Error())
		logging.OrNop(c.Logger).Warn("model list failed", zap.String("provider", string(id)), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("models.count", len(models)))
	return models, nil
}

func errorType(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return "http_" + strconv.Itoa(pe.Status)
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMissingModel):
		return "missing_model"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "api_error"
	}
}
