package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/timvw/evidence-lens/internal/provider"
	"github.com/timvw/evidence-lens/internal/testutil"
)

// newServer starts a test server and returns a client whose requests all
// land on it, keeping the original host, path and query.
func newServer(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return &Client{HTTP: testutil.RedirectClient(srv)}, &hits
}

func readBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return b
}

func noRequest(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s%s", r.Host, r.URL.Path)
	}
}

// --- Dispatcher ---

func TestBackendFor(t *testing.T) {
	tests := []struct {
		id   provider.ID
		want provider.ID
	}{
		{provider.Local, provider.Local},
		{provider.OpenAI, provider.OpenAI},
		{provider.Claude, provider.Claude},
		{provider.Gemini, provider.Gemini},
		{provider.KimiGlobal, provider.KimiGlobal},
		{provider.KimiCN, provider.KimiCN},
		{"mystery", provider.Local},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BackendFor(tt.id).Provider(), "BackendFor(%q)", tt.id)
	}
}

func TestCall_Claude(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "api.anthropic.com", r.Host)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body := readBody(t, r)
		assert.Equal(t, "claude-3-5-haiku-latest", gjson.GetBytes(body, "model").String())
		assert.Equal(t, int64(1024), gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
		content := gjson.GetBytes(body, "messages.0.content")
		assert.Equal(t, gjson.String, content.Type, "content must be a plain string")
		assert.Equal(t, "hello prompt", content.Str)
		assert.Len(t, gjson.GetBytes(body, "messages").Array(), 1)
		assert.False(t, gjson.GetBytes(body, "system").Exists())

		_, _ = io.WriteString(w, `{
			"model": "claude-3-5-haiku-latest",
			"content": [{"type":"text","text":"{\"facts\":"}, {"type":"text","text":"[]}"}],
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`)
	})

	out, err := c.Call(context.Background(), Credentials{
		Provider: provider.Claude,
		APIKey:   "sk-ant",
		Endpoint: "http://ignored.example/v1/messages",
		Model:    "claude-3-5-haiku-latest",
	}, "hello prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"facts":[]}`, out.Text)
	assert.Equal(t, int64(12), out.Usage.InputTokens)
	assert.Equal(t, int64(5), out.Usage.OutputTokens)
}

func TestCall_Gemini(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "generativelanguage.googleapis.com", r.Host)
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g key&x", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body := readBody(t, r)
		assert.Equal(t, "the prompt", gjson.GetBytes(body, "contents.0.parts.0.text").String())

		_, _ = io.WriteString(w, `{
			"candidates": [
				{"content": {"parts": [{"text": "{\"claims\":"}, {"text": "[]}"}]}},
				{"content": {"parts": [{"text": "ignored"}]}}
			],
			"usageMetadata": {"promptTokenCount": 30, "candidatesTokenCount": 7},
			"modelVersion": "gemini-2.0-flash"
		}`)
	})

	out, err := c.Call(context.Background(), Credentials{
		Provider: provider.Gemini,
		APIKey:   "g key&x",
		Model:    "gemini-2.0-flash",
	}, "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"claims":[]}`, out.Text)
	assert.Equal(t, int64(30), out.Usage.InputTokens)
	assert.Equal(t, "gemini-2.0-flash", out.Model)
}

func TestCall_LocalUsesStrictSchema(t *testing.T) {
	var sawBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "no key, no bearer header")
		sawBody = readBody(t, r)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"facts\":[],\"claims\":[],\"opinions\":[]}"}}]}`)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	out, err := c.Call(context.Background(), Credentials{
		Provider: provider.Local,
		Endpoint: srv.URL + "/v1/chat/completions",
	}, "p")
	require.NoError(t, err)
	assert.Equal(t, `{"facts":[],"claims":[],"opinions":[]}`, out.Text)

	assert.False(t, gjson.GetBytes(sawBody, "model").Exists(), "empty model must be omitted")
	assert.Equal(t, 0.2, gjson.GetBytes(sawBody, "temperature").Float())
	assert.Equal(t, "system", gjson.GetBytes(sawBody, "messages.0.role").String())
	assert.Equal(t, systemInstruction, gjson.GetBytes(sawBody, "messages.0.content").String())
	assert.Equal(t, "p", gjson.GetBytes(sawBody, "messages.1.content").String())

	rf := gjson.GetBytes(sawBody, "response_format")
	assert.Equal(t, "json_schema", rf.Get("type").String())
	assert.Equal(t, "evidence_extract", rf.Get("json_schema.name").String())
	assert.True(t, rf.Get("json_schema.strict").Bool())

	schema := rf.Get("json_schema.schema")
	for _, path := range []string{
		"additionalProperties",
		"properties.source.additionalProperties",
		"properties.facts.items.additionalProperties",
		"properties.claims.items.additionalProperties",
		"properties.opinions.items.additionalProperties",
	} {
		v := schema.Get(path)
		assert.True(t, v.Exists() && !v.Bool(), "%s should be false", path)
	}
	assert.Equal(t, `["text","why_claim","evidence"]`, schema.Get("properties.claims.items.required").Raw)
}

func TestCall_OpenAICompatible(t *testing.T) {
	tests := []struct {
		id   provider.ID
		host string
	}{
		{provider.OpenAI, "api.openai.com"},
		{provider.KimiGlobal, "api.moonshot.ai"},
		{provider.KimiCN, "api.moonshot.cn"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.host, r.Host)
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

				body := readBody(t, r)
				assert.Equal(t, "m1", gjson.GetBytes(body, "model").String())
				assert.False(t, gjson.GetBytes(body, "response_format").Exists())

				_, _ = io.WriteString(w, `{"model":"m1","choices":[{"message":{"content":"{}"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`)
			})

			out, err := c.Call(context.Background(), Credentials{Provider: tt.id, APIKey: "k", Model: "m1"}, "p")
			require.NoError(t, err)
			assert.Equal(t, "{}", out.Text)
			assert.Equal(t, int64(3), out.Usage.InputTokens)
		})
	}
}

func TestCall_EndpointOverride(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proxy.internal", r.Host)
		assert.Equal(t, "/openai/chat", r.URL.Path)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})
	_, err := c.Call(context.Background(), Credentials{
		Provider: provider.OpenAI, APIKey: "k", Endpoint: " https://proxy.internal/openai/chat ",
	}, "p")
	require.NoError(t, err)
}

func TestCall_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"openai no key", Credentials{Provider: provider.OpenAI, Model: "m"}, ErrMissingCredential},
		{"kimi no key", Credentials{Provider: provider.KimiCN, Model: "m"}, ErrMissingCredential},
		{"claude no key", Credentials{Provider: provider.Claude, Model: "m"}, ErrMissingCredential},
		{"claude no model", Credentials{Provider: provider.Claude, APIKey: "k"}, ErrMissingModel},
		{"gemini no key", Credentials{Provider: provider.Gemini, Model: "m"}, ErrMissingCredential},
		{"gemini no model", Credentials{Provider: provider.Gemini, APIKey: "k"}, ErrMissingModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := newServer(t, noRequest(t))
			_, err := c.Call(context.Background(), tt.creds, "p")
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, atomic.LoadInt32(hits))
		})
	}
}

func TestCall_ProviderError(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	})

	_, err := c.Call(context.Background(), Credentials{Provider: provider.OpenAI, APIKey: "k", Model: "m"}, "p")

	var pe *ProviderError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.Equal(t, "slow down", pe.Body)
	assert.Equal(t, provider.OpenAI, pe.Provider)
	assert.Equal(t, "Provider HTTP 429: slow down", err.Error())
}

func TestCall_EmptyResponse(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		body  string
	}{
		{"openai no choices", Credentials{Provider: provider.OpenAI, APIKey: "k", Model: "m"}, `{"choices":[]}`},
		{"openai empty content", Credentials{Provider: provider.OpenAI, APIKey: "k", Model: "m"}, `{"choices":[{"message":{"content":""}}]}`},
		{"claude no text blocks", Credentials{Provider: provider.Claude, APIKey: "k", Model: "m"}, `{"content":[]}`},
		{"gemini no candidates", Credentials{Provider: provider.Gemini, APIKey: "k", Model: "m"}, `{"candidates":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Call(context.Background(), tt.creds, "p")
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestCall_Canceled(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"late"}}]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, Credentials{Provider: provider.OpenAI, APIKey: "k", Model: "m"}, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "canceled", errorType(err))
}

// --- Model lists ---

func TestListModels_OpenAI(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "api.openai.com", r.Host)
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[{"id":"gpt-4o"},{"id":""},{"object":"model"},{"id":"gpt-4o-mini"}]}`)
	})
	got, err := c.ListModels(context.Background(), Credentials{Provider: provider.OpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, got)
}

func TestListModels_OpenAIErrorPropagates(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	got, err := c.ListModels(context.Background(), Credentials{Provider: provider.OpenAI, APIKey: "k"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "OpenAI models", pe.Label)
	assert.Nil(t, got)
}

func TestListModels_KimiFallsBackOnEmptyOnly(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api.moonshot.cn", r.Host)
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	got, err := c.ListModels(context.Background(), Credentials{Provider: provider.KimiCN, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"}, got)

	c, _ = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = c.ListModels(context.Background(), Credentials{Provider: provider.KimiGlobal, APIKey: "k"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Kimi models", pe.Label)
}

func TestListModels_Claude(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api.anthropic.com", r.Host)
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, provider.AnthropicVersion, r.Header.Get("anthropic-version"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	got, err := c.ListModels(context.Background(), Credentials{Provider: provider.Claude, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, provider.FallbackModels(provider.Claude), got)

	c, _ = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err = c.ListModels(context.Background(), Credentials{Provider: provider.Claude, APIKey: "k"})
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestListModels_Gemini(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("x-goog-api-key"))
		_, _ = io.WriteString(w, `{"models":[{"name":"models/gemini-2.0-flash"},{"name":"gemini-custom"},{"name":""}]}`)
	})
	got, err := c.ListModels(context.Background(), Credentials{Provider: provider.Gemini, APIKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-custom"}, got)
}

func TestListModels_GeminiNeverPropagates(t *testing.T) {
	for name, h := range map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"empty":      func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"models":[]}`) },
		"garbage":    func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `<html>`) },
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newServer(t, h)
			got, err := c.ListModels(context.Background(), Credentials{Provider: provider.Gemini, APIKey: "k"})
			require.NoError(t, err)
			assert.Equal(t, provider.FallbackModels(provider.Gemini), got)
		})
	}
}

func TestListModels_Local(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[{"id":"qwen2.5-7b"}]}`)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	got, err := c.ListModels(context.Background(), Credentials{
		Provider: provider.Local,
		APIKey:   "ignored",
		Endpoint: srv.URL + "/v1/chat/completions",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-7b"}, got)
}

func TestListModels_LocalNeverFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	got, err := c.ListModels(context.Background(), Credentials{
		Provider: provider.Local,
		Endpoint: srv.URL + "/v1/chat/completions",
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	srv.Close()
	got, err = c.ListModels(context.Background(), Credentials{
		Provider: provider.Local,
		Endpoint: srv.URL + "/v1/chat/completions",
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListModels_MissingKey(t *testing.T) {
	for _, id := range []provider.ID{provider.OpenAI, provider.KimiGlobal, provider.KimiCN, provider.Claude, provider.Gemini} {
		c, hits := newServer(t, noRequest(t))
		_, err := c.ListModels(context.Background(), Credentials{Provider: id})
		assert.ErrorIs(t, err, ErrMissingCredential, "provider %s", id)
		assert.Zero(t, atomic.LoadInt32(hits))
	}
}

func TestLocalModelsURL(t *testing.T) {
	tests := []struct {
		chat string
		want string
	}{
		{"http://127.0.0.1:1234/v1/chat/completions", "http://127.0.0.1:1234/v1/models"},
		{"http://gpu-box:8080/v1/chat/completions", "http://gpu-box:8080/v1/models"},
		{"http://gpu-box:8080/chat", provider.DefaultLocalModelsURL},
		{"http://gpu-box:8080/v1/chat/completions/", provider.DefaultLocalModelsURL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LocalModelsURL(tt.chat), "LocalModelsURL(%q)", tt.chat)
	}
}

func TestGeminiChatURL(t *testing.T) {
	got := GeminiChatURL("gemini-1.5-pro", "a b")
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent?key=a+b", got)
}
