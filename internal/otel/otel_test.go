package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"Authorization=Basic abc", map[string]string{"Authorization": "Basic abc"}},
		{" a = 1 , b=2=3 ", map[string]string{"a": "1", "b": "2=3"}},
		{"=novalue,noequals,x=", map[string]string{"x": ""}},
	}
	for _, tt := range tests {
		got := parseHeaders(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("parseHeaders(%q): got %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("parseHeaders(%q)[%q]: got %q, want %q", tt.raw, k, got[k], v)
			}
		}
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, OTELConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer tel.Shutdown(ctx)

	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("expected tracer and metrics even without an endpoint")
	}
	// Instruments must be usable without an exporter.
	tel.Metrics.RecordTokens(ctx, "openai", "gpt-4o-mini", 10, 20)
	tel.Metrics.RecordClassification(ctx, "openai", "ok")
	tel.Metrics.RecordModelCache(ctx, "claude", true)
	tel.Metrics.RecordModelFallback(ctx, "gemini")
	tel.Metrics.RecordResultCacheHit(ctx)
	tel.Metrics.RecordResultCacheMiss(ctx)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordTokens(ctx, "local", "", 1, 1)
	m.RecordClassification(ctx, "local", "error")
	m.RecordModelCache(ctx, "local", false)
	m.RecordModelFallback(ctx, "local")
	m.RecordResultCacheHit(ctx)
	m.RecordResultCacheMiss(ctx)

	var tel *Telemetry
	tel.Shutdown(ctx)
}

func TestInit_InvalidEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), OTELConfig{Endpoint: "http://[::1"}); err == nil {
		t.Error("expected error for malformed endpoint")
	}
}

func TestParseCollector(t *testing.T) {
	tests := []struct {
		endpoint     string
		wantHost     string
		wantPath     string
		wantInsecure bool
		wantErr      bool
	}{
		{"http://localhost:4318", "localhost:4318", "", true, false},
		{"https://cloud.langfuse.com/api/public/otel/", "cloud.langfuse.com", "/api/public/otel", false, false},
		{"localhost:4318", "", "", false, true},
		{"/just/a/path", "", "", false, true},
	}
	for _, tt := range tests {
		c, err := parseCollector(tt.endpoint, "Authorization=Basic abc")
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCollector(%q): expected error", tt.endpoint)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCollector(%q): %v", tt.endpoint, err)
			continue
		}
		if c.host != tt.wantHost || c.basePath != tt.wantPath || c.insecure != tt.wantInsecure {
			t.Errorf("parseCollector(%q): got %+v", tt.endpoint, c)
		}
		if c.headers["Authorization"] != "Basic abc" {
			t.Errorf("parseCollector(%q): headers %v", tt.endpoint, c.headers)
		}
	}
}
