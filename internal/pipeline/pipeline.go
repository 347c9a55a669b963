// Package pipeline runs one refresh cycle: extract the page, render the
// prompt, call the provider and parse the evidence extract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/extract"
	"github.com/timvw/evidence-lens/internal/llm"
	"github.com/timvw/evidence-lens/internal/logging"
	"github.com/timvw/evidence-lens/internal/model"
	telem "github.com/timvw/evidence-lens/internal/otel"
	"github.com/timvw/evidence-lens/internal/parser"
	"github.com/timvw/evidence-lens/internal/prompt"
	"github.com/timvw/evidence-lens/internal/provider"
	"github.com/timvw/evidence-lens/internal/settings"
)

// ErrBusy is returned when a refresh is already in flight.
var ErrBusy = errors.New("a refresh is already running")

// Stage is a step of a refresh, reported through Pipeline.OnStage.
type Stage int

const (
	StageExtracting Stage = iota + 1
	StageAnalyzing
)

func (s Stage) String() string {
	switch s {
	case StageExtracting:
		return "Extracting…"
	case StageAnalyzing:
		return "Analyzing…"
	}
	return "Idle"
}

// Caller sends a prompt to a provider. *llm.Client implements it.
type Caller interface {
	Call(ctx context.Context, creds llm.Credentials, prompt string) (*llm.Completion, error)
}

// Overrides replace stored settings for a single run. Blank fields keep the
// stored value.
type Overrides struct {
	Provider provider.ID
	Model    string
	APIKey   string
	Endpoint string
	MaxChars string
	Template string
}

// Run is the effective configuration of one refresh.
type Run struct {
	Creds    llm.Credentials
	MaxChars int
	Template string
}

// Resolve merges o over s. The model falls back to the stored preference
// of the effective provider.
func Resolve(s settings.Settings, o Overrides) Run {
	s = s.WithDefaults()
	if o.Provider != "" {
		s.Provider = o.Provider
	}
	creds := llm.Credentials{
		Provider: s.Provider,
		APIKey:   strings.TrimSpace(firstNonEmpty(o.APIKey, s.APIKey)),
		Endpoint: strings.TrimSpace(firstNonEmpty(o.Endpoint, s.Endpoint)),
		Model:    strings.TrimSpace(firstNonEmpty(o.Model, s.PreferredModel())),
	}
	return Run{
		Creds:    creds,
		MaxChars: prompt.Budget(firstNonEmpty(o.MaxChars, s.MaxChars)),
		Template: firstNonEmpty(o.Template, s.PromptPy),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Pipeline runs refresh cycles. At most one runs at a time.
type Pipeline struct {
	Extractor extract.Extractor
	LLM       Caller
	Store     settings.Store
	// Cache is optional; nil or a zero TTL disables it.
	Cache   *ResultCache
	Logger  *zap.Logger
	Metrics *telem.Metrics
	// OnStage, when set, is called synchronously as each stage starts.
	OnStage func(Stage)
	// SessionID tags every refresh span of this pipeline.
	SessionID string

	mu sync.Mutex
}

// New returns a pipeline with a fresh session id.
func New(ex extract.Extractor, caller Caller, store settings.Store) *Pipeline {
	return &Pipeline{
		Extractor: ex,
		LLM:       caller,
		Store:     store,
		SessionID: uuid.NewString(),
	}
}

var tracer = otel.Tracer("evidence-lens/pipeline")

func (p *Pipeline) stage(s Stage) {
	if p.OnStage != nil {
		p.OnStage(s)
	}
}

// Refresh classifies the page at target. Any failure is returned without a
// partial result.
func (p *Pipeline) Refresh(ctx context.Context, target string, o Overrides) (*model.Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "refresh")
	span.SetAttributes(
		attribute.String("session.id", p.SessionID),
		attribute.String("url.full", target),
	)
	defer span.End()

	start := time.Now()
	res, err := p.refresh(ctx, target, o)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.OrNop(p.Logger).Warn("refresh failed", zap.String("url", target), zap.Error(err))
	case res.Cached:
		outcome = "cached"
	}
	span.SetAttributes(attribute.String("refresh.outcome", outcome))

	prov := string(o.Provider)
	if res != nil {
		prov = res.Provider
		res.DurationMs = time.Since(start).Milliseconds()
		span.SetAttributes(
			attribute.Int("evidence.facts", res.Counts.Facts),
			attribute.Int("evidence.claims", res.Counts.Claims),
			attribute.Int("evidence.opinions", res.Counts.Opinions),
		)
	}
	p.Metrics.RecordClassification(ctx, prov, outcome)
	return res, err
}

func (p *Pipeline) refresh(ctx context.Context, target string, o Overrides) (*model.Result, error) {
	s, err := p.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	run := Resolve(s, o)
	log := logging.OrNop(p.Logger).With(
		zap.String("provider", string(run.Creds.Provider)),
		zap.String("model", run.Creds.Model),
	)

	p.stage(StageExtracting)
	page, err := p.Extractor.Extract(ctx, target)
	if err != nil {
		return nil, err
	}
	if page.URL == "" {
		page.URL = target
	}
	page.Text = prompt.Truncate(page.Text, run.MaxChars)
	log.Debug("page ready", zap.String("url", page.URL), zap.Int("chars", len(page.Text)))

	text := prompt.Build(run.Template, prompt.Vars{Title: page.Title, URL: page.URL, Text: page.Text})

	cacheKey := page.URL
	cacheContent := string(run.Creds.Provider) + "\x00" + run.Creds.Model + "\x00" + text
	if cached, ok := p.Cache.Lookup(cacheKey, cacheContent); ok {
		p.Metrics.RecordResultCacheHit(ctx)
		cached.Cached = true
		log.Debug("result cache hit", zap.String("url", page.URL))
		return cached, nil
	}
	if p.Cache.Enabled() {
		p.Metrics.RecordResultCacheMiss(ctx)
	}

	p.stage(StageAnalyzing)
	comp, err := p.LLM.Call(ctx, run.Creds, text)
	if err != nil {
		return nil, err
	}

	ext, err := parser.Parse(comp.Text)
	if err != nil {
		return nil, err
	}

	res := &model.Result{
		Page:        *page,
		Preview:     prompt.Preview(page.Text),
		Extract:     ext,
		Counts:      ext.Counts(),
		Provider:    string(run.Creds.Provider),
		Model:       run.Creds.Model,
		Usage:       comp.Usage,
		EvaluatedAt: time.Now(),
	}
	p.Cache.Store(cacheKey, cacheContent, *res)
	return res, nil
}
