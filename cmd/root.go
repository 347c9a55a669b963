package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/catalog"
	"github.com/timvw/evidence-lens/internal/config"
	"github.com/timvw/evidence-lens/internal/extract"
	"github.com/timvw/evidence-lens/internal/llm"
	"github.com/timvw/evidence-lens/internal/logging"
	telem "github.com/timvw/evidence-lens/internal/otel"
	"github.com/timvw/evidence-lens/internal/pipeline"
	"github.com/timvw/evidence-lens/internal/provider"
	"github.com/timvw/evidence-lens/internal/settings"
)

var (
	// Per-run overrides of the stored settings.
	flagProvider   string
	flagModel      string
	flagAPIKey     string
	flagEndpoint   string
	flagMaxChars   int
	flagPromptFile string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "evidence-lens",
	Short: "Separate facts, claims and opinions on a web page with an LLM",
	Long: `evidence-lens extracts the readable text of a web page, asks an LLM to
classify its statements into facts, claims and opinions, and shows the
result on the command line or in an interactive terminal panel.

Providers: local (OpenAI-compatible server such as LM Studio or Ollama),
openai, claude, gemini, kimi_global and kimi_cn. The provider, API key,
model and prompt template are stored settings (see "settings"); the flags
below override them for a single run.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "provider for this run: "+providerList())
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model for this run (default: stored preference for the provider)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key for this run")
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "chat endpoint for this run (local provider only)")
	rootCmd.PersistentFlags().IntVar(&flagMaxChars, "max-chars", 0, "page text budget in characters for this run (minimum 1000)")
	rootCmd.PersistentFlags().StringVar(&flagPromptFile, "prompt-file", "", "read the prompt template from this file for this run")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func providerList() string {
	var s string
	for i, id := range provider.All() {
		if i > 0 {
			s += ", "
		}
		s += string(id)
	}
	return s
}

// app is the wiring shared by the commands: configuration, logging,
// telemetry and the settings store.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	tel   *telem.Telemetry
	store settings.Store
	http  *http.Client
}

// newApp loads configuration and opens the settings store. Callers must
// Close the result. quiet sends logs nowhere unless a log file is set,
// for commands that own the terminal.
func newApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	lc := logging.DefaultConfig()
	lc.Level, lc.Format, lc.File = cfg.LogLevel, cfg.LogFormat, cfg.LogFile
	if flagVerbose {
		lc.Level = "debug"
	}
	log := zap.NewNop()
	if !quiet || lc.File != "" {
		if log, err = logging.New(lc); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}
	if cfg.ConfigFile != "" {
		log.Debug("config loaded", zap.String("path", cfg.ConfigFile))
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		log.Warn("otel init failed", zap.Error(err))
	}

	store, err := settings.Open(cfg.SettingsBackend, cfg.SettingsPath)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("settings: %w", err)
	}

	return &app{
		cfg:   cfg,
		log:   log,
		tel:   tel,
		store: store,
		http:  &http.Client{Timeout: cfg.HTTPTimeoutDuration},
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing settings store", zap.Error(err))
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn("flushing telemetry", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) metrics() *telem.Metrics {
	if a.tel == nil {
		return nil
	}
	return a.tel.Metrics
}

func (a *app) llmClient() *llm.Client {
	return &llm.Client{HTTP: a.http, Logger: a.log, Metrics: a.metrics()}
}

func (a *app) catalog() *catalog.Catalog {
	return &catalog.Catalog{Lister: a.llmClient(), Store: a.store, Logger: a.log, Metrics: a.metrics()}
}

// extractor returns the configured page extractor and a function that
// releases it.
func (a *app) extractor() (extract.Extractor, func()) {
	if a.cfg.Extractor == config.ExtractorBrowser {
		b := extract.NewBrowserExtractor(a.cfg.Headless(), a.log)
		return b, func() {
			if err := b.Close(); err != nil {
				a.log.Warn("closing browser", zap.Error(err))
			}
		}
	}
	return &extract.HTTPExtractor{
		Client:    a.http,
		UserAgent: "evidence-lens/" + Version,
		Logger:    a.log,
	}, func() {}
}

func (a *app) pipeline() (*pipeline.Pipeline, func()) {
	ex, release := a.extractor()
	p := pipeline.New(ex, a.llmClient(), a.store)
	p.Cache = pipeline.NewResultCache(a.cfg.CacheTTLDuration)
	p.Logger = a.log
	p.Metrics = a.metrics()
	return p, release
}

// overrides collects the per-run flags.
func overrides() (pipeline.Overrides, error) {
	o := pipeline.Overrides{
		Provider: provider.ID(flagProvider),
		Model:    flagModel,
		APIKey:   flagAPIKey,
		Endpoint: flagEndpoint,
	}
	if o.Provider != "" && !provider.Known(o.Provider) {
		return o, fmt.Errorf("unknown provider %q (supported: %s)", flagProvider, providerList())
	}
	if flagMaxChars > 0 {
		o.MaxChars = strconv.Itoa(flagMaxChars)
	}
	if flagPromptFile != "" {
		data, err := os.ReadFile(flagPromptFile)
		if err != nil {
			return o, fmt.Errorf("reading prompt file: %w", err)
		}
		o.Template = string(data)
	}
	return o, nil
}

// run loads the stored settings and resolves them with the per-run flags.
func (a *app) run(ctx context.Context) (pipeline.Run, error) {
	o, err := overrides()
	if err != nil {
		return pipeline.Run{}, err
	}
	s, err := a.store.Load(ctx)
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("loading settings: %w", err)
	}
	return pipeline.Resolve(s, o), nil
}
