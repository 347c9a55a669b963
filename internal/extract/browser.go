package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/logging"
	"github.com/timvw/evidence-lens/internal/model"
)

// contentScript runs inside the page and answers an EXTRACT_TEXT request
// with a Response-shaped object.
const contentScript = `(req) => {
	if (!req || req.type !== "EXTRACT_TEXT") {
		return { ok: false, error: "unsupported request" };
	}
	const root = document.querySelector("main") || document.body;
	if (!root) {
		return { ok: false, error: "page has no body" };
	}
	const clone = root.cloneNode(true);
	clone.querySelectorAll("script, style, noscript, nav, footer, header, aside").forEach(n => n.remove());

	// innerText only lays out attached nodes.
	const host = document.createElement("div");
	host.style.position = "absolute";
	host.style.left = "-99999px";
	host.appendChild(clone);
	document.documentElement.appendChild(host);
	const text = clone.innerText;
	host.remove();

	return { ok: true, title: document.title || "", url: location.href, text: text };
}`

// BrowserExtractor loads pages in a headless Chrome controlled through
// go-rod. The browser is started on first use and reused until Close.
type BrowserExtractor struct {
	Headless bool
	// Settle is how long the DOM must be quiet before extraction.
	Settle time.Duration
	Logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	l       *launcher.Launcher
}

// NewBrowserExtractor returns an extractor that launches Chrome lazily.
func NewBrowserExtractor(headless bool, logger *zap.Logger) *BrowserExtractor {
	return &BrowserExtractor{Headless: headless, Settle: time.Second, Logger: logger}
}

func (b *BrowserExtractor) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(b.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	b.browser, b.l = browser, l
	logging.OrNop(b.Logger).Debug("browser started", zap.String("bin", path), zap.Bool("headless", b.Headless))
	return browser, nil
}

func (b *BrowserExtractor) Extract(ctx context.Context, target string) (*model.Page, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrExtraction, target, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", ErrExtraction, target, err)
	}
	if b.Settle > 0 {
		// Best effort: pages that never settle are extracted as they are.
		_ = page.WaitStable(b.Settle)
	}

	res, err := page.Eval(contentScript, Request{Type: RequestType})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var resp Response
	if err := res.Value.Unmarshal(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding page response: %w", ErrExtraction, err)
	}
	resp.Text = Normalize(resp.Text)

	logging.OrNop(b.Logger).Debug("page extracted",
		zap.String("url", resp.URL), zap.Int("chars", len(resp.Text)))
	return resp.Page()
}

// Close shuts the browser down if it was started.
func (b *BrowserExtractor) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.l.Kill()
	b.browser, b.l = nil, nil
	return err
}
