// Package panel is the interactive terminal view of a page's evidence
// extract: tabs for facts, claims and opinions, search, a raw text preview
// and model selection.
package panel

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/catalog"
	"github.com/timvw/evidence-lens/internal/logging"
	"github.com/timvw/evidence-lens/internal/model"
	"github.com/timvw/evidence-lens/internal/pipeline"
	"github.com/timvw/evidence-lens/internal/provider"
	"github.com/timvw/evidence-lens/internal/settings"
)

// Status line values.
const (
	StatusIdle         = "Idle"
	StatusDone         = "Done"
	StatusError        = "Error"
	StatusModelsLoaded = "Models loaded"
	StatusModelsFailed = "Model load failed (fallback)"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeURL
)

// messages
type refreshResultMsg struct {
	result *model.Result
	err    error
}

type stageMsg pipeline.Stage

type modelsMsg struct {
	provider  provider.ID
	models    []string
	preferred string
	err       error
}

type modelSavedMsg struct {
	model string
	err   error
}

// Panel runs the interactive view.
type Panel struct {
	Pipeline  *pipeline.Pipeline
	Catalog   *catalog.Catalog
	Store     settings.Store
	Overrides pipeline.Overrides
	// URL is analyzed on start when set.
	URL    string
	Theme  Theme
	Logger *zap.Logger
}

type panelModel struct {
	ctx       context.Context
	pipe      *pipeline.Pipeline
	cat       *catalog.Catalog
	store     settings.Store
	overrides pipeline.Overrides
	log       *zap.Logger
	st        styles

	url      string
	view     model.ViewState
	cursor   int
	expanded map[int]bool // visible item index -> expanded
	mode     mode
	input    textinput.Model
	preview  bool

	// model selection
	provider provider.ID
	options  catalog.Options

	busy          bool
	loadingModels bool
	status        string
	message       string
	refreshCount  int

	totalInputTokens  int64
	totalOutputTokens int64

	width  int
	height int
}

func (p *Panel) newModel(ctx context.Context) *panelModel {
	ti := textinput.New()
	ti.CharLimit = 2048
	ti.Width = 80

	return &panelModel{
		ctx:       ctx,
		pipe:      p.Pipeline,
		cat:       p.Catalog,
		store:     p.Store,
		overrides: p.Overrides,
		log:       logging.OrNop(p.Logger),
		st:        newStyles(p.Theme),
		url:       p.URL,
		view:      model.NewViewState(),
		expanded:  make(map[int]bool),
		input:     ti,
		status:    StatusIdle,
	}
}

func (p *Panel) Run(ctx context.Context) error {
	m := p.newModel(ctx)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	p.Pipeline.OnStage = func(s pipeline.Stage) {
		prog.Send(stageMsg(s))
	}

	_, err := prog.Run()
	return err
}

func (m *panelModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.startModels(false)}
	if m.url != "" {
		cmds = append(cmds, m.startRefresh())
	}
	return tea.Batch(cmds...)
}

// startRefresh begins a refresh cycle. It returns nil while one is running.
func (m *panelModel) startRefresh() tea.Cmd {
	if m.busy {
		m.message = "Refresh already running"
		return nil
	}
	m.busy = true
	m.message = ""
	m.status = pipeline.StageExtracting.String()

	pipe, ctx, url, o := m.pipe, m.ctx, m.url, m.overrides
	return func() tea.Msg {
		res, err := pipe.Refresh(ctx, url, o)
		return refreshResultMsg{result: res, err: err}
	}
}

func (m *panelModel) startModels(force bool) tea.Cmd {
	if m.cat == nil {
		return nil
	}
	m.loadingModels = true
	cat, store, ctx, o := m.cat, m.store, m.ctx, m.overrides
	return func() tea.Msg {
		s, err := store.Load(ctx)
		if err != nil {
			return modelsMsg{err: err}
		}
		run := pipeline.Resolve(s, o)
		models, err := cat.Resolve(ctx, run.Creds, force)
		return modelsMsg{provider: run.Creds.Provider, models: models, preferred: run.Creds.Model, err: err}
	}
}

// saveModel stores name as the preferred model of the current provider and
// drops any per-run model override so the stored preference applies.
func (m *panelModel) saveModel(name string) tea.Cmd {
	m.overrides.Model = ""
	store, ctx, id := m.store, m.ctx, m.provider
	return func() tea.Msg {
		_, err := settings.Update(ctx, store, func(s *settings.Settings) error {
			if s.ModelByProvider == nil {
				s.ModelByProvider = map[provider.ID]string{}
			}
			s.ModelByProvider[id] = name
			return nil
		})
		return modelSavedMsg{model: name, err: err}
	}
}

func (m *panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-12, 20)
		return m, nil

	case stageMsg:
		if m.busy {
			m.status = pipeline.Stage(msg).String()
		}
		return m, nil

	case refreshResultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = StatusError
			m.message = msg.err.Error()
			m.view = m.view.WithResult(nil)
			m.resetList()
			return m, nil
		}
		m.status = StatusDone
		m.view = m.view.WithResult(msg.result)
		m.resetList()
		m.refreshCount++
		m.totalInputTokens += msg.result.Usage.InputTokens
		m.totalOutputTokens += msg.result.Usage.OutputTokens
		if msg.result.Cached {
			m.message = "cached result"
		}
		return m, nil

	case modelsMsg:
		m.loadingModels = false
		m.provider = msg.provider
		m.options = catalog.Selectable(msg.models, msg.preferred)
		if msg.err != nil {
			m.status = StatusModelsFailed
			m.message = msg.err.Error()
			m.log.Warn("model list failed", zap.String("provider", string(msg.provider)), zap.Error(msg.err))
			return m, nil
		}
		m.status = StatusModelsLoaded
		return m, nil

	case modelSavedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Saving model failed: %v", msg.err)
			return m, nil
		}
		m.message = fmt.Sprintf("Model: %s", msg.model)
		return m, nil
	}

	if m.mode != modeList {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *panelModel) resetList() {
	m.cursor = 0
	m.expanded = make(map[int]bool)
}

func (m *panelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeURL:
		return m.handleURLKey(msg)
	}
	return m.handleListKey(msg)
}

func (m *panelModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		if m.url == "" {
			return m, m.openInput(modeURL, "https://…", "")
		}
		return m, m.startRefresh()

	case "u":
		return m, m.openInput(modeURL, "https://…", m.url)

	case "1", "2", "3":
		m.setTab(model.Tabs()[msg.String()[0]-'1'])

	case "tab", "shift+tab":
		tabs := model.Tabs()
		i := slices.Index(tabs, m.view.Tab)
		if msg.String() == "tab" {
			i = (i + 1) % len(tabs)
		} else {
			i = (i + len(tabs) - 1) % len(tabs)
		}
		m.setTab(tabs[i])

	case "/":
		return m, m.openInput(modeSearch, "Search…", m.view.Query)

	case "esc":
		if m.view.Query != "" {
			m.view = m.view.WithQuery("")
			m.resetList()
		}

	case "m":
		m.message = ""
		return m, m.startModels(true)

	case "[", "]":
		return m, m.cycleModel(msg.String() == "]")

	case "p":
		m.preview = !m.preview

	case "enter":
		if m.cursor < len(m.view.Visible()) {
			m.expanded[m.cursor] = !m.expanded[m.cursor]
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.view.Visible())-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m *panelModel) setTab(tab model.Tab) {
	if tab == m.view.Tab {
		return
	}
	m.view = m.view.WithTab(tab)
	m.resetList()
}

func (m *panelModel) openInput(md mode, placeholder, value string) tea.Cmd {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	return textinput.Blink
}

func (m *panelModel) closeInput() {
	m.mode = modeList
	m.input.Blur()
}

// handleSearchKey filters as the user types. Enter keeps the query,
// Escape clears it.
func (m *panelModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.closeInput()
		return m, nil
	case "esc":
		m.closeInput()
		m.view = m.view.WithQuery("")
		m.resetList()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != m.view.Query {
		m.view = m.view.WithQuery(q)
		m.resetList()
	}
	return m, cmd
}

func (m *panelModel) handleURLKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		url := strings.TrimSpace(m.input.Value())
		m.closeInput()
		if url == "" {
			return m, nil
		}
		m.url = url
		return m, m.startRefresh()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycleModel selects the next (or previous) model of the loaded list and
// persists it as the provider's preference.
func (m *panelModel) cycleModel(forward bool) tea.Cmd {
	models := m.options.Models
	if len(models) == 0 {
		m.message = "No models to choose from; set one with `settings set model`"
		return nil
	}
	i := slices.Index(models, m.options.Choice())
	switch {
	case i < 0 && forward:
		i = 0
	case i < 0:
		i = len(models) - 1
	case forward:
		i = (i + 1) % len(models)
	default:
		i = (i + len(models) - 1) % len(models)
	}
	m.options = catalog.Selectable(models, models[i])
	return m.saveModel(models[i])
}
