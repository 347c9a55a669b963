package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/evidence-lens/internal/model"
	"github.com/timvw/evidence-lens/internal/provider"
)

func (m *panelModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	m.writeHeader(&b)
	b.WriteString(m.viewTabs())
	b.WriteString("\n")

	switch m.mode {
	case modeSearch:
		b.WriteString("  " + m.input.View() + "\n")
	case modeURL:
		b.WriteString(m.st.dim.Render("  URL: "))
		b.WriteString(m.input.View() + "\n")
	default:
		if m.view.Query != "" {
			b.WriteString(m.st.dim.Render(fmt.Sprintf("  search: %q  (Esc=clear)", m.view.Query)))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.st.header.Render(strings.Repeat("─", max(m.width, 10))))
	b.WriteString("\n")

	listHeight := m.height - 8
	var previewLines []string
	if m.preview {
		previewLines = m.previewLines(max(m.height/3, 4))
		listHeight -= len(previewLines) + 1
	}
	m.writeItems(&b, max(listHeight, 4))

	if m.preview {
		b.WriteString(m.st.header.Render(strings.Repeat("─", max(m.width, 10))))
		b.WriteString("\n")
		for _, l := range previewLines {
			b.WriteString(m.st.dim.Render(l))
			b.WriteString("\n")
		}
	}

	m.writeFooter(&b)
	return b.String()
}

func (m *panelModel) writeHeader(b *strings.Builder) {
	b.WriteString(m.st.title.Render("Evidence Lens"))
	b.WriteString("  ")
	switch m.mode {
	case modeSearch:
		b.WriteString(m.st.dim.Render("type to filter  Enter=keep  Esc=clear"))
	case modeURL:
		b.WriteString(m.st.dim.Render("Enter=analyze  Esc=cancel"))
	default:
		b.WriteString(m.st.dim.Render("r=refresh  1-3/Tab=tabs  /=search  Enter=expand  p=preview  m=models  [ ]=model  u=url  q=quit"))
	}
	b.WriteString("\n")

	p := provider.ProfileFor(m.provider)
	modelName := m.options.Choice()
	if m.overrides.Model != "" {
		modelName = m.overrides.Model
	}
	if modelName == "" {
		modelName = "Select model…"
	}
	line := fmt.Sprintf("  %s • %s", p.Label, modelName)
	if m.loadingModels {
		line += " (loading models)"
	}
	b.WriteString(m.st.text.Render(line))
	b.WriteString("\n")

	page := m.url
	if r := m.view.Result; r != nil && r.Page.Title != "" {
		page = r.Page.Title + " · " + r.Page.URL
	}
	if page == "" {
		page = "no page (press u)"
	}
	b.WriteString(m.st.dim.Render("  " + truncate(page, max(m.width-4, 10))))
	b.WriteString("\n")
}

func (m *panelModel) viewTabs() string {
	counts := m.view.Counts()
	labels := map[model.Tab]string{
		model.TabFacts:    fmt.Sprintf("1 Facts (%d)", counts.Facts),
		model.TabClaims:   fmt.Sprintf("2 Claims (%d)", counts.Claims),
		model.TabOpinions: fmt.Sprintf("3 Opinions (%d)", counts.Opinions),
	}
	var parts []string
	for _, tab := range model.Tabs() {
		style := m.st.tab
		if tab == m.view.Tab {
			style = m.st.tabActive
		}
		parts = append(parts, style.Render(labels[tab]))
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *panelModel) badge(k model.Kind) string {
	var s lipgloss.Style
	switch k {
	case model.KindFact:
		s = m.st.fact
	case model.KindClaim:
		s = m.st.claim
	default:
		s = m.st.opinion
	}
	return s.Render(fmt.Sprintf("%-7s", k.Label()))
}

// itemLines renders one item: the text line, its subtitle and, when
// expanded, the full text and details.
func (m *panelModel) itemLines(idx int, it model.Item) []string {
	width := max(m.width-14, 20)
	cursor := "  "
	text := truncate(it.Text, width)
	if idx == m.cursor {
		cursor = m.st.title.Render("▸ ")
		text = m.st.selected.Render(text)
	} else {
		text = m.st.text.Render(text)
	}

	lines := []string{
		cursor + m.badge(it.Kind) + " " + text,
		"          " + m.st.dim.Render(truncate(it.Subtitle(), width)),
	}
	if !m.expanded[idx] {
		return lines
	}

	lines = lines[:1]
	for _, l := range wrapText(it.Text, width) {
		lines = append(lines, "          "+m.st.text.Render(l))
	}
	for _, d := range details(it) {
		for i, l := range wrapText(d.value, width-len(d.label)-2) {
			label := strings.Repeat(" ", len(d.label)+2)
			if i == 0 {
				label = d.label + ": "
			}
			lines = append(lines, "          "+m.st.dim.Render(label)+l)
		}
	}
	return lines
}

type detail struct {
	label, value string
}

func details(it model.Item) []detail {
	var out []detail
	switch it.Kind {
	case model.KindFact:
		out = append(out, detail{"Evidence", orNone(it.Evidence)})
	case model.KindClaim:
		out = append(out, detail{"Why claim", orNone(it.WhyClaim)}, detail{"Evidence", orNone(it.Evidence)})
	case model.KindOpinion:
		out = append(out, detail{"Why opinion", orNone(it.WhyOpinion)})
	}
	return out
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func (m *panelModel) writeItems(b *strings.Builder, height int) {
	if m.view.Result == nil {
		switch {
		case m.busy:
			b.WriteString("  Analyzing page...\n")
		case m.url == "":
			b.WriteString("  Press u to enter a URL.\n")
		default:
			b.WriteString("  Press r to analyze the page.\n")
		}
		return
	}

	items := m.view.Visible()
	if len(items) == 0 {
		if m.view.Query != "" {
			fmt.Fprintf(b, "  No items match %q.\n", m.view.Query)
		} else {
			b.WriteString("  No items in this category.\n")
		}
		return
	}

	// Keep the cursor visible: render from the first item whose block fits
	// together with everything down to the cursor.
	blocks := make([][]string, len(items))
	for i, it := range items {
		blocks[i] = m.itemLines(i, it)
	}
	start := 0
	for start < m.cursor && rows(blocks[start:m.cursor+1]) > height {
		start++
	}

	row := 0
	end := start
	for ; end < len(blocks) && row+len(blocks[end]) <= height; end++ {
		for _, l := range blocks[end] {
			b.WriteString(l)
			b.WriteString("\n")
		}
		row += len(blocks[end])
	}
	if end == start && end < len(blocks) {
		// A single expanded item taller than the window is cut.
		for _, l := range blocks[end][:height] {
			b.WriteString(l)
			b.WriteString("\n")
		}
		end++
	}
	if start > 0 || end < len(items) {
		b.WriteString(m.st.dim.Render(fmt.Sprintf("  showing %d-%d of %d", start+1, end, len(items))))
		b.WriteString("\n")
	}
}

func rows(blocks [][]string) int {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	return n
}

func (m *panelModel) previewLines(n int) []string {
	r := m.view.Result
	if r == nil || r.Preview == "" {
		return []string{"  (no preview)"}
	}
	var lines []string
	for _, para := range strings.Split(r.Preview, "\n") {
		for _, l := range wrapText(para, max(m.width-4, 20)) {
			lines = append(lines, "  "+l)
			if len(lines) == n {
				return lines
			}
		}
	}
	return lines
}

func (m *panelModel) writeFooter(b *strings.Builder) {
	var status string
	switch m.status {
	case StatusError, StatusModelsFailed:
		status = m.st.err.Render(m.status)
	case StatusDone, StatusModelsLoaded:
		status = m.st.done.Render(m.status)
	case StatusIdle:
		status = m.st.dim.Render(m.status)
	default:
		status = m.st.busy.Render(m.status)
	}
	b.WriteString("  " + status)

	if m.totalInputTokens > 0 || m.totalOutputTokens > 0 {
		b.WriteString(m.st.dim.Render(fmt.Sprintf("  tokens: %s in / %s out  refresh #%d",
			formatTokens(m.totalInputTokens), formatTokens(m.totalOutputTokens), m.refreshCount)))
	}
	b.WriteString("\n")

	if m.message != "" {
		for _, l := range wrapText(m.message, max(m.width-4, 20)) {
			b.WriteString(m.st.dim.Render("  " + l))
			b.WriteString("\n")
		}
	}
}

// truncate cuts a string to at most maxLen characters.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText wraps a string into lines of at most maxLen characters, breaking at spaces.
func wrapText(s string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{s}
	}
	r := []rune(s)
	var lines []string
	for len(r) > 0 {
		if len(r) <= maxLen {
			lines = append(lines, string(r))
			break
		}
		cut := maxLen
		if idx := lastSpace(r[:maxLen]); idx > 0 {
			cut = idx
		}
		lines = append(lines, string(r[:cut]))
		r = trimLeadingSpaces(r[cut:])
	}
	return lines
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

func trimLeadingSpaces(r []rune) []rune {
	for len(r) > 0 && r[0] == ' ' {
		r = r[1:]
	}
	return r
}

// formatTokens formats a token count for display (e.g., "12.3k").
func formatTokens(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 10000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.0fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
