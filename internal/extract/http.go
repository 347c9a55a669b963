package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/timvw/evidence-lens/internal/logging"
	"github.com/timvw/evidence-lens/internal/model"
)

// maxBodyBytes bounds how much HTML is read from a single page.
const maxBodyBytes = 8 << 20

// HTTPClient is the subset of *http.Client the extractor needs.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPExtractor fetches a page and extracts its text without running any
// JavaScript.
type HTTPExtractor struct {
	Client    HTTPClient
	UserAgent string
	Logger    *zap.Logger
}

func (e *HTTPExtractor) Extract(ctx context.Context, target string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrExtraction, resp.StatusCode, target)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML: %v", ErrExtraction, err)
	}

	res := ExtractHTML(doc)
	res.URL = target
	if resp.Request != nil && resp.Request.URL != nil {
		res.URL = resp.Request.URL.String()
	}
	logging.OrNop(e.Logger).Debug("page extracted",
		zap.String("url", res.URL), zap.Int("chars", len(res.Text)))
	return res.Page()
}

// ExtractHTML applies the extraction heuristic to a parsed document.
func ExtractHTML(doc *html.Node) Response {
	var title string
	if t := find(doc, atom.Title); t != nil {
		title = strings.TrimSpace(collapse(textOf(t)))
	}

	root := find(doc, atom.Main)
	if root == nil {
		root = find(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	var w textWriter
	w.render(root)
	text := multiSpace.ReplaceAllString(w.sb.String(), " ")
	return Response{OK: true, Title: title, Text: Normalize(tidyLines(text))}
}

// find returns the first element with tag a in document order.
func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, a); f != nil {
			return f
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// paragraphTags are separated by a blank line, like innerText does for <p>.
var paragraphTags = []atom.Atom{
	atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
}

var blockTags = []atom.Atom{
	atom.Address, atom.Article, atom.Blockquote, atom.Dd, atom.Div, atom.Dl,
	atom.Dt, atom.Fieldset, atom.Figcaption, atom.Figure, atom.Form,
	atom.Hr, atom.Li, atom.Main, atom.Ol, atom.Pre, atom.Section,
	atom.Table, atom.Tr, atom.Ul, atom.Caption, atom.Details, atom.Summary,
}

func removed(n *html.Node) bool {
	return n.Type == html.ElementNode && slices.Contains(removedTags, n.Data)
}

// textWriter approximates innerText. Adjacent block boundaries merge into
// the largest pending break instead of adding up.
type textWriter struct {
	sb      strings.Builder
	pending int
}

func (w *textWriter) lineBreak(n int) {
	w.pending = max(w.pending, n)
}

func (w *textWriter) write(s string) {
	if w.pending > 0 || w.sb.Len() == 0 {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return
		}
		if w.sb.Len() > 0 {
			w.sb.WriteString(strings.Repeat("\n", w.pending))
		}
		w.pending = 0
	}
	w.sb.WriteString(s)
}

func (w *textWriter) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.write(collapse(n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if removed(n) {
			return
		}
	}

	breaks := 0
	switch {
	case n.DataAtom == atom.Br:
		w.write("\n")
		return
	case slices.Contains(paragraphTags, n.DataAtom):
		breaks = 2
	case slices.Contains(blockTags, n.DataAtom):
		breaks = 1
	}

	w.lineBreak(breaks)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.render(c)
	}
	w.lineBreak(breaks)
	if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
		w.write("\t")
	}
}

// collapse turns runs of whitespace into a single space, keeping one space
// at either edge so adjacent inline nodes do not run together.
func collapse(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(f, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

var multiSpace = regexp.MustCompile(` {2,}`)

// tidyLines trims leading blanks on every line; innerText never produces
// them but collapsed inline whitespace can.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, " \t")
	}
	return strings.Join(lines, "\n")
}
