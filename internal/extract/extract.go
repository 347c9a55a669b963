// Package extract pulls the visible text out of a web page.
//
// Two extractors share one heuristic: prefer <main> over <body>, drop
// script, style, noscript, nav, footer, header and aside subtrees, then
// normalise whitespace. HTTPExtractor parses fetched HTML itself;
// BrowserExtractor renders the page in headless Chrome and runs the same
// logic as an in-page script, which also sees client-rendered content.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/timvw/evidence-lens/internal/model"
)

// ErrExtraction reports that no text could be obtained from the page.
var ErrExtraction = errors.New("could not extract page text")

// RequestType is the only request the in-page extractor understands.
const RequestType = "EXTRACT_TEXT"

// Request asks a page context for its text.
type Request struct {
	Type string `json:"type"`
}

// Response is the page context's answer.
type Response struct {
	OK    bool   `json:"ok"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Page converts a response into a page, failing with ErrExtraction when the
// page reported an error.
func (r Response) Page() (*model.Page, error) {
	if !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "no response from page"
		}
		return nil, fmt.Errorf("%w: %s", ErrExtraction, msg)
	}
	return &model.Page{Title: r.Title, URL: r.URL, Text: r.Text}, nil
}

// Extractor returns the text of the page at target.
type Extractor interface {
	Extract(ctx context.Context, target string) (*model.Page, error)
}

// removedTags are dropped with their whole subtree.
var removedTags = []string{"script", "style", "noscript", "nav", "footer", "header", "aside"}

var (
	trailingBlanks = regexp.MustCompile(`[ \t]+\n`)
	manyNewlines   = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips whitespace before each newline, collapses three or more
// newlines into two and trims the result.
func Normalize(s string) string {
	s = trailingBlanks.ReplaceAllString(s, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
