package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Tab selects which category of the extract is listed.
type Tab string

const (
	TabFacts    Tab = "facts"
	TabClaims   Tab = "claims"
	TabOpinions Tab = "opinions"
)

// Tabs returns the tabs in display order.
func Tabs() []Tab {
	return []Tab{TabFacts, TabClaims, TabOpinions}
}

// ParseTab parses a tab name.
func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case TabFacts, "":
		return TabFacts, nil
	case TabClaims:
		return TabClaims, nil
	case TabOpinions:
		return TabOpinions, nil
	}
	return "", fmt.Errorf("unknown tab %q (supported: facts, claims, opinions)", s)
}

// Kind is the category of a single list item.
type Kind string

const (
	KindFact    Kind = "fact"
	KindClaim   Kind = "claim"
	KindOpinion Kind = "opinion"
)

// Label is the badge text for the kind.
func (k Kind) Label() string {
	return strings.ToUpper(string(k))
}

// Item is one row of the result list, flattened across categories.
type Item struct {
	Kind       Kind   `json:"kind"`
	Text       string `json:"text"`
	Evidence   string `json:"evidence,omitempty"`
	WhyClaim   string `json:"why_claim,omitempty"`
	WhyOpinion string `json:"why_opinion,omitempty"`
}

// Subtitle is the secondary line shown under the item text.
func (it Item) Subtitle() string {
	switch it.Kind {
	case KindFact:
		if it.Evidence != "" {
			return "Evidence available"
		}
		return "No evidence returned"
	case KindClaim:
		if it.WhyClaim != "" {
			return it.WhyClaim
		}
		return "Needs verification"
	default:
		if it.WhyOpinion != "" {
			return it.WhyOpinion
		}
		return "Subjective language / value judgment"
	}
}

// Matches reports whether the lowercase query q occurs in the item's JSON
// serialization. An empty query matches everything.
func (it Item) Matches(q string) bool {
	if q == "" {
		return true
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(it); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(buf.String()), q)
}

// Items returns the items of one tab. A nil extract yields no items.
func (e *EvidenceExtract) Items(tab Tab) []Item {
	if e == nil {
		return nil
	}
	var items []Item
	switch tab {
	case TabFacts:
		for _, f := range e.Facts {
			items = append(items, Item{Kind: KindFact, Text: f.Text, Evidence: f.Evidence})
		}
	case TabClaims:
		for _, c := range e.Claims {
			items = append(items, Item{Kind: KindClaim, Text: c.Text, WhyClaim: c.WhyClaim, Evidence: c.Evidence})
		}
	default:
		for _, o := range e.Opinions {
			items = append(items, Item{Kind: KindOpinion, Text: o.Text, WhyOpinion: o.WhyOpinion})
		}
	}
	return items
}

// Filter returns the items matching query, case-insensitively.
func Filter(items []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Matches(q) {
			out = append(out, it)
		}
	}
	return out
}

// ViewState is everything needed to render the result list. It is a value:
// a successful refresh replaces it wholesale through WithResult, and tab and
// search changes return a modified copy.
type ViewState struct {
	Tab    Tab
	Query  string
	Result *Result
}

// NewViewState returns the initial state: facts tab, no query, no result.
func NewViewState() ViewState {
	return ViewState{Tab: TabFacts}
}

// WithResult returns a state showing r, keeping the tab and query.
func (v ViewState) WithResult(r *Result) ViewState {
	return ViewState{Tab: v.Tab, Query: v.Query, Result: r}
}

// WithTab returns a state showing tab.
func (v ViewState) WithTab(tab Tab) ViewState {
	v.Tab = tab
	return v
}

// WithQuery returns a state filtered by q.
func (v ViewState) WithQuery(q string) ViewState {
	v.Query = q
	return v
}

// Visible returns the filtered items of the active tab.
func (v ViewState) Visible() []Item {
	if v.Result == nil {
		return nil
	}
	return Filter(v.Result.Extract.Items(v.Tab), v.Query)
}

// Counts returns the counts of the current result, zero when there is none.
func (v ViewState) Counts() Counts {
	if v.Result == nil {
		return Counts{}
	}
	return v.Result.Extract.Counts()
}
