package model

import (
	"time"
)

// Page is the visible text extracted from a web page.
type Page struct {
	// Title is the document title.
	Title string `json:"title"`
	// URL is the address the text was extracted from.
	URL string `json:"url"`
	// Text is the normalized visible text.
	Text string `json:"text"`
}

// Source identifies the page an extract was produced for.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Fact is a verifiable statement presented as true.
type Fact struct {
	Text     string `json:"text"`
	Evidence string `json:"evidence"`
}

// Claim is an assertion that needs external verification, is disputed, or
// is predictive.
type Claim struct {
	Text     string `json:"text"`
	WhyClaim string `json:"why_claim"`
	Evidence string `json:"evidence"`
}

// Opinion is a subjective judgment or value statement.
type Opinion struct {
	Text       string `json:"text"`
	WhyOpinion string `json:"why_opinion"`
}

// EvidenceExtract is the JSON document the model is asked to return.
// It is both the output contract in the prompt and the shape the parser
// validates.
type EvidenceExtract struct {
	Source   Source    `json:"source"`
	Facts    []Fact    `json:"facts"`
	Claims   []Claim   `json:"claims"`
	Opinions []Opinion `json:"opinions"`
}

// Normalize replaces absent arrays with empty ones so the extract always
// serializes with [] rather than null.
func (e *EvidenceExtract) Normalize() {
	if e.Facts == nil {
		e.Facts = []Fact{}
	}
	if e.Claims == nil {
		e.Claims = []Claim{}
	}
	if e.Opinions == nil {
		e.Opinions = []Opinion{}
	}
}

// Counts is the number of items per category.
type Counts struct {
	Facts    int `json:"facts"`
	Claims   int `json:"claims"`
	Opinions int `json:"opinions"`
}

// Counts returns the per-category item counts. A nil extract counts as empty.
func (e *EvidenceExtract) Counts() Counts {
	if e == nil {
		return Counts{}
	}
	return Counts{
		Facts:    len(e.Facts),
		Claims:   len(e.Claims),
		Opinions: len(e.Opinions),
	}
}

// TokenUsage tracks LLM token consumption for a single call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Result is the outcome of one refresh cycle.
type Result struct {
	// Page is the extracted page with Text already truncated to the budget.
	Page Page `json:"page"`
	// Preview is the head of the truncated text shown in the raw preview.
	Preview string `json:"preview,omitempty"`

	Extract *EvidenceExtract `json:"extract"`
	Counts  Counts           `json:"counts"`

	// Provider is the provider id used for the call.
	Provider string `json:"provider"`
	// Model is the model name sent to the provider (may be empty for local).
	Model string `json:"model"`

	Usage TokenUsage `json:"usage,omitempty"`

	// Cached is true when the extract was served from the result cache.
	Cached bool `json:"cached,omitempty"`

	// EvaluatedAt is the timestamp when the result was produced.
	EvaluatedAt time.Time `json:"evaluated_at"`
	// DurationMs is the wall-clock time for extraction + classification.
	DurationMs int64 `json:"duration_ms"`
}
