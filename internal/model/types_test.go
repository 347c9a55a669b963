package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleExtract() *EvidenceExtract {
	return &EvidenceExtract{
		Source: Source{Title: "Budget 2026", URL: "https://example.com/budget"},
		Facts: []Fact{
			{Text: "The budget passed on Tuesday.", Evidence: "passed on Tuesday"},
			{Text: "Spending rose 4%.", Evidence: ""},
		},
		Claims: []Claim{
			{Text: "Taxes will fall next year.", WhyClaim: "Predictive", Evidence: "taxes will fall"},
		},
		Opinions: []Opinion{
			{Text: "The plan is reckless.", WhyOpinion: "Value judgment"},
		},
	}
}

func TestEvidenceExtract_Normalize(t *testing.T) {
	var e EvidenceExtract
	e.Normalize()

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"facts":[]`, `"claims":[]`, `"opinions":[]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in %s", want, data)
		}
	}
}

func TestEvidenceExtract_Counts(t *testing.T) {
	got := sampleExtract().Counts()
	want := Counts{Facts: 2, Claims: 1, Opinions: 1}
	if got != want {
		t.Errorf("Counts: got %+v, want %+v", got, want)
	}

	var nilExtract *EvidenceExtract
	if got := nilExtract.Counts(); got != (Counts{}) {
		t.Errorf("nil Counts: got %+v, want zero", got)
	}
}

func TestItems(t *testing.T) {
	e := sampleExtract()

	facts := e.Items(TabFacts)
	if len(facts) != 2 || facts[0].Kind != KindFact {
		t.Fatalf("facts: got %+v", facts)
	}
	if facts[0].Subtitle() != "Evidence available" {
		t.Errorf("fact subtitle: got %q", facts[0].Subtitle())
	}
	if facts[1].Subtitle() != "No evidence returned" {
		t.Errorf("fact without evidence subtitle: got %q", facts[1].Subtitle())
	}

	claims := e.Items(TabClaims)
	if len(claims) != 1 || claims[0].WhyClaim != "Predictive" {
		t.Fatalf("claims: got %+v", claims)
	}

	opinions := e.Items(TabOpinions)
	if len(opinions) != 1 || opinions[0].Kind.Label() != "OPINION" {
		t.Fatalf("opinions: got %+v", opinions)
	}
}

func TestFilter(t *testing.T) {
	items := sampleExtract().Items(TabFacts)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"empty query", "", 2},
		{"whitespace query", "   ", 2},
		{"case insensitive text", "TUESDAY", 1},
		{"matches evidence", "passed on", 1},
		{"matches kind", "fact", 2},
		{"no match", "unicorn", 0},
		{"percent sign", "4%", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filter(items, tt.query); len(got) != tt.want {
				t.Errorf("Filter(%q): got %d items, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestFilter_HTMLCharacters(t *testing.T) {
	items := []Item{{Kind: KindOpinion, Text: "x <b>bold</b> & more"}}
	if got := Filter(items, "<b>"); len(got) != 1 {
		t.Error("expected raw angle brackets to be searchable")
	}
	if got := Filter(items, "& more"); len(got) != 1 {
		t.Error("expected ampersand to be searchable")
	}
}

func TestParseTab(t *testing.T) {
	for in, want := range map[string]Tab{"": TabFacts, "Claims": TabClaims, " opinions ": TabOpinions} {
		got, err := ParseTab(in)
		if err != nil || got != want {
			t.Errorf("ParseTab(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseTab("verdicts"); err == nil {
		t.Error("expected error for unknown tab")
	}
}

func TestViewState(t *testing.T) {
	v := NewViewState()
	if v.Tab != TabFacts || v.Visible() != nil {
		t.Fatalf("initial state: %+v", v)
	}
	if v.Counts() != (Counts{}) {
		t.Error("initial counts should be zero")
	}

	v = v.WithTab(TabClaims).WithQuery("taxes")
	r := &Result{Extract: sampleExtract()}
	next := v.WithResult(r)

	if next.Tab != TabClaims || next.Query != "taxes" {
		t.Errorf("WithResult dropped tab/query: %+v", next)
	}
	if len(next.Visible()) != 1 {
		t.Errorf("Visible: got %d, want 1", len(next.Visible()))
	}
	if next.Counts().Facts != 2 {
		t.Errorf("Counts: got %+v", next.Counts())
	}
	if v.Result != nil {
		t.Error("WithResult must not mutate the receiver")
	}
}
