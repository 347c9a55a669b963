package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRender(t *testing.T) {
	vars := Vars{Title: "T", URL: "U", Text: "X"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "f-string block",
			template: "prompt = f\"\"\"\nTitle: {title}\nURL: {url}\n{text}\n\"\"\".strip()",
			want:     "Title: T\nURL: U\nX",
		},
		{
			name:     "plain triple quotes",
			template: `p = """{title}|{url}|{text}"""`,
			want:     "T|U|X",
		},
		{
			name:     "single-quote triple block",
			template: "p = F'''  {text}  '''",
			want:     "X",
		},
		{
			name:     "no block uses whole template",
			template: "  Read {title} at {url}: {text}  ",
			want:     "Read T at U: X",
		},
		{
			name:     "every occurrence replaced",
			template: "{title} {title} {text}{text}",
			want:     "T T XX",
		},
		{
			name:     "unrelated braces untouched",
			template: `{"source": {"title": "{title}"}, "n": {count}}`,
			want:     `{"source": {"title": "T"}, "n": {count}}`,
		},
		{
			name:     "first block wins, non-greedy",
			template: `a = """one {title}""" b = """two"""`,
			want:     "one T",
		},
		{
			name:     "empty template",
			template: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, vars); got != tt.want {
				t.Errorf("Render() =\n  %q\nwant:\n  %q", got, tt.want)
			}
		})
	}
}

func TestRender_MissingVars(t *testing.T) {
	got := Render("[{title}] [{url}] [{text}]", Vars{})
	if got != "[] [] []" {
		t.Errorf("Render with empty vars = %q", got)
	}
}

func TestRender_NoRecursiveSubstitution(t *testing.T) {
	got := Render("{title} / {url}", Vars{Title: "{url}", URL: "https://x"})
	if got != "{url} / https://x" {
		t.Errorf("substituted values were rescanned: %q", got)
	}
}

func TestRender_NeverExecutes(t *testing.T) {
	tmpl := `prompt = f"""{__import__('os').getcwd()} {text}"""`
	got := Render(tmpl, Vars{Text: "body"})
	if got != "{__import__('os').getcwd()} body" {
		t.Errorf("expression placeholders must stay literal, got %q", got)
	}
}

func TestDefaultTemplate(t *testing.T) {
	if DefaultTemplate == "" {
		t.Fatal("DefaultTemplate is empty; embed directive may have failed")
	}
	got := Build("", Vars{Title: "My Page", URL: "https://example.com", Text: "Body text."})

	if strings.HasPrefix(got, "prompt") || strings.HasSuffix(got, ".strip()") {
		t.Errorf("decorative python syntax leaked into the prompt: %q", got[:40])
	}
	for _, want := range []string{
		"You are an information extraction engine.",
		"Title: My Page",
		"URL: https://example.com",
		"Body text.",
		`"why_claim": string`,
		"Return ONLY the JSON object. Nothing before or after it.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered default template missing %q", want)
		}
	}
}

func TestBuild_UsesCustomTemplate(t *testing.T) {
	if got := Build("Summarize {title}", Vars{Title: "X"}); got != "Summarize X" {
		t.Errorf("Build = %q", got)
	}
	if got := Build("  \n ", Vars{}); !strings.Contains(got, "information extraction engine") {
		t.Error("blank template should fall back to the default")
	}
}

func TestBudget(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", DefaultMaxChars},
		{"30000", 30000},
		{" 5000 ", 5000},
		{"999", MinMaxChars},
		{"-4", MinMaxChars},
		{"lots", DefaultMaxChars},
	}
	for _, tt := range tests {
		if got := Budget(tt.in); got != tt.want {
			t.Errorf("Budget(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("a", 50000)
	got := Truncate(text, 30000)

	if !strings.HasSuffix(got, TruncatedMarker) {
		t.Error("expected truncation marker suffix")
	}
	// The cut keeps exactly maxChars characters, as the browser panel's
	// slice(0, maxChars) does, not maxChars+1.
	if want := 30000 + len(TruncatedMarker); len(got) != want {
		t.Errorf("len: got %d, want %d", len(got), want)
	}

	if got := Truncate("short", 30000); got != "short" {
		t.Errorf("short text changed: %q", got)
	}
	if got := Truncate("", 10); got != "" {
		t.Errorf("empty text: %q", got)
	}
	if got := Truncate(strings.Repeat("a", 1000), 1000); got != strings.Repeat("a", 1000) {
		t.Error("text exactly at the budget must not be marked")
	}
}

func TestTruncate_CountsRunes(t *testing.T) {
	got := Truncate(strings.Repeat("é", 1500), 1000)
	body := strings.TrimSuffix(got, TruncatedMarker)
	if n := utf8.RuneCountInString(body); n != 1000 {
		t.Errorf("rune count: got %d, want 1000", n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte character")
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("b", 9000)
	if got := Preview(long); len(got) != PreviewChars {
		t.Errorf("Preview len: got %d, want %d", len(got), PreviewChars)
	}
	if got := Preview("tiny"); got != "tiny" {
		t.Errorf("Preview(tiny) = %q", got)
	}
}
