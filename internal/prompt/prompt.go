// Package prompt renders the user-editable instruction template.
//
// The default template is styled as a Python f-string, but it is data only:
// rendering takes the body of the first triple-quoted block and substitutes
// {title}, {url} and {text} literally. Nothing is ever evaluated.
package prompt

import (
	_ "embed"
	"regexp"
	"strings"
)

// DefaultTemplate is the built-in instruction template.
// Loaded from prompts/default.py.txt at compile time.
//
//go:embed prompts/default.py.txt
var DefaultTemplate string

// Vars are the placeholder values available to a template.
type Vars struct {
	Title string
	URL   string
	Text  string
}

// tripleQuoted matches the first """...""" or '''...''' block, optionally
// f-prefixed. RE2 has no backreferences, so each quote style is its own
// alternative.
var tripleQuoted = regexp.MustCompile(`(?s)[fF]?(?:"""(.*?)"""|'''(.*?)''')`)

// Render fills template with vars. Only the first triple-quoted block is
// used when present; otherwise the whole template is. Every occurrence of
// {title}, {url} and {text} is replaced once (substituted values are not
// rescanned) and the result is trimmed.
func Render(template string, vars Vars) string {
	body := template
	if m := tripleQuoted.FindStringSubmatchIndex(template); m != nil {
		switch {
		case m[2] >= 0:
			body = template[m[2]:m[3]]
		case m[4] >= 0:
			body = template[m[4]:m[5]]
		}
	}

	r := strings.NewReplacer(
		"{title}", vars.Title,
		"{url}", vars.URL,
		"{text}", vars.Text,
	)
	return strings.TrimSpace(r.Replace(body))
}

// Build renders template, falling back to DefaultTemplate when template is
// blank.
func Build(template string, vars Vars) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return Render(template, vars)
}
