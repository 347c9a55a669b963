// Package parser turns raw model output into an EvidenceExtract.
//
// Models are asked for strict JSON but routinely wrap it in prose or leave a
// trailing comma behind. Parse tries the text as-is first, then cuts the
// outermost {...} span and strips trailing commas before a single retry.
// Nothing beyond that comma repair is attempted: a response that still fails
// is reported with a bounded preview rather than guessed at.
//
// Only JSON syntax decides success. Once the text is valid, fields are
// mapped leniently: a category that is not an array is empty, and a
// non-string value where text is expected is kept as its JSON text.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/timvw/evidence-lens/internal/model"
)

// PreviewChars bounds the diagnostic preview carried by UnparsableError.
const PreviewChars = 2000

// ErrNoJSONObject is returned when the output has no {...} span at all.
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// UnparsableError reports output that is still invalid after repair.
type UnparsableError struct {
	// Preview is the start of the repaired span.
	Preview string
	Err     error
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("model returned invalid JSON even after basic repair\n\nPreview:\n%s", e.Preview)
}

func (e *UnparsableError) Unwrap() error { return e.Err }

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Parse decodes raw into an EvidenceExtract. Missing arrays come back empty.
func Parse(raw string) (*model.EvidenceExtract, error) {
	if checkSyntax(raw) == nil && gjson.Parse(raw).IsObject() {
		return extract(raw), nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}

	span := Repair(raw[start : end+1])
	if err := checkSyntax(span); err != nil {
		return nil, &UnparsableError{Preview: preview(span), Err: err}
	}
	return extract(span), nil
}

// Repair removes commas that directly precede a closing } or ]. It is a
// single textual pass and does not understand string literals.
func Repair(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

// checkSyntax returns the *json.SyntaxError for invalid input.
func checkSyntax(s string) error {
	var v json.RawMessage
	return json.Unmarshal([]byte(s), &v)
}

// extract maps a valid JSON object onto the result shape.
func extract(s string) *model.EvidenceExtract {
	doc := gjson.Parse(s)
	out := &model.EvidenceExtract{
		Source: model.Source{
			Title: text(doc.Get("source.title")),
			URL:   text(doc.Get("source.url")),
		},
	}
	for _, it := range items(doc.Get("facts")) {
		out.Facts = append(out.Facts, model.Fact{
			Text:     itemText(it),
			Evidence: text(it.Get("evidence")),
		})
	}
	for _, it := range items(doc.Get("claims")) {
		out.Claims = append(out.Claims, model.Claim{
			Text:     itemText(it),
			WhyClaim: text(it.Get("why_claim")),
			Evidence: text(it.Get("evidence")),
		})
	}
	for _, it := range items(doc.Get("opinions")) {
		out.Opinions = append(out.Opinions, model.Opinion{
			Text:       itemText(it),
			WhyOpinion: text(it.Get("why_opinion")),
		})
	}
	out.Normalize()
	return out
}

func items(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		return nil
	}
	return r.Array()
}

// itemText is the text of a category entry. Entries that are not objects
// are kept whole so the category counts match the array length.
func itemText(it gjson.Result) string {
	if it.IsObject() {
		return text(it.Get("text"))
	}
	return text(it)
}

// text returns strings as-is, other present values as their JSON text and
// null or absent values as "".
func text(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Null:
		return ""
	default:
		return r.Raw
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= PreviewChars {
		return s
	}
	return string(r[:PreviewChars])
}
