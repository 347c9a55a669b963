package llm

// evidenceSchema is the strict JSON schema sent to the local provider as a
// response_format constraint. Every object forbids extra properties and
// requires all of its fields.
var evidenceSchema = object(map[string]any{
	"source": object(map[string]any{
		"title": str(),
		"url":   str(),
	}, "title", "url"),
	"facts": array(object(map[string]any{
		"text":     str(),
		"evidence": str(),
	}, "text", "evidence")),
	"claims": array(object(map[string]any{
		"text":      str(),
		"why_claim": str(),
		"evidence":  str(),
	}, "text", "why_claim", "evidence")),
	"opinions": array(object(map[string]any{
		"text":        str(),
		"why_opinion": str(),
	}, "text", "why_opinion")),
}, "source", "facts", "claims", "opinions")

// evidenceSchemaName is the json_schema name sent alongside the schema.
const evidenceSchemaName = "evidence_extract"

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func str() map[string]any {
	return map[string]any{"type": "string"}
}
