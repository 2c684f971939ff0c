package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// entitiesEnvelope is the required response shape for extraction calls.
type entitiesEnvelope struct {
	Entities []RawEntity `json:"entities"`
}

// parseEntities validates an extraction response against the concept
// schema. Any violation returns a SchemaValidationError, which fails
// this concept type only.
func parseEntities(text string, schema ConceptSchema) ([]RawEntity, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, &SchemaValidationError{
			Subject: string(schema.Type),
			Reason:  "response contains no JSON object",
		}
	}

	var envelope entitiesEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, &SchemaValidationError{
			Subject: string(schema.Type),
			Reason:  fmt.Sprintf("malformed JSON: %v", err),
		}
	}
	if envelope.Entities == nil {
		return nil, &SchemaValidationError{
			Subject: string(schema.Type),
			Reason:  `missing "entities" field`,
		}
	}

	for i, e := range envelope.Entities {
		if strings.TrimSpace(e.Label) == "" {
			return nil, &SchemaValidationError{
				Subject: string(schema.Type),
				Reason:  fmt.Sprintf("entity %d has no label", i),
			}
		}
		if strings.TrimSpace(e.Definition) == "" {
			return nil, &SchemaValidationError{
				Subject: string(schema.Type),
				Reason:  fmt.Sprintf("entity %d (%s) has no definition", i, e.Label),
			}
		}
		for _, attr := range schema.RequiredAttributes {
			if strings.TrimSpace(e.Attributes[attr]) == "" {
				return nil, &SchemaValidationError{
					Subject: string(schema.Type),
					Reason:  fmt.Sprintf("entity %d (%s) missing required attribute %q", i, e.Label, attr),
				}
			}
		}
	}

	return envelope.Entities, nil
}

// extractJSONObject returns the first top-level JSON object in text.
// Models occasionally wrap the object in markdown fences or prose.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
