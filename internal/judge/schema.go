package judge

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const checklistSchema = `{
  "type": "object",
  "required": ["checklist", "summary"],
  "properties": {
    "checklist": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["check_name", "justification", "check_pass"],
        "properties": {
          "check_name": {"type": "string", "minLength": 1},
          "justification": {"type": "string"},
          "check_pass": {"type": "boolean"}
        }
      }
    },
    "summary": {"type": "string"}
  }
}`

// CompileSchema compiles a JSON schema document.
func CompileSchema(schema string) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema: %w", err)
	}
	return compiled, nil
}

// ValidateDocument checks raw JSON against schema and returns a *ParseError on mismatch.
func ValidateDocument(schema *gojsonschema.Schema, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return &ParseError{Reason: "output is not valid JSON", Raw: raw, Err: err}
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return &ParseError{Reason: "JSON validation failed: " + strings.Join(errs, ", "), Raw: raw}
}

// StripMarkdownCodeBlock removes a surrounding ```json fence if present.
func StripMarkdownCodeBlock(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	return content
}
