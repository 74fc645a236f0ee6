package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// structuredPrompt appends the output contract to the system prompt. The
// schema itself travels in the prompt; conformance is enforced by
// validateStructured on the final answer.
func structuredPrompt(base string, schemaJSON []byte) string {
	instr := fmt.Sprintf(
		"Your final answer must be a single JSON object conforming to this JSON schema:\n%s\nDo not wrap the JSON in markdown fences and do not add any text outside it.",
		schemaJSON,
	)
	if base == "" {
		return instr
	}
	return base + "\n\n" + instr
}

// correctionPrompt tells the model what was wrong with its last answer.
func correctionPrompt(violations []string) string {
	return fmt.Sprintf(
		"The previous answer did not conform to the required JSON schema: %s. Answer again with a single JSON object that satisfies the schema, with no other text.",
		strings.Join(violations, "; "),
	)
}

// validateStructured checks a final answer against the output schema. It
// returns the JSON payload on success, or the list of violations.
func validateStructured(schema *gojsonschema.Schema, content string) (json.RawMessage, []string) {
	payload := strings.TrimSpace(content)
	// Models occasionally fence the JSON despite instructions.
	if strings.HasPrefix(payload, "```") {
		payload = strings.TrimPrefix(payload, "```json")
		payload = strings.TrimPrefix(payload, "```")
		payload = strings.TrimSuffix(payload, "```")
		payload = strings.TrimSpace(payload)
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, []string{fmt.Sprintf("answer is not valid JSON: %v", err)}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(decoded))
	if err != nil {
		return nil, []string{err.Error()}
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return nil, violations
	}
	return json.RawMessage(payload), nil
}
