package transcriber

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResult validates and decodes a provider response. Earlier model
// revisions returned a one- or two-element array of objects instead of a
// single object, so both shapes are accepted; everything else fails with
// ErrValidation.
func ParseResult(text string) (*Result, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON payload in response", ErrValidation)
	}

	var fields map[string]json.RawMessage
	if strings.HasPrefix(payload, "[") {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		fields = make(map[string]json.RawMessage)
		for _, item := range items {
			for k, v := range item {
				fields[k] = v
			}
		}
	} else {
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	reading, err := stringField(fields, "Reading")
	if err != nil {
		return nil, err
	}
	conclusion, err := stringField(fields, "Conclusion")
	if err != nil {
		return nil, err
	}

	return &Result{Reading: reading, Conclusion: conclusion, Raw: text}, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q field", ErrValidation, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrValidation, key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrValidation, key)
	}
	return s, nil
}

// extractJSON strips markdown fences and any preamble the model emitted
// despite instructions, returning the JSON payload.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	start := objStart
	end := strings.LastIndexByte(text, '}')
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(text, ']')
	}
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
