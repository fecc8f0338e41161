package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CleanJSON isolates the first JSON object in raw model output. Markdown
// fences and surrounding prose are dropped and trailing commas removed.
func CleanJSON(raw string) (string, error) {
	s := stripFences(strings.TrimSpace(raw))

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", &SchemaValidationError{Reason: "no JSON object in response", Raw: raw}
	}

	end := matchBrace(s, start)
	if end < 0 {
		return "", &SchemaValidationError{Reason: "unterminated JSON object", Raw: raw}
	}

	return removeTrailingCommas(s[start : end+1]), nil
}

// DecodeObject cleans raw and decodes it into a map. Numbers stay as
// json.Number so large identifiers keep every digit.
func DecodeObject(raw string) (map[string]any, error) {
	cleaned, err := CleanJSON(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var out map[string]any
	if decodeErr := dec.Decode(&out); decodeErr != nil {
		return nil, &SchemaValidationError{Reason: "invalid JSON: " + decodeErr.Error(), Raw: raw}
	}
	return out, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// matchBrace returns the index of the brace closing the one at start,
// ignoring braces inside strings.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func removeTrailingCommas(s string) string {
	var buf bytes.Buffer
	buf.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			buf.WriteByte(c)
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

		if c == '"' {
			inString = true
		}
		if c == ',' {
			if next := nextSignificant(s, i+1); next == '}' || next == ']' {
				continue
			}
		}
		buf.WriteByte(c)
	}
	return buf.String()
}

func nextSignificant(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}
