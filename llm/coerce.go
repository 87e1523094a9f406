package llm

import (
	"encoding/json"
	"strings"
)

// Model output is rarely clean JSON: it arrives wrapped in code fences,
// preceded by prose, or with trailing commentary. The coercion helpers
// below dig the JSON value out without ever failing; callers get a typed
// default and an ok flag instead of an error.

// nullSentinels are string values that models emit in place of absent
// data. They are canonicalized to "not present".
var nullSentinels = map[string]bool{
	"": true, "null": true, "none": true, "nil": true, "n/a": true,
}

// StripFences removes markdown code-fence markers from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line ("```json" etc.).
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// CoerceObject extracts a JSON object from noisy model output. Attempts,
// in order: the full cleaned text, the span from first '{' to last '}',
// and a brace-balanced scan. Returns nil, false when nothing parses.
func CoerceObject(raw string) (map[string]interface{}, bool) {
	cleaned := StripFences(raw)

	var obj map[string]interface{}
	if json.Unmarshal([]byte(cleaned), &obj) == nil && obj != nil {
		return obj, true
	}

	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first >= 0 && last > first {
		if json.Unmarshal([]byte(cleaned[first:last+1]), &obj) == nil && obj != nil {
			return obj, true
		}
	}

	if span, ok := balancedSpan(cleaned, '{', '}'); ok {
		if json.Unmarshal([]byte(span), &obj) == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

// CoerceArray extracts a JSON array using the same strategy as CoerceObject.
func CoerceArray(raw string) ([]interface{}, bool) {
	cleaned := StripFences(raw)

	var arr []interface{}
	if json.Unmarshal([]byte(cleaned), &arr) == nil && arr != nil {
		return arr, true
	}

	first := strings.IndexByte(cleaned, '[')
	last := strings.LastIndexByte(cleaned, ']')
	if first >= 0 && last > first {
		if json.Unmarshal([]byte(cleaned[first:last+1]), &arr) == nil && arr != nil {
			return arr, true
		}
	}

	if span, ok := balancedSpan(cleaned, '[', ']'); ok {
		if json.Unmarshal([]byte(span), &arr) == nil && arr != nil {
			return arr, true
		}
	}
	return nil, false
}

// CoerceString pulls a single string field out of a JSON object in the
// model output. Sentinel null strings collapse to absent.
func CoerceString(raw, key string) (string, bool) {
	obj, ok := CoerceObject(raw)
	if !ok {
		return "", false
	}
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if nullSentinels[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

// CoerceStringList pulls a string array out of model output, accepting
// either {key: [...]} or a bare top-level array. Non-string elements and
// sentinel nulls are dropped.
func CoerceStringList(raw, key string) []string {
	var items []interface{}
	if obj, ok := CoerceObject(raw); ok {
		if v, ok := obj[key]; ok {
			if arr, ok := v.([]interface{}); ok {
				items = arr
			}
		}
	}
	if items == nil {
		if arr, ok := CoerceArray(raw); ok {
			items = arr
		}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if nullSentinels[strings.ToLower(s)] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// balancedSpan returns the first span where open/close delimiters balance.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
