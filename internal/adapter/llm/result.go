package llm

import (
	"encoding/json"
	"strings"
)

// Result is the outcome of parsing a model reply: either the decoded fields
// or the raw text when the reply was not the expected JSON.
type Result[T any] struct {
	Parsed *T
	Raw    string
}

// Ok reports whether the reply decoded.
func (r Result[T]) Ok() bool { return r.Parsed != nil }

// ParseJSON decodes a model reply into T. Markdown code fences and prose
// around the JSON document are ignored.
func ParseJSON[T any](text string) Result[T] {
	raw := strings.TrimSpace(text)
	doc := extractJSON(raw)
	if doc == "" {
		return Result[T]{Raw: raw}
	}

	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return Result[T]{Raw: raw}
	}
	return Result[T]{Parsed: &v, Raw: raw}
}

func extractJSON(s string) string {
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		s = strings.TrimSpace(body)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
