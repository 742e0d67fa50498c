// Package llmjson extracts and repairs JSON objects embedded in LLM chat
// completions, shared by the re-ranker and the conversational filter —
// both ask the chat model for a single JSON object and both see the same
// two failure modes: the model wraps it in a fenced code block, or it
// emits a stray unescaped quote inside a string value.
package llmjson

import "strings"

// Extract returns the JSON object embedded in an LLM response. If the
// response is fenced with triple backticks (optionally tagged `json`),
// the first fenced block is unwrapped; otherwise the first balanced
// `{...}` span found anywhere in the text is returned. Returns "" if no
// object could be located.
func Extract(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.TrimSpace(text)

	if fenced := extractFenced(text); fenced != "" {
		text = fenced
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
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

// extractFenced unwraps the first ``` or ```json fenced block in text, or
// returns "" if there is none.
func extractFenced(text string) string {
	const fence = "```"
	start := strings.Index(text, fence)
	if start == -1 {
		return ""
	}
	rest := text[start+len(fence):]
	if tag := strings.Index(rest, "\n"); tag != -1 && tag < 10 {
		// Skip an optional language tag on the fence's opening line, e.g. "json".
		rest = rest[tag+1:]
	}
	end := strings.Index(rest, fence)
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// Sanitize repairs one common LLM JSON defect: an unescaped double quote
// inside a string value that the model forgot to escape. It rewrites any
// `"` that is not immediately followed (after whitespace) by a JSON
// structural character (`:`, `,`, `]`, `}`) into `\"`, leaving correctly
// escaped quotes and structural quotes untouched.
func Sanitize(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}

// StringOrList normalizes a JSON value that the LLM may have emitted as
// either a JSON array of strings or a single comma-separated string (spec
// §9's "dynamic JSON shapes" tagged union) into a plain string slice.
func StringOrList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
