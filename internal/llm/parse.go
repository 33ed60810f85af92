package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of a model completion. Models are asked
// for bare JSON but often wrap it in prose or a markdown code fence, so three
// strategies run in order: parse as-is, parse the first fenced block, then
// parse the substring between the first '{' and the last '}'.
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if isJSONObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		candidate := strings.TrimSpace(m[1])
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, ErrInvalidOutput
}

func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &probe) == nil
}
