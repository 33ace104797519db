package llm

import (
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSONObject returns the outermost {...} span, tolerating code fences
// and chatter around it.
func ExtractJSONObject(s string) (string, error) {
	return extractBetween(s, '{', '}')
}

// ExtractJSONArray returns the outermost [...] span.
func ExtractJSONArray(s string) (string, error) {
	return extractBetween(s, '[', ']')
}

func extractBetween(s string, open, close byte) (string, error) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
