// Package extract pulls the structured JSON payload out of free-form
// provider text.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the step of the pipeline that produced a payload.
type Strategy string

const (
	Verbatim Strategy = "verbatim"
	Fenced   Strategy = "fenced"
	Object   Strategy = "object"
	Array    Strategy = "array"
	Miss     Strategy = "miss"
)

// Payload is a JSON object or array found in provider text.
type Payload struct {
	Raw      json.RawMessage
	Strategy Strategy
}

var fence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// Extract tries, in order: the whole text, the first fenced block, then the
// span between the first and last brace or bracket (whichever opens first is
// tried first). Only objects and arrays count. A miss returns false.
func Extract(text string) (Payload, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Payload{Strategy: Miss}, false
	}

	if structured(trimmed) {
		return Payload{Raw: json.RawMessage(trimmed), Strategy: Verbatim}, true
	}

	if m := fence.FindStringSubmatch(trimmed); m != nil {
		if block := strings.TrimSpace(m[1]); structured(block) {
			return Payload{Raw: json.RawMessage(block), Strategy: Fenced}, true
		}
	}

	spans := []struct {
		open, close byte
		strategy    Strategy
	}{
		{'{', '}', Object},
		{'[', ']', Array},
	}
	ob, ab := strings.IndexByte(trimmed, '{'), strings.IndexByte(trimmed, '[')
	if ab >= 0 && (ob < 0 || ab < ob) {
		spans[0], spans[1] = spans[1], spans[0]
	}

	for _, sp := range spans {
		start := strings.IndexByte(trimmed, sp.open)
		end := strings.LastIndexByte(trimmed, sp.close)
		if start < 0 || end <= start {
			continue
		}
		if candidate := trimmed[start : end+1]; structured(candidate) {
			return Payload{Raw: json.RawMessage(candidate), Strategy: sp.strategy}, true
		}
	}

	return Payload{Strategy: Miss}, false
}

// Decode extracts and unmarshals into dest. It reports false on a miss or when
// the payload does not fit dest.
func Decode(text string, dest interface{}) (Strategy, bool) {
	p, ok := Extract(text)
	if !ok {
		return Miss, false
	}
	if err := json.Unmarshal(p.Raw, dest); err != nil {
		return Miss, false
	}
	return p.Strategy, true
}

func structured(s string) bool {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}
