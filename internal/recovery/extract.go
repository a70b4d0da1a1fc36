package recovery

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names how the candidate object text was located in the raw output.
type Strategy string

const (
	StrategyFenced    Strategy = "fenced"    // ```json ... ``` block holding an object
	StrategyEmbedded  Strategy = "embedded"  // first complete object in surrounding prose
	StrategyTruncated Strategy = "truncated" // tail from the first '{' with no complete object
	StrategyRaw       Strategy = "raw"       // no '{' at all
)

// fencedObject matches a closed code fence whose body is a brace-delimited object.
// The body is non-greedy so the first closing fence ends the match.
var fencedObject = regexp.MustCompile("```(?:[A-Za-z]+)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// maxEmbeddedProbes bounds the left-to-right decode scan on pathological input.
const maxEmbeddedProbes = 256

// extract locates the object text inside raw model output.
func extract(raw string) (string, Strategy) {
	if m := fencedObject.FindStringSubmatch(raw); m != nil {
		return m[1], StrategyFenced
	}

	if obj, ok := firstCompleteObject(raw); ok {
		return obj, StrategyEmbedded
	}

	if i := strings.IndexByte(raw, '{'); i >= 0 {
		return trimDanglingFence(raw[i:]), StrategyTruncated
	}

	return raw, StrategyRaw
}

// firstCompleteObject walks every '{' left to right and returns the first position
// from which a whole JSON object decodes. Objects containing nested braces and
// braces inside strings are handled by the decoder rather than by brace matching.
func firstCompleteObject(raw string) (string, bool) {
	offset := 0
	for probes := 0; probes < maxEmbeddedProbes; probes++ {
		i := strings.IndexByte(raw[offset:], '{')
		if i < 0 {
			return "", false
		}
		start := offset + i

		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		var obj json.RawMessage
		if err := dec.Decode(&obj); err == nil && bytes.HasPrefix(obj, []byte("{")) {
			return string(obj), true
		}
		offset = start + 1
	}
	return "", false
}

// trimDanglingFence drops an unterminated closing fence and trailing whitespace.
func trimDanglingFence(s string) string {
	s = strings.TrimRightFunc(s, isSpace)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimRightFunc(s, isSpace)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\r' || r == '\t'
}
