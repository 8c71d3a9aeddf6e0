package decision

// Package decision defines the structured action the model emits each
// iteration and a parser hardened against the ways models actually wrap
// JSON: fenced code blocks, surrounding prose, and trailing commas.

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Decision is one reasoning step's outcome: either a tool invocation
// (done=false) or a final answer (done=true).
type Decision struct {
	Reasoning  string         `json:"reasoning"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Done       bool           `json:"done"`
}

// rawDecision tolerates null and mistyped fields before validation.
type rawDecision struct {
	Reasoning  *string        `json:"reasoning"`
	Tool       *string        `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Answer     *string        `json:"answer"`
	Confidence *float64       `json:"confidence"`
	Done       *bool          `json:"done"`
}

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Parse coerces raw model output into a Decision. It tries, in order:
// direct parse, first fenced code block, brace-balanced slice, and the
// brace-balanced slice with trailing commas stripped. Missing optional
// fields default (reasoning "", parameters {}, confidence 0); a missing
// or mistyped done field is a parse error.
func Parse(raw string) (*Decision, error) {
	candidates := []string{strings.TrimSpace(raw)}

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if sliced, ok := braceSlice(raw); ok {
		candidates = append(candidates, sliced)
		candidates = append(candidates, trailingComma.ReplaceAllString(sliced, "$1"))
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		d, err := parseOne(candidate)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found")
	}
	return nil, fmt.Errorf("could not parse model output as a decision: %w", lastErr)
}

func parseOne(candidate string) (*Decision, error) {
	var raw rawDecision
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, err
	}
	if raw.Done == nil {
		return nil, fmt.Errorf("missing required field 'done'")
	}

	d := &Decision{
		Parameters: map[string]any{},
		Done:       *raw.Done,
	}
	if raw.Reasoning != nil {
		d.Reasoning = *raw.Reasoning
	}
	if raw.Tool != nil {
		d.Tool = *raw.Tool
	}
	if raw.Parameters != nil {
		d.Parameters = raw.Parameters
	}
	if raw.Answer != nil {
		d.Answer = *raw.Answer
	}
	if raw.Confidence != nil {
		d.Confidence = *raw.Confidence
	}
	return d, nil
}

// braceSlice extracts the substring from the first '{' to its balancing
// '}', respecting strings and escapes.
func braceSlice(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
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
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// Validate checks the shape invariants a parsed Decision must satisfy
// before the orchestrator acts on it.
func (d *Decision) Validate() error {
	if d.Done {
		if strings.TrimSpace(d.Answer) == "" {
			return fmt.Errorf("done=true requires a non-empty answer")
		}
		return nil
	}
	if strings.TrimSpace(d.Tool) == "" {
		return fmt.Errorf("done=false requires a tool name")
	}
	return nil
}
