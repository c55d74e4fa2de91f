// Package normalize turns free text produced by a language model into
// validated findings.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/Sniffer/internal/model"
)

var (
	// greedy: from the first `[ {` up to the last `} ]`
	reArray      = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
	reArrayOpen  = regexp.MustCompile(`\[\s*\{`)
	// not an index or a type like String[]
	reEmptyArray = regexp.MustCompile(`(^|[^\w\]])\[\s*\]`)
)

// Findings extracts a JSON array of findings from raw. A whole-text parse is
// tried first, then the first array-of-objects substring. An empty array
// anywhere in raw is a valid empty result unless raw also opens an array of
// objects, which means a truncated or broken reply.
//
// Errors wrap model.ErrUnparsableResponse or model.ErrInvalidFindingShape.
func Findings(raw string) ([]model.Finding, error) {
	elements, err := extract(raw)
	if err != nil {
		return nil, err
	}

	ret := make([]model.Finding, 0, len(elements))
	for idx, elem := range elements {
		f, err := finding(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w: %w", idx, model.ErrInvalidFindingShape, err)
		}
		ret = append(ret, f)
	}
	return ret, nil
}

func extract(raw string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if elements, ok := parseArray(trimmed); ok {
		return elements, nil
	}
	if match := reArray.FindString(trimmed); match != "" {
		if elements, ok := parseArray(match); ok {
			return elements, nil
		}
	}
	if !reArrayOpen.MatchString(trimmed) && reEmptyArray.MatchString(trimmed) {
		return []json.RawMessage{}, nil
	}
	return nil, fmt.Errorf("no JSON array of findings in %d bytes of response: %w", len(raw), model.ErrUnparsableResponse)
}

func parseArray(s string) ([]json.RawMessage, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(s), &elements); err != nil {
		return nil, false
	}
	if elements == nil {
		return nil, false
	}
	return elements, true
}

type rawFinding struct {
	Severity    any             `json:"severity"`
	Message     any             `json:"message"`
	Line        json.RawMessage `json:"line"`
	Rule        any             `json:"rule"`
	Improvement any             `json:"improvement"`
}

func finding(elem json.RawMessage) (model.Finding, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(elem), []byte("{")) {
		return model.Finding{}, fmt.Errorf("not an object")
	}
	var r rawFinding
	if err := json.Unmarshal(elem, &r); err != nil {
		return model.Finding{}, err
	}

	sevText, ok := r.Severity.(string)
	if !ok || strings.TrimSpace(sevText) == "" {
		return model.Finding{}, fmt.Errorf("missing severity")
	}
	severity, err := model.ParseSeverity(sevText)
	if err != nil {
		return model.Finding{}, err
	}

	message, ok := r.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		return model.Finding{}, fmt.Errorf("missing message")
	}

	line, err := coerceLine(r.Line)
	if err != nil {
		return model.Finding{}, err
	}

	rule, _ := r.Rule.(string)
	improvement, _ := r.Improvement.(string)
	return model.Finding{
		Severity:    severity,
		Message:     message,
		Line:        line,
		Rule:        rule,
		Improvement: improvement,
	}, nil
}

// coerceLine accepts a JSON number or string. Values which are not
// a positive integer become 1.
func coerceLine(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing line")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || x < 1 || x > math.MaxInt32 {
			return 1, nil
		}
		return int(x), nil
	case string:
		return leadingInt(x), nil
	default:
		return 0, fmt.Errorf("line must be a number or a string")
	}
}

// leadingInt parses an optionally signed run of leading digits, like "12abc".
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	digits := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
		if n > math.MaxInt32 {
			return 1
		}
	}
	if digits == 0 || neg || n == 0 {
		return 1
	}
	return n
}
