package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities in ascending order
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// ParseSeverity maps s case-insensitively to a Severity. Common synonyms
// produced by language models are accepted as well.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical":
		return SeverityHigh, nil
	case "medium", "moderate", "warning":
		return SeverityMedium, nil
	case "low", "info":
		return SeverityLow, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	}
	return -1
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

func (s Severity) String() string {
	return string(s)
}
