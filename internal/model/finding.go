package model

// Finding is a single detected code smell.
// Line is 1-based and best effort only.
type Finding struct {
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Line        int      `json:"line"`
	Rule        string   `json:"rule,omitempty"`
	Improvement string   `json:"improvement,omitempty"`
}

// FilterSeverity returns findings with one of given severities.
// Empty selection returns all findings.
func FilterSeverity(findings []Finding, severities ...Severity) []Finding {
	if len(severities) == 0 {
		return findings
	}
	ret := make([]Finding, 0, len(findings))
	for _, f := range findings {
		for _, s := range severities {
			if f.Severity == s {
				ret = append(ret, f)
				break
			}
		}
	}
	return ret
}

// AtLeast returns true if any finding has a severity ranked at or above min.
func AtLeast(findings []Finding, min Severity) bool {
	for _, f := range findings {
		if f.Severity.Rank() >= min.Rank() {
			return true
		}
	}
	return false
}

func CountBySeverity(findings []Finding) map[Severity]int {
	ret := make(map[Severity]int, 3)
	for _, f := range findings {
		ret[f.Severity]++
	}
	return ret
}
