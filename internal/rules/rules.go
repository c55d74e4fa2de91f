// Package rules implements a deterministic pattern based scan of source code.
// Catalogs are plain data, one per language family, evaluated by a single
// generic loop. Scan is pure: identical input always gives identical output.
package rules

import (
	"regexp"
	"slices"
	"strings"

	"github.com/CZERTAINLY/Sniffer/internal/model"
)

// Mode says how many findings a rule may produce for one file.
type Mode int

const (
	// Presence fires once per file, at the first line containing the pattern.
	Presence Mode = iota
	// Repeated fires once for every line containing the pattern.
	Repeated
)

func (m Mode) String() string {
	switch m {
	case Presence:
		return "presence"
	case Repeated:
		return "repeated"
	}
	return "unknown"
}

// Matcher reports whether a text contains a pattern.
type Matcher interface {
	Match(s string) bool
	String() string
}

type Rule struct {
	ID          string
	Severity    model.Severity
	Mode        Mode
	Pattern     Matcher
	Message     string
	Improvement string
}

func (r Rule) finding(line int) model.Finding {
	return model.Finding{
		Severity:    r.Severity,
		Message:     r.Message,
		Line:        line,
		Rule:        r.ID,
		Improvement: r.Improvement,
	}
}

// Scan evaluates the catalog of lang against content. The result is never
// nil; an empty slice means nothing was found.
func Scan(content string, lang model.Language) []model.Finding {
	catalog := catalogs[lang]
	ret := make([]model.Finding, 0, len(catalog))
	if len(catalog) == 0 {
		return ret
	}

	lines := strings.Split(content, "\n")
	for _, r := range catalog {
		switch r.Mode {
		case Presence:
			if !r.Pattern.Match(content) {
				continue
			}
			ret = append(ret, r.finding(firstLine(lines, r.Pattern)))
		case Repeated:
			for idx, line := range lines {
				if r.Pattern.Match(line) {
					ret = append(ret, r.finding(idx+1))
				}
			}
		}
	}
	return ret
}

// Rules returns a copy of the catalog for lang.
func Rules(lang model.Language) []Rule {
	return slices.Clone(catalogs[lang])
}

// Languages with a non-empty catalog
func Languages() []model.Language {
	return []model.Language{
		model.LanguageJavaScript,
		model.LanguagePython,
		model.LanguageJava,
	}
}

// firstLine is 1-based; a pattern matching only across lines is reported at line 1
func firstLine(lines []string, m Matcher) int {
	idx := slices.IndexFunc(lines, m.Match)
	if idx < 0 {
		return 1
	}
	return idx + 1
}

type substring string

func (s substring) Match(text string) bool {
	return strings.Contains(text, string(s))
}

func (s substring) String() string {
	return string(s)
}

type anyOf []string

func (a anyOf) Match(text string) bool {
	for _, s := range a {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (a anyOf) String() string {
	return strings.Join(a, " | ")
}

type pattern struct {
	re *regexp.Regexp
}

func (p pattern) Match(text string) bool {
	return p.re.MatchString(text)
}

func (p pattern) String() string {
	return p.re.String()
}

func regex(expr string) pattern {
	return pattern{re: regexp.MustCompile(expr)}
}
