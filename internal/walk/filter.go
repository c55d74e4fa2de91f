package walk

import (
	"fmt"
	"iter"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches files of languages with a rule catalog.
var DefaultInclude = []string{"**/*.{js,jsx,ts,tsx,py,java}"}

// Filter selects entries by doublestar globs matched against Entry.RelPath.
// Explicit entries skip the include check, exclude applies to all.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter returns a Filter, an empty include means DefaultInclude.
// Patterns are validated up front.
func NewFilter(include, exclude []string) (Filter, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return Filter{}, fmt.Errorf("pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return Filter{include: include, exclude: exclude}, nil
}

// Match reports if a slash separated relative path passes the filter.
func (f Filter) Match(rel string, explicit bool) bool {
	if matchAny(f.exclude, rel) {
		return false
	}
	if explicit {
		return true
	}
	return matchAny(f.include, rel)
}

// Seq drops entries not passing the filter. Errors are passed through.
func (f Filter) Seq(seq iter.Seq2[Entry, error]) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for entry, err := range seq {
			if err == nil && !f.Match(entry.RelPath(), entry.Explicit()) {
				continue
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		// patterns are validated in NewFilter
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
