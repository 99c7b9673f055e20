package fs

import (
	"fmt"
	"regexp"
	"strings"
)

// NameFilter restricts discovery to scripts matching one of a set of
// patterns. Each pattern is a regular expression applied case-insensitively
// between word boundaries, tested against both the script stem and the full
// path. A nil filter or an empty pattern set matches everything.
type NameFilter struct {
	patterns []*regexp.Regexp
}

func NewNameFilter(patterns []string) (*NameFilter, error) {
	f := &NameFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + p + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Empty reports whether the filter matches every name.
func (f *NameFilter) Empty() bool {
	return f == nil || len(f.patterns) == 0
}

func (f *NameFilter) Match(stem, path string) bool {
	if f.Empty() {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(stem) || re.MatchString(path) {
			return true
		}
	}
	return false
}
