package fs

import (
	"path/filepath"
	"strings"
)

// vcsDirs are always excluded from deltas, whether or not they appear in the
// configured ignore patterns.
var vcsDirs = map[string]bool{".git": true}

// filterPattern is a parsed glob pattern with its matching strategy.
// Patterns without '/' match against the file's basename only; patterns with
// '/' match against the full relative path.
type filterPattern struct {
	pattern   string
	matchPath bool
}

// PathFilter decides which relative paths belong in a delta: a path is kept
// when it matches the allow patterns (an empty allow list admits everything)
// and matches none of the ignore patterns.
type PathFilter struct {
	allow  []filterPattern
	ignore []filterPattern
}

// NewPathFilter creates a PathFilter from raw glob strings. Blank entries and
// entries starting with '#' are skipped.
func NewPathFilter(allowPatterns, ignorePatterns []string) *PathFilter {
	return &PathFilter{
		allow:  parsePatterns(allowPatterns),
		ignore: parsePatterns(ignorePatterns),
	}
}

func parsePatterns(raw []string) []filterPattern {
	var patterns []filterPattern
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") {
			continue
		}
		patterns = append(patterns, filterPattern{
			pattern:   r,
			matchPath: strings.Contains(r, "/"),
		})
	}
	return patterns
}

// Match reports whether the given slash-separated relative path should be
// included.
func (f *PathFilter) Match(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, segment := range strings.Split(normalized, "/") {
		if vcsDirs[segment] {
			return false
		}
	}

	if len(f.allow) > 0 && !matchAny(f.allow, normalized) {
		return false
	}
	return !matchAny(f.ignore, normalized)
}

func matchAny(patterns []filterPattern, normalized string) bool {
	basename := filepath.Base(normalized)
	for _, p := range patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			// Bad pattern — skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
