package permission

import "github.com/bmatcuk/doublestar/v4"

// StaticFilter implements pipeline stage 1 (§4.E.1): allowedTools
// (include-list) intersected with the registered toolset, then
// disallowedTools subtracted. disallowedTools always wins over
// allowedTools. Patterns are doublestar globs, upgrading the teacher's
// stdlib path.Match so multi-segment patterns like "mcp__*__*" match
// correctly.
type StaticFilter struct {
	Allowed    []string
	Disallowed []string
}

// Allows reports whether toolName passes the static filter.
func (f StaticFilter) Allows(toolName string) bool {
	if matchesAny(f.Disallowed, toolName) {
		return false
	}
	if len(f.Allowed) == 0 {
		return true
	}
	return matchesAny(f.Allowed, toolName)
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
