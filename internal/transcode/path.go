package transcode

// Pattern is an ordered sequence of path components; each is either a
// literal object key or the wildcard "*".
type Pattern []string

// matches implements the path-matches-pattern relation: the empty pattern
// matches any path; otherwise path must be at least as long as pattern, and
// every non-wildcard pattern element must equal the path element at the
// same position.
func matches(path []string, pattern Pattern) bool {
	if len(pattern) == 0 {
		return true
	}
	if len(path) < len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return true
}
