package mapping

import "strings"

// simpleMatch reports whether s matches pattern, where '*' matches any
// (possibly empty) substring and every other byte matches itself.
func simpleMatch(pattern, s string) bool {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == s
	}
	if !strings.HasPrefix(s, pattern[:star]) {
		return false
	}
	s = s[star:]
	pattern = pattern[star+1:]

	// Each '*'-free chunk must appear in order; the last one anchors the end.
	chunks := strings.Split(pattern, "*")
	for i, chunk := range chunks {
		if i == len(chunks)-1 {
			return strings.HasSuffix(s, chunk)
		}
		idx := strings.Index(s, chunk)
		if idx < 0 {
			return false
		}
		s = s[idx+len(chunk):]
	}
	return true
}
