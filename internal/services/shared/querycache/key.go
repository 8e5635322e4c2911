package querycache

import "strings"

// Key identifies a cached query, e.g. Key{"character", id}.
type Key []string

// String renders the key as slash-joined parts.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with every part of prefix. An empty
// prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}
