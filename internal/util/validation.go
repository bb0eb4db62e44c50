package util

import (
	"regexp"
)

var (
	pinRegex       = regexp.MustCompile(`^[0-9]{6}$`)
	sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{22,64}$`)
)

func IsValidPIN(s string) bool {
	return pinRegex.MatchString(s)
}

// IsValidSessionID checks the shape of an id before it is used as a lookup
// key or a Redis channel suffix.
func IsValidSessionID(s string) bool {
	return sessionIDRegex.MatchString(s)
}
