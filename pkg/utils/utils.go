package utils

import (
	"strings"
	"unicode/utf8"
)

// LimitStr returns s truncated to n runes with "..." appended if longer.
func LimitStr(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// StringContains checks if s contains any of the substrings in substr.
// An empty substring matches only an empty string. Set sensitive to true for case-sensitive match.
func StringContains(s string, sensitive bool, substr ...string) bool {
	if !sensitive {
		s = strings.ToLower(s)
	}
	for _, sub := range substr {
		if sub == "" {
			if s == "" {
				return true
			}
			continue
		}
		if !sensitive {
			sub = strings.ToLower(sub)
		}
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
