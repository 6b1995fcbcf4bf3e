package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeText removes NUL and other control characters that spreadsheet exports
// occasionally carry, keeping newlines and tabs, and trims surrounding space.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			b.WriteRune(ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

// StripTags removes anything that looks like a markup tag.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
