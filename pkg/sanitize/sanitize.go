// Package sanitize makes untrusted request text safe to put in log lines and
// on a terminal. Payloads routinely carry control characters and ANSI escape
// sequences; none of them may reach the output unescaped.
package sanitize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxLength = 128

const ellipsis = "..."

// Excerpt returns at most maxLen bytes of s with every non-printable rune
// replaced by a Go-style escape such as \n or \x1b. Invalid UTF-8 bytes are
// escaped as \xNN. A truncated excerpt ends in "...".
func Excerpt(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if maxLen <= len(ellipsis) {
		maxLen = len(ellipsis) + 1
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen))

	// cut is the longest prefix written so far that still leaves room for
	// the ellipsis.
	cut := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		piece := escapeRune(r, size, s[i])

		if b.Len()+len(piece) > maxLen {
			return b.String()[:cut] + ellipsis
		}
		b.WriteString(piece)
		if b.Len() <= maxLen-len(ellipsis) {
			cut = b.Len()
		}
		i += size
	}
	return b.String()
}

func escapeRune(r rune, size int, first byte) string {
	if r == utf8.RuneError && size == 1 {
		return fmt.Sprintf(`\x%02x`, first)
	}
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	}
	if unicode.IsPrint(r) || r == ' ' {
		return string(r)
	}
	if r < 0x100 {
		return fmt.Sprintf(`\x%02x`, r)
	}
	return fmt.Sprintf(`\u%04x`, r)
}

// Terminal strips ANSI escape sequences and control characters so that s can
// be printed without affecting the terminal. Tabs and newlines become spaces.
func Terminal(s string) string {
	if s == "" {
		return s
	}

	clean := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]

		if c == 0x1B {
			i++
			if i < len(s) && s[i] == '[' {
				i++
				for i < len(s) && !isCSITerminator(s[i]) {
					i++
				}
				if i < len(s) {
					i++
				}
			}
			result.WriteString("[ESC]")
			continue
		}

		switch {
		case c == '\t', c == '\n':
			result.WriteByte(' ')
		case c == '\r':
			result.WriteString("[CR]")
		case c < 0x20:
			result.WriteString("[CTRL]")
		case c == 0x7F:
			result.WriteString("[DEL]")
		default:
			result.WriteByte(c)
		}
		i++
	}

	return result.String()
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}
