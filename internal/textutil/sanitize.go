package textutil

import "strings"

const (
	// MaxSegmentLength caps a sanitized segment in bytes.
	MaxSegmentLength = 50
	// FallbackSegment replaces input that sanitizes to nothing.
	FallbackSegment = "Unknown"
)

// Sanitize maps text to a path segment. Characters outside [A-Za-z0-9 _-]
// are dropped (not transliterated), whitespace runs collapse to one space,
// and the result is trimmed and truncated.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case isSpace(r):
			pendingSpace = true
		}
	}
	out := b.String()
	if len(out) > MaxSegmentLength {
		out = strings.TrimRight(out[:MaxSegmentLength], " ")
	}
	if out == "" {
		return FallbackSegment
	}
	return out
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x85, 0xA0:
		return true
	}
	return false
}
