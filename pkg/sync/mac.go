package sync

import (
	"strings"
	"unicode"
)

// NormalizeMAC formats a bare 12-hex-digit MAC as AA:BB:CC:DD:EE:FF.
// nil stays nil, colon-separated input passes through, and anything that is
// not 12 hex digits after removing whitespace and dashes is left untouched.
func NormalizeMAC(mac *string) *string {
	if mac == nil || strings.Contains(*mac, ":") {
		return mac
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, *mac)
	cleaned = strings.ToUpper(cleaned)
	if len(cleaned) != 12 || !isHex(cleaned) {
		return mac
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	out := b.String()
	return &out
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
