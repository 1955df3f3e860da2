package record

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldName normalizes a person name for duplicate detection: trimmed,
// NFC-composed and case-folded, so "Novák" typed with a combining accent
// matches "NOVÁK".
func FoldName(name string) string {
	// Casers carry state and are not safe to share between goroutines.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// SameName reports whether two names are equal after folding.
func SameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}
