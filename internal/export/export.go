// Package export renders an event's entrant table as a spreadsheet-friendly CSV.
//
// The format is what Czech Excel opens without an import wizard: a UTF-8 byte
// order mark, ';' as separator and every cell quoted. encoding/csv cannot be
// told to quote every cell, so cells are quoted here.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// BOM is written before the header row.
const BOM = "\uFEFF"

// Separator between cells.
const Separator = ";"

// FallbackSlug names the file of an event whose name yields an empty slug.
const FallbackSlug = "zavod"

// Header is the column header row, matching views.ExportRow field order.
var Header = []string{"#", "Jméno", "Spolek", "Kategorie", "Telefon", "E-mail", "Přítomen", "Úlovky", "Nad limit"}

// Write renders rows as CSV to w. Lines are separated by '\n' with no
// trailing newline.
func Write(w io.Writer, rows []views.ExportRow) error {
	var b strings.Builder
	b.WriteString(BOM)
	writeLine(&b, Header)
	for _, r := range rows {
		b.WriteString("\n")
		writeLine(&b, []string{
			strconv.Itoa(r.No),
			r.Name,
			r.Affiliation,
			r.Category,
			r.Phone,
			r.Email,
			yesNo(r.CheckedIn),
			strconv.Itoa(r.CatchCount),
			yesNo(r.OverLimit),
		})
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func writeLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(quote(c))
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func yesNo(v bool) string {
	if v {
		return "ano"
	}
	return "ne"
}

// Slug turns an event name into a file-name-safe token: lower case,
// diacritics stripped, every run of other characters collapsed to '-'.
// "Jarní závody 2025" becomes "jarni-zavody-2025".
func Slug(name string) string {
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(strip, strings.ToLower(name))
	if err != nil {
		plain = strings.ToLower(name)
	}

	var b strings.Builder
	dash := false
	for _, r := range plain {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// Filename returns the export file name for an event.
func Filename(eventName string) string {
	slug := Slug(eventName)
	if slug == "" {
		slug = FallbackSlug
	}
	return slug + "_ucastnici.csv"
}
