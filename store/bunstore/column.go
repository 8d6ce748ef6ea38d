package bunstore

import (
	"strings"
	"unicode"
)

// toSnake converts a record field name to its snake_case column name using
// ASCII-aware rules: "createdAt" becomes "created_at" and "HTTPStatus"
// becomes "http_status". Punctuation collapses into single underscores.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower) && !lastUnderscore {
					b.WriteByte('_')
					lastUnderscore = true
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false

		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}

// columns maps record fields to column names. Fields without an explicit
// mapping are converted with toSnake.
type columns map[string]string

func (c columns) name(field string) string {
	if col, ok := c[field]; ok {
		return col
	}
	return toSnake(field)
}
