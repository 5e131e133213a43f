package school

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 80

// FoldAccents strips combining marks, so "São João" becomes "Sao Joao".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug derives the unique key of a school from its name and city.
func Slug(name, city string) string {
	base := strings.TrimSpace(name)
	if c := strings.TrimSpace(city); c != "" {
		base += " " + c
	}
	return slugify(base, maxSlugLen)
}

// WithSuffix appends a disambiguating suffix, trimming the base so the result
// still fits the slug length limit.
func WithSuffix(slug, suffix string) string {
	suffix = slugify(suffix, maxSlugLen)
	if suffix == "" {
		return slug
	}
	room := maxSlugLen - len(suffix) - 1
	if len(slug) > room {
		slug = strings.TrimRight(slug[:room], "-")
	}
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

func slugify(s string, limit int) string {
	folded := strings.ToLower(FoldAccents(s))

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	out := b.String()
	if len(out) > limit {
		out = strings.TrimRight(out[:limit], "-")
	}
	return out
}
