package school

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	TypePublic  = "public"
	TypePrivate = "private"
)

const (
	LevelEarlyChildhood = "early_childhood"
	LevelElementary     = "elementary"
	LevelHighSchool     = "high_school"
	LevelTechnical      = "technical"
	LevelAdult          = "adult"
)

var nonDigits = regexp.MustCompile(`\D`)

// RawSchoolRecord is one source row after header alias resolution.
type RawSchoolRecord struct {
	Row          int64
	Name         string
	PostalCode   string
	Address      string
	Neighborhood string
	City         string
	State        string
	Phone        string
	Email        string
	TypeHint     string
}

// NormalizedSchoolRecord is a row ready to be committed to the record store.
type NormalizedSchoolRecord struct {
	ImportJobID     string
	SourceRow       int64
	Name            string
	Slug            string
	PostalCode      string
	Address         string
	Neighborhood    string
	City            string
	State           string
	Phone           string
	Email           string
	SchoolType      string
	EducationLevels []string
	IsActive        bool
}

// PostalAddress is what a postal code lookup resolves to.
type PostalAddress struct {
	AddressLine  string
	Neighborhood string
	City         string
	Region       string
}

// NormalizationHint is the subset of a row sent to the text normalizer.
type NormalizationHint struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TypeHint string `json:"type,omitempty"`
}

// NormalizationResult is a best-effort correction for the hint with the same Index.
type NormalizationResult struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	SchoolType     string `json:"school_type"`
	EducationLevel string `json:"education_level"`
	Email          string `json:"email"`
}

// NeedsPostalLookup reports whether the row is missing any address part.
func (r RawSchoolRecord) NeedsPostalLookup() bool {
	return strings.TrimSpace(r.Address) == "" ||
		strings.TrimSpace(r.City) == "" ||
		strings.TrimSpace(r.State) == ""
}

// Hint builds the normalizer payload for the row.
func (r RawSchoolRecord) Hint(index int) NormalizationHint {
	return NormalizationHint{
		Index:    index,
		Name:     CleanText(r.Name),
		Email:    strings.TrimSpace(r.Email),
		TypeHint: CleanText(r.TypeHint),
	}
}

// NormalizePostalCode returns the 8 digit postal code. Codes that lost a
// leading zero in spreadsheet exports are padded back.
func NormalizePostalCode(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) == 7 {
		digits = "0" + digits
	}
	if len(digits) != 8 {
		return "", false
	}
	return digits, true
}

// FormatPostalCode renders 8 digits as 00000-000.
func FormatPostalCode(digits string) string {
	if len(digits) != 8 {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}

// FormatPhone renders Brazilian landline and mobile numbers. Anything else is
// returned trimmed.
func FormatPhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}

	switch len(digits) {
	case 11:
		return "(" + digits[:2] + ") " + digits[2:7] + "-" + digits[7:]
	case 10:
		return "(" + digits[:2] + ") " + digits[2:6] + "-" + digits[6:]
	default:
		return strings.TrimSpace(raw)
	}
}

// NormalizeEmail returns the lowercased address or "" when it does not parse
// as a bare address.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ""
	}
	return email
}

// NormalizeState keeps two letter region codes in upper case.
func NormalizeState(raw string) string {
	state := strings.ToUpper(strings.TrimSpace(raw))
	if len(state) == 2 {
		return state
	}
	return CleanText(raw)
}

// CleanText collapses internal whitespace.
func CleanText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ClassifyType maps free-text ownership hints to TypePublic or TypePrivate.
func ClassifyType(hints ...string) string {
	for _, hint := range hints {
		h := strings.ToLower(FoldAccents(hint))
		switch {
		case h == "":
			continue
		case h == TypePublic || h == TypePrivate:
			return h
		case containsAny(h, "estadual", "municipal", "federal", "e.e.", "e.m.") ||
			hasWord(h, "public", "publica", "publico", "emef", "emei", "etec", "ee"):
			return TypePublic
		case containsAny(h, "privad", "particular", "private", "confessional"):
			return TypePrivate
		}
	}
	return ""
}

// ClassifyLevels extracts education level tags from free text.
func ClassifyLevels(hints ...string) []string {
	seen := map[string]bool{}
	var levels []string
	add := func(level string) {
		if !seen[level] {
			seen[level] = true
			levels = append(levels, level)
		}
	}

	for _, hint := range hints {
		h := strings.ToLower(FoldAccents(hint))
		if h == "" {
			continue
		}
		if containsAny(h, "infantil", "creche", "early_childhood", "pre-escola", "kindergarten") || hasWord(h, "emei") {
			add(LevelEarlyChildhood)
		}
		if containsAny(h, "fundamental", "elementary", "primary") || hasWord(h, "emef") {
			add(LevelElementary)
		}
		if containsAny(h, "ensino medio", "high_school", "high school", "secondary") || hasWord(h, "medio") {
			add(LevelHighSchool)
		}
		if containsAny(h, "tecnic", "technical", "profissional") || hasWord(h, "etec") {
			add(LevelTechnical)
		}
		if containsAny(h, "adult", "jovens e adultos") || hasWord(h, "eja") {
			add(LevelAdult)
		}
	}
	return levels
}

func hasWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
