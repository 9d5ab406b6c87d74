package sanitize

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Type selects the cleaning rule applied by Sanitize.
type Type string

const (
	TypeString       Type = "string"
	TypeEmail        Type = "email"
	TypeURL          Type = "url"
	TypeInt          Type = "int"
	TypeFloat        Type = "float"
	TypeAlphanumeric Type = "alphanumeric"
	TypeSlug         Type = "slug"
	TypeHTML         Type = "html"
	TypeFilename     Type = "filename"
)

var (
	emailRe        = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)
	alphanumericRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	slugStripRe    = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRe     = regexp.MustCompile(`-+`)
	filenameRe     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	intRe          = regexp.MustCompile(`[^0-9+-]`)
	floatRe        = regexp.MustCompile(`[^0-9+.eE-]`)
)

// Sanitizer cleans untrusted input by type. All paths strip embedded NUL
// bytes and trim surrounding whitespace; invalid email/url values reduce to
// the empty string rather than erroring.
type Sanitizer struct {
	allowedTags map[string]bool
}

// New builds a Sanitizer whose html type keeps only the given tags.
func New(allowedTags []string) *Sanitizer {
	tags := make(map[string]bool, len(allowedTags))
	for _, t := range allowedTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags[t] = true
		}
	}
	return &Sanitizer{allowedTags: tags}
}

// Sanitize applies the cleaning rule for typ and returns the cleaned value.
func (s *Sanitizer) Sanitize(value string, typ Type) string {
	// First layer: remove null bytes.
	value = strings.ReplaceAll(value, "\x00", "")

	switch typ {
	case TypeEmail:
		value = strings.TrimSpace(value)
		if !emailRe.MatchString(value) {
			value = ""
		}

	case TypeURL:
		value = strings.TrimSpace(value)
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			value = ""
		}

	case TypeInt:
		value = intRe.ReplaceAllString(value, "")
		if _, err := strconv.Atoi(value); err != nil {
			value = "0"
		}

	case TypeFloat:
		value = floatRe.ReplaceAllString(value, "")
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			value = "0"
		}

	case TypeAlphanumeric:
		value = alphanumericRe.ReplaceAllString(value, "")

	case TypeSlug:
		value = strings.ToLower(strings.TrimSpace(value))
		value = slugStripRe.ReplaceAllString(value, "-")
		value = slugDashRe.ReplaceAllString(value, "-")
		value = strings.Trim(value, "-")

	case TypeHTML:
		value = s.cleanHTML(value)

	case TypeFilename:
		value = filepath.Base(value)
		value = filenameRe.ReplaceAllString(value, "")

	case TypeString:
		fallthrough
	default:
		value = stripTags(value)
	}

	return strings.TrimSpace(value)
}

// Int coerces untrusted input to an int, returning 0 for garbage.
func (s *Sanitizer) Int(value string) int {
	n, err := strconv.Atoi(s.Sanitize(value, TypeInt))
	if err != nil {
		return 0
	}
	return n
}

// Float coerces untrusted input to a float64, returning 0 for garbage.
func (s *Sanitizer) Float(value string) float64 {
	f, err := strconv.ParseFloat(s.Sanitize(value, TypeFloat), 64)
	if err != nil {
		return 0
	}
	return f
}
