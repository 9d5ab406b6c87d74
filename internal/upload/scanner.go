package upload

import "regexp"

// ContentScanner inspects raw file bytes for injected code. Implementations
// return the name of the first matching signature and whether one matched.
type ContentScanner interface {
	Scan(content []byte) (string, bool)
}

// SignatureScanner is the default ContentScanner: a fixed list of
// case-insensitive patterns covering script open tags, dangerous call
// sites and known web-shell strings. The list is deliberately small so
// ordinary binary image data does not false-positive.
type SignatureScanner struct {
	patterns []*regexp.Regexp
}

func NewSignatureScanner() *SignatureScanner {
	return &SignatureScanner{patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\?php`),
		regexp.MustCompile(`(?i)<\?=`),
		regexp.MustCompile(`(?i)<script[\s>]`),
		regexp.MustCompile(`(?i)eval\s*\(`),
		regexp.MustCompile(`(?i)system\s*\(`),
		regexp.MustCompile(`(?i)exec\s*\(`),
		regexp.MustCompile(`(?i)shell_exec\s*\(`),
		regexp.MustCompile(`(?i)passthru\s*\(`),
		regexp.MustCompile(`(?i)c99shell`),
		regexp.MustCompile(`(?i)r57shell`),
		regexp.MustCompile(`(?i)webshell`),
		regexp.MustCompile(`(?i)phpspy`),
	}}
}

func (s *SignatureScanner) Scan(content []byte) (string, bool) {
	for _, re := range s.patterns {
		if re.Match(content) {
			return re.String(), true
		}
	}
	return "", false
}
