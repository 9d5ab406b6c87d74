package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Attributes that can carry a URI and therefore need scheme filtering.
var uriAttrs = map[string]bool{
	"href":   true,
	"src":    true,
	"action": true,
}

// rawTextTags have their inner text swallowed when the tag itself is
// dropped, so script bodies never leak into the output as plain text.
var rawTextTags = map[string]bool{
	"script": true,
	"style":  true,
}

// cleanHTML keeps only allow-listed tags, drops event-handler attributes
// and dangerous URI schemes, and preserves the text of removed tags.
func (s *Sanitizer) cleanHTML(in string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(in))
	skipText := ""

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()

		case html.TextToken:
			if skipText == "" {
				b.WriteString(html.EscapeString(string(z.Text())))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if !s.allowedTags[tok.Data] {
				if rawTextTags[tok.Data] && tok.Type == html.StartTagToken {
					skipText = tok.Data
				}
				continue
			}
			tok.Attr = filterAttrs(tok.Attr)
			b.WriteString(tok.String())

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == skipText {
				skipText = ""
				continue
			}
			if s.allowedTags[tok.Data] {
				b.WriteString(tok.String())
			}

		case html.CommentToken, html.DoctypeToken:
			// dropped
		}
	}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") || key == "formaction" {
			continue
		}
		if uriAttrs[key] && hasDangerousScheme(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func hasDangerousScheme(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	// Strip whitespace and control characters that browsers ignore inside
	// the scheme, e.g. "java\tscript:".
	v = strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v)
	return strings.HasPrefix(v, "javascript:") ||
		strings.HasPrefix(v, "data:") ||
		strings.HasPrefix(v, "vbscript:")
}

// stripTags removes all markup, keeping only text content. Script and
// style bodies are dropped entirely.
func stripTags(in string) string {
	if !strings.ContainsAny(in, "<>") {
		return in
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(in))
	skipText := ""

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipText == "" {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if rawTextTags[string(name)] {
				skipText = string(name)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == skipText {
				skipText = ""
			}
		}
	}
}
