package parse

import (
	"html"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	mdConverter  = htmltomarkdown.NewConverter(
		htmltomarkdown.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// Fold lowercases s and strips diacritics so "Stationnement Extérieur" and
// "stationnement exterieur" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(normalizeSpaces(folded)), " "))
}

// CleanText strips every tag from a captured fragment and collapses whitespace.
func CleanText(fragment string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(fragment))
	return strings.Join(strings.Fields(normalizeSpaces(text)), " ")
}

// Markdown converts a captured description fragment to markdown. Plain text
// passes through with its line breaks kept.
func Markdown(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(normalizeSpaces(fragment))
	}
	md, err := mdConverter.ConvertString(fragment)
	if err != nil {
		return CleanText(fragment)
	}
	return strings.TrimSpace(md)
}

// Deref returns the trimmed value of an optional string.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Optional returns nil for blank strings.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
