// Package markdown flattens model-written markdown into safe plain text.
package markdown

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var (
	bfRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.SkipHTML | blackfriday.SkipImages,
	})
	bfExtensions = blackfriday.NoIntraEmphasis | blackfriday.Strikethrough | blackfriday.Autolink | blackfriday.FencedCode
	strict       = bluemonday.StrictPolicy()
)

// PlainText renders source as markdown, strips every tag, decodes entities
// and collapses whitespace to single spaces.
func PlainText(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	rendered := blackfriday.Run([]byte(source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)
	safe := strict.SanitizeBytes(rendered)
	return strings.Join(strings.Fields(html.UnescapeString(string(safe))), " ")
}

// Truncate cuts s to at most n runes, on a word boundary when one is close.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)*3/4 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
