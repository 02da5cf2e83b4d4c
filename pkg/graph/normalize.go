package graph

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NormalizeText strips markup from an announcement body and collapses all
// whitespace runs into single spaces. Block level tags act as word
// separators, inline tags are removed without a trace. Contents of script
// and style elements are dropped.
func NormalizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "<&") {
		return collapseSpaces(raw)
	}

	var b strings.Builder
	b.Grow(len(raw))

	z := html.NewTokenizer(strings.NewReader(raw))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpaces(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				skip++
				continue
			}
			if isBlockTag(a) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
				continue
			}
			if isBlockTag(a) {
				b.WriteByte(' ')
			}
		}
	}
}

func isBlockTag(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.Table, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Hr, atom.Pre, atom.Blockquote:
		return true
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
