package parser

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

// markdownOutline walks the markdown AST and returns the first level-1
// heading as the title (falling back to the first heading of any level) and
// every heading's text in document order. The stored text keeps its markup.
func markdownOutline(src []byte) (title string, headings []string) {
	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse(src)

	root.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering || n.Type != blackfriday.Heading {
			return blackfriday.GoToNext
		}
		text := strings.TrimSpace(inlineText(n))
		if text == "" {
			return blackfriday.SkipChildren
		}
		headings = append(headings, text)
		if title == "" && n.HeadingData.Level == 1 {
			title = text
		}
		return blackfriday.SkipChildren
	})

	if title == "" && len(headings) > 0 {
		title = headings[0]
	}
	return title, headings
}

// inlineText concatenates the literal text beneath n.
func inlineText(n *blackfriday.Node) string {
	var b strings.Builder
	n.Walk(func(c *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch c.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(c.Literal)
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		}
		return blackfriday.GoToNext
	})
	return b.String()
}
