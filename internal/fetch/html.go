// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// boilerplate lists elements whose text is never article content.
const boilerplate = "script, style, noscript, template, nav, header, footer, aside, form, iframe, svg, figure figcaption"

// ExtractArticle parses an HTML page and returns its main text, one
// paragraph per line pair. Paragraphs inside <article> win; otherwise those
// inside <main>, then every <p> on the page. A page with no paragraphs falls
// back to the whitespace-normalised body text.
func ExtractArticle(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find(boilerplate).Remove()

	for _, sel := range []string{"article p", "main p", "p"} {
		if paras := paragraphs(doc.Find(sel)); len(paras) > 0 {
			return strings.Join(paras, "\n\n"), nil
		}
	}
	return collapseSpace(doc.Find("body").Text()), nil
}

func paragraphs(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := collapseSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// HTMLToText strips markup from s, joining text nodes with single spaces.
// Plain text passes through with whitespace normalised.
func HTMLToText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := collapseSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
