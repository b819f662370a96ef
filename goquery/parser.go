// Package goquery implements webcrawl.Parser on top of goquery.
package goquery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/webcrawl"
	"golang.org/x/net/html"
)

// Ensure Parser implements webcrawl.Parser at compile time.
var _ webcrawl.Parser = (*Parser)(nil)

// linkSelector matches the elements whose href is followed.
const linkSelector = "a[href], area[href]"

// invisible lists elements whose text is never rendered.
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Parser extracts links, term matches, title and description from HTML.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses body as HTML. Relative links resolve against baseURL, or
// against the document's <base href> when present.
func (p *Parser) Parse(body []byte, baseURL string, terms []string) (*webcrawl.ParseResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, webcrawl.Errorf(webcrawl.EPARSE, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, webcrawl.Errorf(webcrawl.EPARSE, "failed to parse HTML: %v", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	return &webcrawl.ParseResult{
		Links:       extractLinks(doc, base),
		Matches:     countTerms(visibleText(doc), terms),
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: description(doc),
	}, nil
}

// extractLinks returns normalized http(s) links in document order.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	links := []string{}
	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !webcrawl.IsHTTPLink(href) {
			return
		}
		resolved, err := webcrawl.ResolveReference(base, href)
		if err != nil || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}

// visibleText concatenates the body's text nodes, separated by spaces so
// adjacent blocks do not run together.
func visibleText(doc *goquery.Document) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if invisible[n.Data] {
				return
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return sb.String()
}

// countTerms counts non-overlapping case-insensitive occurrences of each term.
func countTerms(text string, terms []string) map[string]int {
	matches := make(map[string]int, len(terms))
	if len(terms) == 0 {
		return matches
	}
	lower := strings.ToLower(text)
	for _, term := range terms {
		term = strings.ToLower(term)
		if term == "" {
			continue
		}
		matches[term] = strings.Count(lower, term)
	}
	return matches
}

// description returns the meta description, falling back to og:description.
func description(doc *goquery.Document) string {
	var desc string
	doc.Find("meta[name]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name, _ := sel.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		desc, _ = sel.Attr("content")
		return false
	})
	if desc = strings.TrimSpace(desc); desc != "" {
		return desc
	}
	content, _ := doc.Find(`meta[property="og:description"]`).First().Attr("content")
	return strings.TrimSpace(content)
}
