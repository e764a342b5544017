// Package site turns rendered search-result markup into structured listings.
// Adapters parse a static HTML snapshot rather than the live DOM, so every
// extraction decision is reproducible from a captured page.
package site

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var numberPattern = regexp.MustCompile(`(\d[\d,]*)`)

// Page is a parsed snapshot of one rendered results or detail page. Raw keeps
// the original markup for the regex-based extraction tiers.
type Page struct {
	Raw string
	doc *goquery.Document
}

// ParsePage builds a Page from rendered HTML.
func ParsePage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Page{Raw: html, doc: doc}, nil
}

// Select returns all nodes matching a CSS selector.
func (p *Page) Select(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// Text returns the trimmed text of the first node matching selector, or "".
func (p *Page) Text(selector string) string {
	return strings.TrimSpace(p.doc.Find(selector).First().Text())
}

// Attr returns the named attribute of the first node matching selector.
func (p *Page) Attr(selector, name string) string {
	v, _ := p.doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// firstNumber extracts the first comma-grouped integer from text.
func firstNumber(text string) (int, bool) {
	m := numberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
