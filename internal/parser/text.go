// Package parser extracts records from list and detail pages.
//
// Both parsers are tolerant: missing fields fall back to placeholders and the
// fallbacks are counted, so markup drift shows up as degraded output rather
// than an error.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	innerWhitespace = regexp.MustCompile(`\s+`)
	rankPattern     = regexp.MustCompile(`^#?\s*(\d{1,4})\.?$`)
)

// NewDocument parses an HTML body.
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// cleanText collapses runs of whitespace and drops non-printable runes.
func cleanText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(sb.String(), " "))
}

func selectionText(sel *goquery.Selection) string {
	return cleanText(sel.Text())
}

func isURLText(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "http")
}

func nodeText(node *html.Node) string {
	var buffer bytes.Buffer
	collectText(node, &buffer)
	return cleanText(buffer.String())
}

func collectText(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, buffer)
	}
}

func nodeAttr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// parseRank accepts "7", "#7" and "7.".
func parseRank(s string) (int, bool) {
	m := rankPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n := 0
	for _, r := range m[1] {
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		return 0, false
	}
	return n, true
}
