package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

const maxCityLength = 40

// Address extraction strategies, reported for diagnostics.
const (
	StrategyNone      = "none"
	StrategySiblings  = "contact_siblings"
	StrategyElementor = "elementor_contact"
	StrategyAddressEl = "address_element"
)

// Detail is what a detail page contributes to a record.
type Detail struct {
	City         *string
	Address      string
	AddressFound bool
	Strategy     string
}

// Apply copies the detail fields onto rec.
func (d Detail) Apply(rec *crawler.RawRecord) {
	rec.City = d.City
	rec.Address = d.Address
}

// ParseDetail extracts city and address. It never fails: a page with nothing
// usable yields the address placeholder and no city.
func ParseDetail(doc *goquery.Document) Detail {
	out := Detail{Address: crawler.AddressNotFound, Strategy: StrategyNone}
	if doc == nil {
		return out
	}
	contact := findContactHeader(doc)
	out.City = findCity(doc, contact)

	if contact != nil {
		if addr := addressFromSiblings(contact); addr != "" {
			out.Address, out.AddressFound, out.Strategy = addr, true, StrategySiblings
			return out
		}
		if addr := addressFromElementor(doc, contact); addr != "" {
			out.Address, out.AddressFound, out.Strategy = addr, true, StrategyElementor
			return out
		}
	}
	if addr := addressFromElement(doc); addr != "" {
		out.Address, out.AddressFound, out.Strategy = addr, true, StrategyAddressEl
	}
	return out
}

// findContactHeader returns the first h2-h4 mentioning Contact or Contacto.
func findContactHeader(doc *goquery.Document) *html.Node {
	header := doc.Find("h2, h3, h4").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(s.Text()), "ontac")
	}).First()
	if header.Length() == 0 {
		return nil
	}
	return header.Nodes[0]
}

// addressFromSiblings joins the text that follows the header up to the next
// heading, a URL, or a link.
func addressFromSiblings(header *html.Node) string {
	var parts []string
	for n := header.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && isHeadingTag(n.Data) {
			break
		}
		if n.Type != html.ElementNode && n.Type != html.TextNode {
			continue
		}
		text := nodeText(n)
		if text == "" {
			continue
		}
		if isURLText(text) {
			break
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := nodeAttr(n, "href"); ok && href != "" {
				break
			}
		}
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// addressFromElementor handles page builders that wrap every text block in its
// own widget, so the header has no useful siblings.
func addressFromElementor(doc *goquery.Document, header *html.Node) string {
	seenHeader := false
	var address string
	doc.Find("h2, h3, h4, p.elementor-heading-title").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := s.Nodes[0]
		if !seenHeader {
			seenHeader = node == header
			return true
		}
		switch node.Data {
		case "h2":
			return false
		case "p":
			text := strings.Trim(selectionText(s), " ,")
			if text == "" || isURLText(text) {
				return true
			}
			address = text
			return false
		default:
			return true
		}
	})
	return address
}

func addressFromElement(doc *goquery.Document) string {
	var address string
	doc.Find("address, [itemprop=address]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Trim(selectionText(s), " ,")
		if text == "" || isURLText(text) {
			return true
		}
		address = text
		return false
	})
	return address
}

// findCity returns the first short text after the page title and before the
// contact header.
func findCity(doc *goquery.Document, contact *html.Node) *string {
	var city *string
	foundTitle := false
	doc.Find("h1, h2, h3, h4, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := s.Nodes[0]
		if contact != nil && node == contact {
			return false
		}
		if node.Data == "h4" {
			return true
		}
		text := selectionText(s)
		if text == "" {
			return true
		}
		if !foundTitle {
			foundTitle = node.Data == "h1" || node.Data == "h2"
			return true
		}
		if len([]rune(text)) < maxCityLength && !isURLText(text) {
			city = crawler.StringPtr(text)
			return false
		}
		return true
	})
	return city
}
