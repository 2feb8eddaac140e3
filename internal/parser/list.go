package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

// DefaultDetailPrefixes are the path fragments that mark a detail page link.
var DefaultDetailPrefixes = []string{"/locales/", "/locales-south/"}

// ListPage is the outcome of parsing one list page.
type ListPage struct {
	Records []crawler.RawRecord
	// Skipped counts entries dropped because no name or detail link was found.
	Skipped int
	// Degraded counts accepted entries with a placeholder country or positional rank.
	Degraded int
	Warnings []string
}

// ListParser groups anchor fragments on a list page into entries.
type ListParser struct {
	detailPrefixes []string
	excluded       map[string]struct{}
}

// NewListParser builds a parser. Links resolving to any of excludeURLs are
// never treated as entries; the page being parsed is always excluded.
func NewListParser(detailPrefixes []string, excludeURLs []string) *ListParser {
	if len(detailPrefixes) == 0 {
		detailPrefixes = DefaultDetailPrefixes
	}
	excluded := make(map[string]struct{}, len(excludeURLs))
	for _, raw := range excludeURLs {
		if u, err := url.Parse(raw); err == nil {
			excluded[canonicalURL(u)] = struct{}{}
		}
	}
	return &ListParser{detailPrefixes: detailPrefixes, excluded: excluded}
}

// ParseList parses a list page with the default detail prefixes.
func ParseList(doc *goquery.Document, baseURL string, category crawler.Category) (ListPage, error) {
	return NewListParser(nil, nil).Parse(doc, baseURL, category)
}

type linkGroup struct {
	detailURL string
	links     []*goquery.Selection
}

// Parse extracts ranked entries from doc. The result is sorted by rank.
func (p *ListParser) Parse(doc *goquery.Document, baseURL string, category crawler.Category) (ListPage, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ListPage{}, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	page := ListPage{Records: []crawler.RawRecord{}}
	if doc == nil {
		return page, nil
	}
	category = crawler.NormalizeCategory(string(category))

	groups, grouped := p.groupLinks(doc, base)
	for _, g := range groups {
		name, rank, country := extractEntry(g.links)
		if name == "" {
			page.Skipped++
			page.Warnings = append(page.Warnings, fmt.Sprintf("no name found for %s, skipped", g.detailURL))
			continue
		}
		if rank == 0 {
			rank = len(page.Records) + 1
			page.Degraded++
			page.Warnings = append(page.Warnings, fmt.Sprintf("no rank found for %q, using position %d", name, rank))
		}
		if country == "" {
			country = crawler.UnknownCountry
			page.Degraded++
			page.Warnings = append(page.Warnings, fmt.Sprintf("no country found for %q", name))
		}
		page.Records = append(page.Records, crawler.RawRecord{
			Name:      name,
			Rank:      rank,
			Country:   country,
			Address:   crawler.AddressNotFound,
			Category:  category,
			DetailURL: g.detailURL,
		})
	}

	orphans := countOrphanEntries(doc, grouped)
	if orphans > 0 {
		page.Skipped += orphans
		page.Warnings = append(page.Warnings, fmt.Sprintf("%d ranked entries had no detail link", orphans))
	}

	sort.SliceStable(page.Records, func(i, j int) bool {
		return page.Records[i].Rank < page.Records[j].Rank
	})
	return page, nil
}

// groupLinks buckets anchors by resolved detail URL in first-seen order. The
// second return value holds every anchor node that was grouped.
func (p *ListParser) groupLinks(doc *goquery.Document, base *url.URL) ([]*linkGroup, map[*html.Node]struct{}) {
	self := canonicalURL(base)
	index := map[string]*linkGroup{}
	var groups []*linkGroup
	grouped := map[*html.Node]struct{}{}

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		key := canonicalURL(resolved)
		if key == self {
			return
		}
		if _, skip := p.excluded[key]; skip {
			return
		}
		if !p.isDetailPath(resolved.Path) {
			return
		}
		g, ok := index[key]
		if !ok {
			g = &linkGroup{detailURL: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.links = append(g.links, link)
		for _, n := range link.Nodes {
			grouped[n] = struct{}{}
		}
	})
	return groups, grouped
}

func (p *ListParser) isDetailPath(path string) bool {
	for _, prefix := range p.detailPrefixes {
		if prefix != "" && strings.Contains(path, prefix) {
			return true
		}
	}
	return false
}

// extractEntry reads name, rank and country from the fragments of one entry.
// A fragment may carry any of the fields; the first non-empty value of each wins.
func extractEntry(links []*goquery.Selection) (name string, rank int, country string) {
	var fallbackName string
	for _, link := range links {
		structured := false
		if h2 := link.Find("h2").First(); h2.Length() > 0 {
			structured = true
			if text := selectionText(h2); text != "" && name == "" {
				name = text
			}
		}
		if h3 := link.Find("h3").First(); h3.Length() > 0 {
			structured = true
			if n, ok := parseRank(selectionText(h3)); ok && rank == 0 {
				rank = n
			}
		}
		if p := link.Find("p").First(); p.Length() > 0 {
			structured = true
			if text := selectionText(p); text != "" && country == "" {
				country = text
			}
		}
		if structured {
			continue
		}
		if h := link.Find("h1, h4").First(); h.Length() > 0 {
			if fallbackName == "" {
				fallbackName = selectionText(h)
			}
			continue
		}
		if n, ok := parseRank(selectionText(link)); ok && rank == 0 {
			rank = n
		}
	}
	if name == "" {
		name = fallbackName
	}
	return name, rank, country
}

// countOrphanEntries counts name headings that share a container with a rank
// heading but sit outside every grouped detail link.
func countOrphanEntries(doc *goquery.Document, grouped map[*html.Node]struct{}) int {
	orphans := 0
	doc.Find("h2").Each(func(_ int, h2 *goquery.Selection) {
		if selectionText(h2) == "" {
			return
		}
		if insideGrouped(h2, grouped) {
			return
		}
		hasRank := false
		h2.Parent().Find("h3").EachWithBreak(func(_ int, h3 *goquery.Selection) bool {
			if insideGrouped(h3, grouped) {
				return true
			}
			if _, ok := parseRank(selectionText(h3)); ok {
				hasRank = true
				return false
			}
			return true
		})
		if hasRank {
			orphans++
		}
	})
	return orphans
}

func insideGrouped(sel *goquery.Selection, grouped map[*html.Node]struct{}) bool {
	for _, anchor := range sel.ParentsFiltered("a[href]").Nodes {
		if _, ok := grouped[anchor]; ok {
			return true
		}
	}
	return false
}

func canonicalURL(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	return clone.String()
}
