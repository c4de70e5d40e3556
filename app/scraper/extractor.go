package scraper

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alanindra/news-enricher/app/store"
	readability "github.com/go-shiori/go-readability"
)

// metaAuthorAttrs are checked in order for the journalist name.
var metaAuthorAttrs = [][2]string{
	{"name", "author"},
	{"property", "article:author"},
	{"property", "content:author"},
}

var (
	// trailing " - Site Name" suffixes on titles and date strings
	siteSuffixRe = regexp.MustCompile(`\s+-\s+.*$`)
	// dates like "02 Jan 2023" or "2 January 2023"
	humanDateRe = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4}`)
	dateClassRe = regexp.MustCompile(`(?i)date|calendar|published`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// Extractor pulls article fields out of static HTML.
type Extractor struct{}

// NewExtractor creates new Extractor.
func NewExtractor() Extractor { return Extractor{} }

// Extract extracts article fields from an HTML page. Fields that no
// heuristic matches are left empty, it is not an error.
func (e Extractor) Extract(rd io.Reader) (store.Article, error) {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return store.Article{}, fmt.Errorf("read page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return store.Article{}, fmt.Errorf("parse html: %w", err)
	}

	article := store.Article{
		PublishedAt: e.date(doc),
		Journalist:  e.journalist(doc),
	}

	// readability handles the bulk of server-rendered pages; the
	// goquery heuristics below fill what it misses
	if parsed, err := readability.FromReader(bytes.NewReader(raw), nil); err == nil {
		article.Title = e.cleanTitle(parsed.Title)
		article.Content = e.sanitize(parsed.TextContent)
		if article.Journalist == "" {
			article.Journalist = strings.TrimSpace(parsed.Byline)
		}
	}

	if article.Title == "" {
		article.Title = e.cleanTitle(doc.Find("title").First().Text())
	}
	if article.Content == "" {
		article.Content = e.paragraphs(doc)
	}

	return article, nil
}

func (e Extractor) cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(siteSuffixRe.ReplaceAllString(s, ""))
}

func (e Extractor) journalist(doc *goquery.Document) string {
	for _, attr := range metaAuthorAttrs {
		sel := fmt.Sprintf("meta[%s=%q]", attr[0], attr[1])
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (e Extractor) date(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	result := ""
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !dateClassRe.MatchString(class) {
			return true
		}

		text := siteSuffixRe.ReplaceAllString(strings.TrimSpace(s.Text()), "")
		if m := humanDateRe.FindString(text); m != "" {
			result = m
			return false
		}

		return true
	})

	return result
}

// paragraphs joins the texts of all non-empty <p> tags, the way
// cheap static scrapers do it.
func (e Extractor) paragraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return e.sanitize(strings.Join(parts, " "))
}

func (e Extractor) sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	// nbsp
	s = strings.ReplaceAll(s, "\u00a0", " ")

	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}
