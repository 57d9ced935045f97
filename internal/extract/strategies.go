package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A strategy inspects a document and returns a value or "". Strategies run in
// order; the first non-empty result wins. Keeping them as a flat list keeps
// each heuristic independently testable.
type strategy func(doc *goquery.Document) string

func selectorText(selector string) strategy {
	return func(doc *goquery.Document) string {
		return Sanitize(doc.Find(selector).First().Text())
	}
}

func metaContent(selector string) strategy {
	return func(doc *goquery.Document) string {
		content, _ := doc.Find(selector).First().Attr("content")
		return Sanitize(content)
	}
}

// titleTag reads <title> and strips a trailing site-name suffix such as
// "Headline | The Daily Planet".
func titleTag(doc *goquery.Document) string {
	title := Sanitize(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	for _, sep := range []string{" | ", " — ", " – "} {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return title
}

var titleStrategies = []strategy{
	selectorText("h1.article-title"),
	selectorText("h1.headline"),
	selectorText("h1"),
	selectorText(".article-title"),
	selectorText(".headline"),
	metaContent(`meta[property="og:title"]`),
	titleTag,
}

var authorStrategies = []strategy{
	selectorText(".author"),
	selectorText(".byline"),
	selectorText(`[rel="author"]`),
	metaContent(`meta[name="author"]`),
	metaContent(`meta[property="article:author"]`),
}

var descriptionStrategies = []strategy{
	metaContent(`meta[name="description"]`),
	metaContent(`meta[property="og:description"]`),
	selectorText(".summary"),
	selectorText(".excerpt"),
}

// Main-content containers, most specific first.
var contentSelectors = []string{
	"article",
	".article-content",
	".article-body",
	".post-content",
	".entry-content",
	".content",
	"main",
	`[role="main"]`,
}

// Subtrees that are never article text and get stripped before extraction.
const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, " +
	".ad, .ads, .advertisement, .promo, .social, .share, .comments, .comment, " +
	".related, .newsletter, .sidebar"

func firstMatch(doc *goquery.Document, strategies []strategy) string {
	for _, s := range strategies {
		if v := s(doc); v != "" {
			return v
		}
	}
	return ""
}
