// Package extract turns raw fetched HTML into article fields via ordered
// fallback heuristics. Extraction is best effort: no selector list can cover
// arbitrary page layouts, so every cascade ends in a permissive fallback.
package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/coverwire/harvester/internal/news"
)

// Config tunes the extraction heuristics.
type Config struct {
	MinContentLength   int
	MinParagraphLength int
	SummaryLength      int
}

func (c *Config) applyDefaults() {
	if c.MinContentLength <= 0 {
		c.MinContentLength = 200
	}
	if c.MinParagraphLength <= 0 {
		c.MinParagraphLength = 50
	}
	if c.SummaryLength <= 0 {
		c.SummaryLength = 200
	}
}

// Fields is the result of one extraction pass.
type Fields struct {
	Title   string
	Content string
	Summary string
	Author  string
}

// Extractor applies the heuristic cascades to fetched documents.
type Extractor struct {
	cfg Config
}

// New builds an Extractor.
func New(cfg Config) *Extractor {
	cfg.applyDefaults()
	return &Extractor{cfg: cfg}
}

// Extract parses html (in the given source encoding) and extracts title,
// body, summary and author. A document that parses but matches nothing
// returns empty fields and no error; only an unparseable payload is an
// error, and even that is typed for the caller to record rather than fatal.
func (e *Extractor) Extract(html []byte, encoding string) (Fields, error) {
	reader, err := charset.NewReaderLabel(normalizeEncoding(encoding), bytes.NewReader(html))
	if err != nil {
		// Unknown label: fall back to treating the bytes as UTF-8 and let
		// Sanitize drop anything invalid.
		reader = bytes.NewReader(html)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return Fields{}, news.NewFetchError(news.KindParse, "", 0, err)
	}

	doc.Find(noiseSelector).Remove()

	f := Fields{
		Title:  firstMatch(doc, titleStrategies),
		Author: firstMatch(doc, authorStrategies),
	}
	f.Content = e.extractBody(doc)
	f.Summary = e.summarize(f.Content, doc)
	return f, nil
}

// extractBody walks the container cascade and falls back to bare paragraph
// harvesting when no container yields enough text.
func (e *Extractor) extractBody(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		text := collectBlocks(container, "p, h2, h3, h4", 0)
		if utf8.RuneCountInString(text) >= e.cfg.MinContentLength {
			return text
		}
	}
	return collectBlocks(doc.Selection, "p", e.cfg.MinParagraphLength)
}

// collectBlocks joins the text of matching blocks, skipping blocks shorter
// than minLen (boilerplate lines in the paragraph fallback).
func collectBlocks(sel *goquery.Selection, blockSelector string, minLen int) string {
	var parts []string
	sel.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		text := Sanitize(block.Text())
		if text == "" || utf8.RuneCountInString(text) < minLen {
			return
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, " ")
}

// summarize derives the summary as a fixed-length prefix of the body; the
// meta description is only consulted when no body was found.
func (e *Extractor) summarize(content string, doc *goquery.Document) string {
	if content != "" {
		return truncate(content, e.cfg.SummaryLength)
	}
	if desc := firstMatch(doc, descriptionStrategies); desc != "" {
		return truncate(desc, e.cfg.SummaryLength)
	}
	return ""
}

func normalizeEncoding(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "utf-8"
	}
	return label
}
