package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review_harvester/internal/domain"
)

/********** review node selectors (single source of truth) **********/

const (
	selData      = ".review-data"
	selHeader    = ".review-header"
	selAuthor    = "strong"
	selTimestamp = ".review-date"
	selRating    = "p span[title]"
	selBody      = ".review-body pre"
	selMeta      = ".review-meta"
)

// ExtractRecord turns one review node into a Record. It fails with
// domain.ErrExtraction when a required part of the node is missing.
func ExtractRecord(node *goquery.Selection) (domain.Record, error) {
	if node == nil || node.Length() == 0 {
		return domain.Record{}, extractErr("empty node")
	}
	data := node.Find(selData).First()
	header := data.Find(selHeader).First()

	author := squash(header.Find(selAuthor).First().Text())
	if author == "" {
		return domain.Record{}, extractErr("author not found")
	}

	date, clock, ok := splitTimestamp(header.Find(selTimestamp).First().Text())
	if !ok {
		return domain.Record{}, extractErr("timestamp not found")
	}

	glyph, ok := data.Find(selRating).First().Attr("title")
	if !ok {
		return domain.Record{}, extractErr("rating glyph not found")
	}
	stars, err := parseGlyph(glyph)
	if err != nil {
		return domain.Record{}, err
	}

	// the body block holds the title first and the text last; a lone child is the text
	parts := data.Find(selBody).First().Children()
	if parts.Length() == 0 {
		return domain.Record{}, extractErr("review body not found")
	}
	var title string
	if parts.Length() > 1 {
		title = strings.TrimSpace(parts.First().Text())
	}
	text := strings.TrimSpace(parts.Last().Text())
	if text == "" {
		return domain.Record{}, extractErr("review text empty")
	}

	var version, device string
	if meta := node.Find(selMeta).First().Children(); meta.Length() >= 2 {
		version = afterColon(meta.First().Text())
		device = afterColon(meta.Last().Text())
	}

	return domain.Record{
		Stars:   stars,
		Author:  author,
		Date:    date,
		Time:    clock,
		Title:   title,
		Text:    text,
		Version: version,
		Device:  device,
	}, nil
}

/********** tiny helpers **********/

func extractErr(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrExtraction, what)
}

// squash trims and collapses inner whitespace runs to one space.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitTimestamp splits "July 22, 2014 at 1:20 PM" into date and time.
func splitTimestamp(raw string) (date, clock string, ok bool) {
	date, clock, ok = strings.Cut(squash(raw), " at ")
	if !ok || date == "" || clock == "" {
		return "", "", false
	}
	return date, clock, true
}

// parseGlyph reads the rating from the first character of e.g. "4 stars".
func parseGlyph(glyph string) (int, error) {
	glyph = strings.TrimSpace(glyph)
	if glyph == "" {
		return 0, extractErr("rating glyph empty")
	}
	n, err := strconv.Atoi(glyph[:1])
	if err != nil {
		return 0, extractErr(fmt.Sprintf("rating glyph %q", glyph))
	}
	return n, nil
}

func afterColon(s string) string {
	_, v, ok := strings.Cut(s, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
