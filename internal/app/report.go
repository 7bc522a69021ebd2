package app

import (
	"strconv"
	"strings"

	"review_harvester/internal/domain"
)

const maxStars = 5

// Report is the rendered harvest: a six-line summary and one section per
// rating. Dropped counts records whose rating was outside 1..5.
type Report struct {
	Counts  [maxStars]int
	Total   int
	Dropped int
	Summary string
	Body    string
}

// Count returns the number of entries rated stars, 0 outside 1..5.
func (r Report) Count(stars int) int {
	if stars < 1 || stars > maxStars {
		return 0
	}
	return r.Counts[stars-1]
}

// String is the text document handed to packaging.
func (r Report) String() string {
	return strings.TrimSpace(r.Summary + "\n" + r.Body)
}

// Render groups records by rating, keeping encounter order inside a rating.
func Render(records []domain.Record) Report {
	var rep Report
	var sections [maxStars]strings.Builder
	for _, rec := range records {
		if rec.Stars < 1 || rec.Stars > maxStars {
			rep.Dropped++
			continue
		}
		k := rec.Stars - 1
		rep.Counts[k]++
		rep.Total++
		writeEntry(&sections[k], rep.Counts[k], rec)
	}

	var summary, body strings.Builder
	for k := 0; k < maxStars; k++ {
		stars := strconv.Itoa(k + 1)
		summary.WriteString(stars + " Star reviews - " + strconv.Itoa(rep.Counts[k]) + "\n")
		body.WriteString(stars + " Stars\n\n")
		body.WriteString(sections[k].String())
	}
	summary.WriteString("TOTAL - " + strconv.Itoa(rep.Total) + "\n")

	rep.Summary = summary.String()
	rep.Body = body.String()
	return rep
}

func writeEntry(b *strings.Builder, n int, rec domain.Record) {
	b.WriteString(strconv.Itoa(n) + ") ")
	if title := strings.TrimSpace(rec.Title); title != "" {
		b.WriteString(title + " - ")
	}
	b.WriteString(strings.TrimSpace(rec.Text))
	b.WriteString("\nBy: " + strings.TrimSpace(rec.Author) + "\n\n")
}
