package app_test

import (
	"context"
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"review_harvester/internal/domain"
)

// ---- fixtures ----

func rec(i int) domain.Record {
	return domain.Record{
		Stars:   i%5 + 1,
		Author:  fmt.Sprintf("user-%d", i),
		Date:    "March 10, 2021",
		Time:    "10:00 AM",
		Title:   fmt.Sprintf("title %d", i),
		Text:    fmt.Sprintf("text %d", i),
		Version: "1.0.0",
		Device:  "Pixel 8",
	}
}

func recs(from, to int) []domain.Record {
	var out []domain.Record
	for i := from; i < to; i++ {
		out = append(out, rec(i))
	}
	return out
}

func reviewHTML(r domain.Record) string {
	return fmt.Sprintf(`<div class="review">
  <div class="review-data">
    <div class="review-header"><strong>%s</strong> <span class="review-date">%s at %s</span></div>
    <p class="review-rating"><span class="label">Rating</span><span class="stars" title="%d stars"></span></p>
    <div class="review-body"><pre><span>%s</span><span>%s</span></pre></div>
  </div>
  <div class="review-meta"><span>Version: %s</span><span>Device: %s</span></div>
</div>`,
		html.EscapeString(r.Author), html.EscapeString(r.Date), html.EscapeString(r.Time), r.Stars,
		html.EscapeString(r.Title), html.EscapeString(r.Text),
		html.EscapeString(r.Version), html.EscapeString(r.Device))
}

const brokenReviewHTML = `<div class="review"><div class="review-data"><div class="review-header"></div></div></div>`

func parseNodes(t *testing.T, raw string) []*goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + raw + "</body></html>"))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	var out []*goquery.Selection
	doc.Find(".review").Each(func(_ int, s *goquery.Selection) { out = append(out, s) })
	return out
}

func pageHTML(rs []domain.Record) string {
	var b strings.Builder
	for _, r := range rs {
		b.WriteString(reviewHTML(r))
	}
	return b.String()
}

// ---- fakes ----

// fakeSite serves pages in order; advancing past the end re-renders the last
// page, the way a console with a dead "next" button behaves.
type fakeSite struct {
	t        *testing.T
	pages    []string
	noNextAt int // page index rendered without a next control; -1 for none
	cur      int
	advances int
	fail     error
}

func newFakeSite(t *testing.T, pages ...[]domain.Record) *fakeSite {
	s := &fakeSite{t: t, noNextAt: -1}
	for _, p := range pages {
		s.pages = append(s.pages, pageHTML(p))
	}
	return s
}

func (s *fakeSite) Current(ctx context.Context) (domain.Page, error) {
	if s.fail != nil {
		return domain.Page{}, s.fail
	}
	idx := s.cur
	if idx >= len(s.pages) {
		idx = len(s.pages) - 1
	}
	page := domain.Page{Nodes: parseNodes(s.t, s.pages[idx])}
	if idx != s.noNextAt {
		page.Next = domain.PageAdvancerFunc(func(context.Context) error {
			s.advances++
			s.cur++
			return nil
		})
	}
	return page, nil
}

type recordingNotifier struct{ counts []int }

func (n *recordingNotifier) Notify(_ context.Context, collected int) {
	n.counts = append(n.counts, collected)
}

type fakeArchiver struct {
	name  string
	files map[string][]byte
	err   error
}

func (a *fakeArchiver) Archive(_ context.Context, name string, files []domain.ArchiveFile) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.name = name
	a.files = map[string][]byte{}
	for _, f := range files {
		a.files[f.Name] = f.Data
	}
	return "/archives/" + name + ".zip", nil
}
