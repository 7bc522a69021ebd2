package reviewsite_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"review_harvester/internal/adapters/reviewsite"
	"review_harvester/internal/app"
	"review_harvester/internal/domain"
)

func review(i int) string {
	return fmt.Sprintf(`<div class="review"><div class="review-data">
<div class="review-header"><strong>user-%d</strong><span class="review-date">March %d, 2021 at 10:00 AM</span></div>
<p><span class="stars" title="%d stars"></span></p>
<div class="review-body"><pre><span>t%d</span><span>body %d</span></pre></div>
</div><div class="review-meta"><span>Version: 1.%d</span><span>Device: Pixel</span></div></div>`, i, 28-i, i%5+1, i, i, i)
}

// consoleServer serves pages of 3 reviews; the last page's next link points
// back at itself, like a console whose next button stops working.
func consoleServer(t *testing.T, pages int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reviews/com.example.app" {
			http.NotFound(w, r)
			return
		}
		p, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var b strings.Builder
		b.WriteString("<html><body><div id=\"list\">")
		for i := p * 3; i < p*3+3; i++ {
			b.WriteString(review(i))
		}
		next := p + 1
		if next >= pages {
			next = p
		}
		fmt.Fprintf(&b, `</div><a class="next-page" href="?page=%d">▶</a></body></html>`, next)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(b.String()))
	}))
}

func TestSource_CurrentAndAdvance(t *testing.T) {
	ts := consoleServer(t, 3)
	defer ts.Close()

	cl, err := reviewsite.New(ts.URL, "", 100, reviewsite.DefaultSelectors)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	src, err := cl.Source("com.example.app")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	page, err := src.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(page.Nodes) != 3 || page.Next == nil {
		t.Fatalf("unexpected page: %d nodes, next=%v", len(page.Nodes), page.Next != nil)
	}
	first, err := app.ExtractRecord(page.Nodes[0])
	if err != nil || first.Author != "user-0" {
		t.Fatalf("unexpected first record %+v (err %v)", first, err)
	}

	if err := page.Next.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := src.(*reviewsite.Source).URL(); got != ts.URL+"/reviews/com.example.app?page=1" {
		t.Fatalf("unexpected next URL %s", got)
	}
	page, err = src.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, _ := app.ExtractRecord(page.Nodes[0])
	if second.Author != "user-3" {
		t.Fatalf("expected page two, got %+v", second)
	}
}

func TestSource_MissingOrDisabledNext(t *testing.T) {
	for name, link := range map[string]string{
		"missing":  "",
		"disabled": `<a class="next-page disabled" href="?page=1">▶</a>`,
		"aria":     `<a class="next-page" aria-disabled="true" href="?page=1">▶</a>`,
		"no href":  `<a class="next-page">▶</a>`,
	} {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>" + review(1) + link + "</body></html>"))
			}))
			defer ts.Close()

			cl, _ := reviewsite.New(ts.URL, "", 100, reviewsite.Selectors{})
			src, _ := cl.Source("com.example.app")
			page, err := src.Current(context.Background())
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if page.Next != nil {
				t.Fatalf("expected no next control")
			}
			if len(page.Nodes) != 1 {
				t.Fatalf("expected 1 node, got %d", len(page.Nodes))
			}
		})
	}
}

func TestClient_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "SID=abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			_, _ = w.Write([]byte("<html><body>" + review(2) + "</body></html>"))
		}
	}))
	defer ts.Close()

	cl, err := reviewsite.New(ts.URL, "SID=abc", 100, reviewsite.DefaultSelectors)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	src, _ := cl.Source("com.example.app")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	page, err := src.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(page.Nodes) != 1 {
		t.Fatalf("unexpected page: %d nodes", len(page.Nodes))
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_StatusErrors(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusNotFound:     domain.ErrNotFound,
		http.StatusUnauthorized: domain.ErrUnauthorized,
		http.StatusForbidden:    domain.ErrForbidden,
	} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))
		cl, _ := reviewsite.New(ts.URL, "", 100, reviewsite.DefaultSelectors)
		src, _ := cl.Source("com.example.app")
		_, err := src.Current(context.Background())
		ts.Close()
		if err != want {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := reviewsite.New("not a url", "", 1, reviewsite.DefaultSelectors); err == nil {
		t.Fatalf("expected error for bad base URL")
	}
	cl, err := reviewsite.New("https://console.example.com/", "", 1, reviewsite.DefaultSelectors)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := cl.Source(" "); err == nil {
		t.Fatalf("expected error for empty app id")
	}
}

func TestHarvest_EndToEnd(t *testing.T) {
	ts := consoleServer(t, 4)
	defer ts.Close()

	cl, err := reviewsite.New(ts.URL, "", 100, reviewsite.DefaultSelectors)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	svc := app.NewHarvestService(cl.Source, nil, nil, app.HarvestOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := svc.Harvest(ctx, "com.example.app", "Jan 1,2020 00:00")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Reason != app.StopDuplicatePage {
		t.Fatalf("expected duplicate_page, got %s", res.Reason)
	}
	if len(res.Records) != 12 || res.Report.Total != 12 {
		t.Fatalf("expected 12 records, got %d (report %d)", len(res.Records), res.Report.Total)
	}
	for i, r := range res.Records {
		if r.Author != fmt.Sprintf("user-%d", i) {
			t.Fatalf("record %d out of order: %s", i, r.Author)
		}
	}

	// cutoff between the 5th and 6th review: March 24 10:00 > cutoff > March 23 10:00
	res, err = svc.Harvest(ctx, "com.example.app", "March 23,2021 12:00")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Reason != app.StopCutoffReached || len(res.Records) != 5 {
		t.Fatalf("expected cutoff after 5 records, got %s with %d", res.Reason, len(res.Records))
	}
}
