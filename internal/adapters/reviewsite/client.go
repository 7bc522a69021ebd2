// internal/adapters/reviewsite/client.go
package reviewsite

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

type Selectors struct {
	Review   string // one match per review node
	NextPage string // anchor whose href is the next page
}

var DefaultSelectors = Selectors{Review: ".review", NextPage: "a.next-page"}

// Client fetches review console pages. One Client can serve many apps; each
// app gets its own Source holding the current page URL.
type Client struct {
	base   string
	hc     *http.Client
	cookie string
	rl     *rate.Limiter
	sel    Selectors
}

func New(base, cookie string, rps int, sel Selectors) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if rps <= 0 {
		rps = 5
	}
	if sel.Review == "" {
		sel.Review = DefaultSelectors.Review
	}
	if sel.NextPage == "" {
		sel.NextPage = DefaultSelectors.NextPage
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: 20 * time.Second},
		cookie: cookie,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		sel:    sel,
	}, nil
}

// Source returns a page source positioned on the app's first review page.
func (c *Client) Source(appID string) (domain.PageSource, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, fmt.Errorf("app id is required")
	}
	return &Source{c: c, url: fmt.Sprintf("%s/reviews/%s", c.base, url.PathEscape(appID))}, nil
}

// Source is the page cursor of one app. It is driven by a single traversal
// and is not safe for concurrent use.
type Source struct {
	c   *Client
	url string
}

func (s *Source) URL() string { return s.url }

func (s *Source) Current(ctx context.Context) (domain.Page, error) {
	doc, err := s.c.get(ctx, s.url)
	if err != nil {
		return domain.Page{}, err
	}
	var page domain.Page
	doc.Find(s.c.sel.Review).Each(func(i int, node *goquery.Selection) {
		page.Nodes = append(page.Nodes, node)
	})

	next, ok := s.nextURL(doc)
	if !ok {
		log.Debug().Str("url", s.url).Msg("next page control not found")
		return page, nil
	}
	page.Next = domain.PageAdvancerFunc(func(context.Context) error {
		s.url = next
		return nil
	})
	return page, nil
}

// nextURL resolves the next-page href against the current page. Disabled
// controls count as missing.
func (s *Source) nextURL(doc *goquery.Document) (string, bool) {
	a := doc.Find(s.c.sel.NextPage).First()
	if a.Length() == 0 || a.HasClass("disabled") || a.AttrOr("aria-disabled", "") == "true" {
		return "", false
	}
	href := strings.TrimSpace(a.AttrOr("href", ""))
	if href == "" {
		return "", false
	}
	cur, err := url.Parse(s.url)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return cur.ResolveReference(ref).String(), true
}

// ---- Internals ----

// get performs a GET with client-side rate limiting and retries, and parses
// the body as HTML. Retries on 429 and transient 5xx, honoring Retry-After.
func (c *Client) get(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}
		req.Header.Set("Accept", "text/html")
		req.Header.Set("User-Agent", "review-harvester/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("reviewsite", "reviews", 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Debug().Str("url", url).Str("err_type", observability.LabelErr(err)).Err(err).Msg("page fetch failed")
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr
		}
		observability.ObserveExternal("reviewsite", "reviews", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			doc, err := goquery.NewDocumentFromReader(resp.Body)
			resp.Body.Close()
			return doc, err

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return nil, domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return nil, domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return nil, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
