package app

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

type State int

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	if s == StateStopped {
		return "stopped"
	}
	return "running"
}

// StopReason is why a traversal ended. None of them is a failure: the
// records collected so far are always reportable.
type StopReason string

const (
	StopNone                  StopReason = ""
	StopCutoffReached         StopReason = "cutoff_reached"
	StopDuplicatePage         StopReason = "duplicate_page"
	StopNoReviews             StopReason = "no_reviews_found"
	StopNavigationUnavailable StopReason = "navigation_unavailable"
	StopCanceled              StopReason = "canceled"
	StopSourceFailed          StopReason = "source_failed"
)

type TraversalOptions struct {
	AppID      string
	Location   *time.Location
	StartDelay time.Duration // before the first page
	PageDelay  time.Duration // between page steps
	Notifier   domain.ProgressNotifier
	Extract    func(*goquery.Selection) (domain.Record, error) // nil uses ExtractRecord
}

// Traversal walks the review pages one step at a time. It owns the collected
// records; steps never overlap, so nothing here is locked.
type Traversal struct {
	app      string
	eval     CutoffEvaluator
	cutoff   time.Time
	records  []domain.Record
	state    State
	reason   StopReason
	start    time.Duration
	delay    time.Duration
	notifier domain.ProgressNotifier
	extract  func(*goquery.Selection) (domain.Record, error)
	sleep    func(context.Context, time.Duration) bool
}

// NewTraversal parses the cutoff once; an unparsable cutoff means the run
// cannot start.
func NewTraversal(cutoff string, opts TraversalOptions) (*Traversal, error) {
	eval := CutoffEvaluator{Location: opts.Location}
	ts, err := eval.ParseCutoff(cutoff)
	if err != nil {
		return nil, err
	}
	t := &Traversal{
		app:      opts.AppID,
		eval:     eval,
		cutoff:   ts,
		start:    opts.StartDelay,
		delay:    opts.PageDelay,
		notifier: opts.Notifier,
		extract:  opts.Extract,
		sleep:    sleepCtx,
	}
	if t.extract == nil {
		t.extract = ExtractRecord
	}
	return t, nil
}

func (t *Traversal) State() State { return t.state }
func (t *Traversal) Reason() StopReason { return t.reason }

// Records returns a copy of the collected records in encounter order.
func (t *Traversal) Records() []domain.Record {
	out := make([]domain.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Run steps through pages until a stop reason is reached. A canceled context
// or a failing source stops the traversal and is returned; the records
// collected up to that point stay valid.
func (t *Traversal) Run(ctx context.Context, src domain.PageSource) error {
	if !t.sleep(ctx, t.start) {
		t.stop(StopCanceled)
		return ctx.Err()
	}
	for t.state == StateRunning {
		if err := ctx.Err(); err != nil {
			t.stop(StopCanceled)
			return err
		}
		page, err := src.Current(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.stop(StopCanceled)
				return ctx.Err()
			}
			t.stop(StopSourceFailed)
			return fmt.Errorf("read page for %s: %w", t.app, err)
		}
		t.Step(ctx, page)
		if t.state == StateRunning && !t.sleep(ctx, t.delay) {
			t.stop(StopCanceled)
			return ctx.Err()
		}
	}
	return nil
}

// Step processes one page. Stopped traversals ignore further pages.
func (t *Traversal) Step(ctx context.Context, page domain.Page) {
	if t.state == StateStopped {
		return
	}
	if page.Next == nil {
		t.stop(StopNavigationUnavailable)
		return
	}
	pageSize := len(page.Nodes)
	if pageSize == 0 {
		t.stop(StopNoReviews)
		return
	}
	observability.ObservePage(t.app)

	checked := false
	for i, node := range page.Nodes {
		rec, err := t.extract(node)
		var older bool
		if err == nil {
			older, err = t.eval.IsOlderThan(rec, t.cutoff)
		}
		if err != nil {
			log.Warn().Str("app", t.app).Int("node", i).Err(err).Msg("skipping review node")
			observability.ObserveExtractionFailure(t.app)
			continue
		}
		if older {
			t.stop(StopCutoffReached)
			return
		}
		// only the page's first record is compared: this detects a page that
		// did not advance, not individual repeats
		if !checked {
			checked = true
			if t.repeats(rec, pageSize) {
				t.stop(StopDuplicatePage)
				return
			}
		}
		t.records = append(t.records, rec)
		observability.ObserveRecord(t.app)
	}

	if t.notifier != nil {
		t.notifier.Notify(ctx, len(t.records))
	}
	if err := page.Next.Advance(ctx); err != nil {
		log.Warn().Str("app", t.app).Err(err).Msg("page advance failed")
		t.stop(StopNavigationUnavailable)
	}
}

// repeats reports whether c sits where the previous pass put this page's
// first record. pageSize counts every node, skipped ones too, so pages of
// varying size or led by a malformed node make this an approximation.
func (t *Traversal) repeats(c domain.Record, pageSize int) bool {
	n := len(t.records)
	return n > 0 && n > pageSize && t.records[n-pageSize].SameAs(c)
}

func (t *Traversal) stop(reason StopReason) {
	t.state = StateStopped
	t.reason = reason
	observability.ObserveStop(string(reason))
	log.Info().
		Str("app", t.app).
		Str("reason", string(reason)).
		Int("collected", len(t.records)).
		Msg("traversal stopped")
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tm.C:
		return true
	}
}
