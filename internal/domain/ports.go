package domain

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Page is what the console currently shows: the review nodes in display
// order and the control that moves to the next page. Next is nil when the
// control cannot be located.
type Page struct {
	Nodes []*goquery.Selection
	Next  PageAdvancer
}

type PageSource interface {
	Current(ctx context.Context) (Page, error)
}

// PageAdvancer triggers navigation. Its effect is only guaranteed to be
// visible to the next Current call after the inter-page delay.
type PageAdvancer interface {
	Advance(ctx context.Context) error
}

// PageAdvancerFunc adapts a plain function to PageAdvancer.
type PageAdvancerFunc func(ctx context.Context) error

func (f PageAdvancerFunc) Advance(ctx context.Context) error { return f(ctx) }

// ProgressNotifier is fire-and-forget; implementations log their own failures.
type ProgressNotifier interface {
	Notify(ctx context.Context, collected int)
}

type ProgressStore interface {
	Progress(ctx context.Context, appID string) (collected int, ok bool, err error)
}

// Archiver packages finished reports and returns where the archive was written.
type Archiver interface {
	Archive(ctx context.Context, name string, files []ArchiveFile) (string, error)
}

type ArchiveFile struct {
	Name string
	Data []byte
}
