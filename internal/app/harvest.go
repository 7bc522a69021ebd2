package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
)

// SourceFactory opens the review pages of one app.
type SourceFactory func(appID string) (domain.PageSource, error)

// NotifierFactory binds the progress channel to one app.
type NotifierFactory func(appID string) domain.ProgressNotifier

type HarvestOptions struct {
	Location   *time.Location
	StartDelay time.Duration
	PageDelay  time.Duration
}

type HarvestResult struct {
	AppID       string
	Reason      StopReason
	Records     []domain.Record
	Report      Report
	ArchivePath string
}

type HarvestService struct {
	sources  SourceFactory
	progress NotifierFactory
	archiver domain.Archiver
	opts     HarvestOptions
	now      func() time.Time
}

func NewHarvestService(src SourceFactory, progress NotifierFactory, arch domain.Archiver, opts HarvestOptions) *HarvestService {
	return &HarvestService{sources: src, progress: progress, archiver: arch, opts: opts, now: time.Now}
}

// Harvest traverses one app's reviews down to cutoff and packages the report.
// Whatever was collected is rendered and archived even when the traversal was
// canceled or the source failed; that error is returned alongside the result.
func (s *HarvestService) Harvest(ctx context.Context, appID, cutoff string) (HarvestResult, error) {
	res := HarvestResult{AppID: appID}

	var notifier domain.ProgressNotifier
	if s.progress != nil {
		notifier = s.progress(appID)
	}
	tr, err := NewTraversal(cutoff, TraversalOptions{
		AppID:      appID,
		Location:   s.opts.Location,
		StartDelay: s.opts.StartDelay,
		PageDelay:  s.opts.PageDelay,
		Notifier:   notifier,
	})
	if err != nil {
		return res, err
	}
	src, err := s.sources(appID)
	if err != nil {
		return res, fmt.Errorf("open source for %s: %w", appID, err)
	}

	runErr := tr.Run(ctx, src)

	res.Reason = tr.Reason()
	res.Records = tr.Records()
	res.Report = Render(res.Records)
	if res.Report.Dropped > 0 {
		log.Warn().Str("app", appID).Int("dropped", res.Report.Dropped).Msg("records with out-of-range rating dropped")
	}
	log.Info().
		Str("app", appID).
		Str("reason", string(res.Reason)).
		Int("reviews", len(res.Records)).
		Msg("done gathering reviews")

	if s.archiver != nil {
		// packaging must still happen after a cancel, so it gets its own context
		path, err := s.archive(context.WithoutCancel(ctx), appID, res)
		if err != nil {
			return res, errors.Join(runErr, fmt.Errorf("archive %s: %w", appID, err))
		}
		res.ArchivePath = path
	}
	return res, runErr
}

func (s *HarvestService) archive(ctx context.Context, appID string, res HarvestResult) (string, error) {
	name := ArchiveName(appID, s.now())
	records, err := json.MarshalIndent(res.Records, "", "  ")
	if err != nil {
		return "", err
	}
	return s.archiver.Archive(ctx, name, []domain.ArchiveFile{
		{Name: name + ".txt", Data: []byte(res.Report.String())},
		{Name: "reviews.json", Data: records},
	})
}

// ArchiveName is "appreviews_<app>_<M.D.YYYY>" with the UTC date.
func ArchiveName(appID string, now time.Time) string {
	d := now.UTC()
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, appID)
	return fmt.Sprintf("appreviews_%s_%d.%d.%d", safe, int(d.Month()), d.Day(), d.Year())
}

// LogNotifier reports progress to the log only; used when no progress channel
// is configured.
type LogNotifier struct{ AppID string }

func (n LogNotifier) Notify(_ context.Context, collected int) {
	log.Info().Str("app", n.AppID).Int("collected", collected).Msg("reviews collected so far")
}
