package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"review_harvester/internal/adapters/archive"
	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/adapters/output"
	redisad "review_harvester/internal/adapters/redis"
	"review_harvester/internal/adapters/reviewsite"
	"review_harvester/internal/app"
	"review_harvester/internal/domain"
	"review_harvester/internal/shared"
)

var (
	flagCutoff  string
	flagApps    []string
	flagOut     string
	flagWorkers int
)

var rootCmd = &cobra.Command{
	Use:   "harvester --cutoff \"July 22,2014 13:20\" --app com.example.app",
	Short: "Collects app reviews down to a cutoff and writes a per-rating report.",
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagCutoff, "cutoff", "", "Oldest review time to keep, e.g. \"July 22,2014 13:20\" (default $HARVEST_CUTOFF).")
	f.StringSliceVar(&flagApps, "app", nil, "App id to harvest; repeatable (default $HARVEST_APPS).")
	f.StringVar(&flagOut, "out", "", "Directory for report archives (default $OUTPUT_DIR).")
	f.IntVar(&flagWorkers, "workers", 0, "Apps harvested at once (default $HARVEST_WORKERS).")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := shared.Load()
	if flagCutoff != "" {
		cfg.Cutoff = flagCutoff
	}
	if len(flagApps) > 0 {
		cfg.Apps = flagApps
	}
	if flagOut != "" {
		cfg.OutputDir = flagOut
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	cfg.LogWarnings()
	observability.Serve(cfg.MetricsAddr)

	if len(cfg.Apps) == 0 {
		return fmt.Errorf("no apps to harvest: pass --app or set HARVEST_APPS")
	}
	// validate once up front; every app shares the cutoff
	if _, err := (app.CutoffEvaluator{Location: cfg.Location}).ParseCutoff(cfg.Cutoff); err != nil {
		return err
	}

	log.Info().
		Str("base", cfg.SourceBase).
		Strs("apps", cfg.Apps).
		Str("cutoff", cfg.Cutoff).
		Int("workers", cfg.Workers).
		Msg("harvester starting")

	client, err := reviewsite.New(cfg.SourceBase, cfg.SourceCookie, cfg.SourceRPS, reviewsite.Selectors{
		Review:   cfg.ReviewSelector,
		NextPage: cfg.NextSelector,
	})
	if err != nil {
		return fmt.Errorf("initialize review site client: %w", err)
	}

	notifiers := func(appID string) domain.ProgressNotifier { return app.LogNotifier{AppID: appID} }
	if cfg.RedisAddr != "" {
		progress := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer progress.Close()
		notifiers = progress.For
	}

	svc := app.NewHarvestService(client.Source, notifiers, archive.NewZip(cfg.OutputDir), app.HarvestOptions{
		Location:   cfg.Location,
		StartDelay: cfg.StartDelay,
		PageDelay:  cfg.PageDelay,
	})

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]app.HarvestResult, len(cfg.Apps))
	)
	for i, id := range cfg.Apps {
		results[i].AppID = id
	}
	for i, id := range cfg.Apps {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("harvest interrupted before all apps started")
			break
		}
		wg.Add(1)
		go func(i int, appID string) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := svc.Harvest(ctx, appID, cfg.Cutoff)
			if err != nil {
				log.Warn().Str("app", appID).Err(err).Msg("harvest incomplete")
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	log.Info().Msg("harvest completed")
	return output.WriteSummary(cmd.OutOrStdout(), results)
}
