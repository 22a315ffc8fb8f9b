package main

import (
	"context"
	"errors"

	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/repositories"
	"github.com/desertthunder/beatborders/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Ingest fetches genre popularity and writes the data file. The run is recorded in the ledger.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("allow-partial") {
		cfg.Ingest.AllowPartial = true
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	db, runs, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	run := models.NewRun(models.StageIngest)
	if err := runs.Create(run); err != nil {
		return err
	}

	svc, err := r.newService(ctx, cfg, r.logger)
	if err != nil {
		r.finish(runs, run, err)
		return err
	}

	progress, done := r.trackProgress()
	result, err := tasks.NewIngester(svc, tasks.IngestOptionsFrom(cfg), r.logger).Run(ctx, progress)
	close(progress)
	<-done

	if result != nil {
		run.GenresComplete = result.Complete
		run.GenresSkipped = result.Skipped
		run.Genres = models.GenresFrom(result.Dataset)
		if err == nil && result.Skipped > 0 {
			run.Status = models.RunPartial
		}
	}
	r.finish(runs, run, err)
	if err != nil {
		return err
	}

	r.writePlain("✓ Wrote %s: %d genres complete, %d skipped, %d markets\n",
		cfg.Ingest.Output, result.Complete, result.Skipped, len(result.Dataset.Markets))
	for _, o := range result.Dataset.Skipped() {
		r.writePlain("  skipped %s: %s\n", o.Name(), o.Reason())
	}
	return nil
}

// Prepare renders the total map, the genre maps and the ranking CSV. The run is recorded in the ledger.
func (r *Runner) Prepare(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, runs, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	run := models.NewRun(models.StagePrepare)
	if err := runs.Create(run); err != nil {
		return err
	}

	progress, done := r.trackProgress()
	result, err := tasks.NewPreparer(tasks.PrepareOptionsFrom(cfg), r.logger).Run(ctx, progress)
	close(progress)
	<-done

	if result != nil {
		run.GenresComplete = len(result.Genres)
		run.GenresSkipped = result.GenresSkipped
		run.CountriesMatched = result.CountriesMatched
		run.CountriesUnmatched = len(result.CountriesUnmatched)
	}
	r.finish(runs, run, err)
	if err != nil {
		return err
	}

	if result.Downloaded {
		r.writePlain("✓ Downloaded boundaries to %s\n", cfg.Geo.BoundariesPath)
	}
	r.writePlain("✓ Rendered %d artifacts in %s\n", len(result.Artifacts), cfg.Geo.MapDir)
	for _, path := range result.Artifacts {
		r.writePlain("  %s\n", path)
	}
	if len(result.CountriesUnmatched) > 0 {
		r.writePlain("! %d market codes have no boundary: %v\n", len(result.CountriesUnmatched), result.CountriesUnmatched)
	}
	return nil
}

// finish marks run failed when err is set, succeeded when still running, and stores it.
// Ledger failures are logged so they never mask the run's own error.
func (r *Runner) finish(runs *repositories.RunRepository, run *models.Run, err error) {
	switch {
	case err != nil:
		run.Status = models.RunFailed
		run.Message = err.Error()
		if errors.Is(err, context.Canceled) {
			run.Message = "interrupted"
		}
	case run.Status == models.RunRunning:
		run.Status = models.RunSucceeded
	}

	if ferr := runs.Finish(run); ferr != nil {
		r.logger.Warn("failed to record run", "id", run.ID, "error", ferr)
	}
}
