package main

import (
	"context"

	"github.com/desertthunder/beatborders/internal/server"
	"github.com/desertthunder/beatborders/internal/tasks"
	"github.com/desertthunder/beatborders/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve loads the data and boundary files once, builds the report and serves it until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr()
	}

	dataset, ref, _, err := tasks.NewPreparer(tasks.PrepareOptionsFrom(cfg), r.logger).LoadInputs(ctx)
	if err != nil {
		return err
	}

	report, err := web.NewReport(dataset, ref, cfg)
	if err != nil {
		return err
	}

	var ledger web.RunLedger
	if db, runs, err := r.openLedger(cfg); err != nil {
		r.logger.Warn("run ledger unavailable, footer will omit run details", "error", err)
	} else {
		defer db.Close()
		ledger = runs
	}

	app, err := web.NewApp(report, ledger, cfg.Geo.MapDir, r.logger)
	if err != nil {
		return err
	}

	r.logger.Info("report ready", "genres", len(report.Genres), "countries", report.Countries, "addr", addr)
	return server.New(addr, app.Handler(), r.logger).ListenAndServe(ctx)
}
