package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes the example config when none exists, then creates the run ledger and applies migrations.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file exists, leaving it untouched", "path", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
	}

	cfg, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing run ledger", "path", cfg.Database.Path)
	db, _, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Run ledger: %s\n", cfg.Database.Path)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", configPath)
	r.writePlain("   (or export SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Run 'beatborders ingest', then 'beatborders prepare' and 'beatborders serve'\n")
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("init interrupted: %w", err)
	}
	return nil
}
