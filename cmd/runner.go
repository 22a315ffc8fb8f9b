package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/repositories"
	"github.com/desertthunder/beatborders/internal/services"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/desertthunder/beatborders/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ServiceFactory builds the catalogue service an ingestion run talks to.
type ServiceFactory func(ctx context.Context, cfg *shared.Config, logger *log.Logger) (services.Service, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	newService ServiceFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	NewService ServiceFactory
}

// NewRunner creates a new Runner with the provided options
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.NewService == nil {
		opts.NewService = NewSpotifyService
	}

	return &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		newService: opts.NewService,
	}
}

// NewSpotifyService is the default [ServiceFactory].
func NewSpotifyService(ctx context.Context, cfg *shared.Config, logger *log.Logger) (services.Service, error) {
	svc, err := services.NewSpotifyService(ctx, services.SpotifyOptions{
		ClientID:     cfg.Credentials.Spotify.ClientID,
		ClientSecret: cfg.Credentials.Spotify.ClientSecret,
		TokenURL:     cfg.Ingest.TokenURL,
		BaseURL:      cfg.Ingest.APIURL,
		MaxRetries:   cfg.Ingest.MaxRetries,
		RequestRate:  cfg.Ingest.RequestRate,
		Timeout:      cfg.Ingest.Timeout(),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, ingestCommand, prepareCommand, serveCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads --config and applies --verbose when the command has it.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	cfg, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded config", "path", path)
	return cfg, nil
}

func (r *Runner) openLedger(cfg *shared.Config) (*sql.DB, *repositories.RunRepository, error) {
	db, err := shared.OpenLedger(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	return db, repositories.NewRunRepository(db), nil
}

// trackProgress logs every update until the returned channel is closed. done is closed after
// the last update has been logged.
func (r *Runner) trackProgress() (chan tasks.ProgressUpdate, <-chan struct{}) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			kv := []any{"phase", u.Phase}
			if u.Total > 0 {
				kv = append(kv, "step", u.Step, "total", u.Total)
			}
			switch u.Phase {
			case tasks.FetchGenre, tasks.RenderMaps:
				r.logger.Debug(u.Message, kv...)
			default:
				r.logger.Info(u.Message, kv...)
			}
		}
	}()
	return progress, done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
