package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/repositories"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/urfave/cli/v3"
)

var (
	historyTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#7D56F4")).
				Padding(0, 1)

	historyHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	statusStyles = map[models.RunStatus]lipgloss.Style{
		models.RunSucceeded: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.RunPartial:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.RunFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.RunRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

const historyRowFormat = "%-8s  %s  %-17s  %9s  %8s  %9s  %s\n"

// History prints the most recent runs from the ledger.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	stage := models.Stage(strings.TrimSpace(cmd.String("stage")))
	switch stage {
	case "", models.StageIngest, models.StagePrepare:
	default:
		return fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidInput, stage)
	}

	db, runs, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := runs.List(repositories.ListOptions{Stage: stage, Limit: cmd.Int("limit")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if list == nil {
			list = []*models.Run{}
		}
		return r.writeJSON(list, true)
	}

	if err := r.writePlain("%s\n\n", historyTitleStyle.Render("BeatBorders run history")); err != nil {
		return err
	}
	if len(list) == 0 {
		return r.writePlain("No runs recorded in %s\n", cfg.Database.Path)
	}

	header := fmt.Sprintf(historyRowFormat, "STAGE", fmt.Sprintf("%-10s", "STATUS"), "STARTED", "DURATION", "GENRES", "COUNTRIES", "MESSAGE")
	if err := r.writePlain("%s\n", historyHeaderStyle.Render(strings.TrimRight(header, "\n"))); err != nil {
		return err
	}
	for _, run := range list {
		if err := r.writePlain("%s", historyRow(run)); err != nil {
			return err
		}
	}
	return nil
}

func historyRow(run *models.Run) string {
	duration := "-"
	if run.FinishedAt != nil {
		duration = run.Duration().Round(time.Second).String()
	}

	countries := "-"
	if run.Stage == models.StagePrepare {
		countries = fmt.Sprintf("%d/%d", run.CountriesMatched, run.CountriesMatched+run.CountriesUnmatched)
	}

	status := fmt.Sprintf("%-10s", run.Status)
	if style, ok := statusStyles[run.Status]; ok {
		status = style.Render(status)
	}

	return fmt.Sprintf(historyRowFormat,
		run.Stage,
		status,
		run.StartedAt.Local().Format("2006-01-02 15:04"),
		duration,
		fmt.Sprintf("%d/%d", run.GenresComplete, run.GenresComplete+run.GenresSkipped),
		countries,
		run.Message,
	)
}
