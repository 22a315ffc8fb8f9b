package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
)

const runColumns = `id, stage, status, started_at, finished_at, genres_complete, genres_skipped,
	countries_matched, countries_unmatched, message`

// RunRepository persists [models.Run] ledger entries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// ListOptions filters [RunRepository.List]. Zero values match everything.
type ListOptions struct {
	Stage models.Stage
	Limit int
}

// Create inserts a running ledger entry.
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		run.ID,
		string(run.Stage),
		string(run.Status),
		run.StartedAt.UTC(),
		finishedAt(run),
		run.GenresComplete,
		run.GenresSkipped,
		run.CountriesMatched,
		run.CountriesUnmatched,
		run.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final status, counts and genre outcomes of run.
// FinishedAt is set to now when the caller left it empty.
func (r *RunRepository) Finish(run *models.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, genres_complete = ?, genres_skipped = ?,
			countries_matched = ?, countries_unmatched = ?, message = ?
		WHERE id = ?
	`
	result, err := tx.Exec(query,
		string(run.Status),
		finishedAt(run),
		run.GenresComplete,
		run.GenresSkipped,
		run.CountriesMatched,
		run.CountriesUnmatched,
		run.Message,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if err := expectOne(result, shared.ErrRunNotFound, run.ID); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM run_genres WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to clear run genres: %w", err)
	}
	for _, g := range run.Genres {
		_, err := tx.Exec(
			"INSERT INTO run_genres (run_id, position, genre, status, reason, popularity) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, g.Position, g.Genre, string(g.Status), g.Reason, g.Popularity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run genre %q: %w", g.Genre, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Get retrieves a run and its genre outcomes by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Genres, err = r.genres(id); err != nil {
		return nil, err
	}
	return run, nil
}

// Latest returns the most recently started run of stage, or [shared.ErrRunNotFound].
func (r *RunRepository) Latest(stage models.Stage) (*models.Run, error) {
	runs, err := r.List(ListOptions{Stage: stage, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no %s runs recorded", shared.ErrRunNotFound, stage)
	}
	return r.Get(runs[0].ID)
}

// List retrieves runs newest first. Genre outcomes are not loaded.
func (r *RunRepository) List(opts ListOptions) ([]*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := []any{}

	if opts.Stage != "" {
		query += " WHERE stage = ?"
		args = append(args, string(opts.Stage))
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func (r *RunRepository) genres(runID string) ([]models.RunGenre, error) {
	rows, err := r.db.Query(
		"SELECT position, genre, status, reason, popularity FROM run_genres WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run genres: %w", err)
	}
	defer rows.Close()

	var out []models.RunGenre
	for rows.Next() {
		var (
			g      models.RunGenre
			status string
		)
		if err := rows.Scan(&g.Position, &g.Genre, &status, &g.Reason, &g.Popularity); err != nil {
			return nil, fmt.Errorf("failed to scan run genre: %w", err)
		}
		g.Status = models.OutcomeStatus(status)
		out = append(out, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		run        models.Run
		stage      string
		status     string
		startedAt  time.Time
		finishedAt sql.NullTime
	)

	err := s.Scan(
		&run.ID, &stage, &status, &startedAt, &finishedAt,
		&run.GenresComplete, &run.GenresSkipped,
		&run.CountriesMatched, &run.CountriesUnmatched, &run.Message,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Stage = models.Stage(stage)
	run.Status = models.RunStatus(status)
	run.StartedAt = startedAt.UTC()
	run.FinishedAt = nullTime(finishedAt)
	return &run, nil
}

func finishedAt(run *models.Run) any {
	if run.FinishedAt == nil {
		return nil
	}
	return run.FinishedAt.UTC()
}
