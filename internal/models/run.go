package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/beatborders/internal/shared"
)

// Stage names a pipeline stage recorded in the run ledger.
type Stage string

const (
	StageIngest  Stage = "ingest"
	StagePrepare Stage = "prepare"
)

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Run is one ledger entry for an ingest or prepare invocation.
type Run struct {
	ID                 string     `json:"id"`
	Stage              Stage      `json:"stage"`
	Status             RunStatus  `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	GenresComplete     int        `json:"genres_complete"`
	GenresSkipped      int        `json:"genres_skipped"`
	CountriesMatched   int        `json:"countries_matched"`
	CountriesUnmatched int        `json:"countries_unmatched"`
	Message            string     `json:"message,omitempty"`
	Genres             []RunGenre `json:"genres,omitempty"`
}

// RunGenre records the outcome of one genre within an ingest run.
type RunGenre struct {
	Position   int           `json:"position"`
	Genre      string        `json:"genre"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Popularity int           `json:"popularity"`
}

// NewRun starts a running ledger entry for stage.
func NewRun(stage Stage) *Run {
	return &Run{
		ID:        shared.GenerateID(),
		Stage:     stage,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Duration returns the elapsed time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate checks the fields the ledger requires.
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrInvalidInput)
	}
	switch r.Stage {
	case StageIngest, StagePrepare:
	default:
		return fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidInput, r.Stage)
	}
	switch r.Status {
	case RunRunning, RunSucceeded, RunPartial, RunFailed:
	default:
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("%w: started_at is required", shared.ErrInvalidInput)
	}
	return nil
}

// GenresFrom converts dataset outcomes into ledger rows.
func GenresFrom(d *Dataset) []RunGenre {
	var out []RunGenre
	d.Genres.Each(func(name string, o GenreOutcome) {
		g := RunGenre{Position: len(out), Genre: name, Status: o.Status(), Reason: o.Reason()}
		if r, ok := o.Record(); ok {
			g.Popularity = r.Popularity
		}
		out = append(out, g)
	})
	return out
}
