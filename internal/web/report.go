package web

import (
	"fmt"
	"html/template"
	"path"
	"time"

	"github.com/desertthunder/beatborders/internal/formatter"
	"github.com/desertthunder/beatborders/internal/geo"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/desertthunder/beatborders/internal/tasks"
)

const (
	noGenres    = "No genres available"
	noArtists   = "No artists"
	noRankings  = "No genre data"
	genreColumn = "Genre"
)

// GenrePanel is the prerendered explorer panel of one top genre.
type GenrePanel struct {
	Name    string
	Slug    string
	Title   string
	Figure  template.JS
	Artists template.HTML
	MapURL  string
}

// Report holds every figure and table the server renders. It is built once and only read afterwards.
type Report struct {
	GeneratedAt   time.Time
	Markets       []string
	TotalTitle    string
	TotalFigure   template.JS
	Ranking       template.HTML
	Genres        []GenrePanel
	GenresSkipped int
	Countries     int
	Geometry      []byte

	byName map[string]int
}

// NewReport builds the total figure, the genre ranking and one panel per top genre.
func NewReport(d *models.Dataset, ref *geo.Reference, cfg *shared.Config) (*Report, error) {
	views := tasks.BuildViews(d, ref, cfg.TopNGenres, cfg.TopNArtists)

	geometry, err := ref.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode boundaries: %w", err)
	}

	total, err := formatter.ChoroplethFigure(tasks.TotalTitle(), tasks.ValueLabel, views.Total.Rows, nil).JS()
	if err != nil {
		return nil, err
	}

	ranking, err := formatter.RankingTableHTML(
		[]string{genreColumn, "Total popularity"}, formatter.EntryRows(views.Ranking), noRankings)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:   d.GeneratedAt,
		Markets:       d.Markets,
		TotalTitle:    tasks.TotalTitle(),
		TotalFigure:   total,
		Ranking:       ranking,
		GenresSkipped: len(views.Skipped),
		Countries:     ref.Len(),
		Geometry:      geometry,
		byName:        make(map[string]int, len(views.Genres)),
	}

	for _, g := range views.Genres {
		title := tasks.GenreTitle(g.Record.Name)
		fig, err := formatter.ChoroplethFigure(title, tasks.ValueLabel, g.Table.Rows, nil).JS()
		if err != nil {
			return nil, err
		}
		artists, err := formatter.RankingTableHTML(
			[]string{"Artist", tasks.ValueLabel}, formatter.EntryRows(g.Artists), noArtists)
		if err != nil {
			return nil, err
		}

		report.byName[g.Record.Name] = len(report.Genres)
		report.Genres = append(report.Genres, GenrePanel{
			Name:    g.Record.Name,
			Slug:    g.Slug,
			Title:   title,
			Figure:  fig,
			Artists: artists,
			MapURL:  path.Join("/maps", tasks.GenreMapDir, g.Slug+".html"),
		})
	}
	return report, nil
}

// Panel returns the prerendered panel for genre.
func (r *Report) Panel(genre string) (GenrePanel, bool) {
	idx, ok := r.byName[genre]
	if !ok {
		return GenrePanel{}, false
	}
	return r.Genres[idx], true
}

// DefaultGenre is the highest ranked genre, or empty when no genre completed.
func (r *Report) DefaultGenre() string {
	if len(r.Genres) == 0 {
		return ""
	}
	return r.Genres[0].Name
}
