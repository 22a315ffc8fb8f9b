package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/formatter"
	"github.com/desertthunder/beatborders/internal/geo"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
)

const (
	// TotalMapFile is the total-popularity artifact, relative to the map directory.
	TotalMapFile = "total_popularity.html"
	// GenreMapDir holds per-genre artifacts, relative to the map directory.
	GenreMapDir = "genre"
	// RankingFile is the genre ranking CSV, relative to the map directory.
	RankingFile = "genre_ranking.csv"

	// ValueLabel names the mapped value in legends and hover text.
	ValueLabel = "Popularity"
)

// GenreMapFile returns the artifact path of a genre slug, relative to the map directory.
func GenreMapFile(slug string) string {
	return filepath.Join(GenreMapDir, slug+".html")
}

// TotalTitle is the title of the total-popularity figure.
func TotalTitle() string { return "Total Spotify Popularity by Country" }

// GenreTitle is the title of a genre figure.
func GenreTitle(genre string) string { return genre + " Popularity by Country" }

// PrepareOptions holds the inputs and outputs of the geo preparation stage.
type PrepareOptions struct {
	DataPath          string
	BoundariesURL     string
	BoundariesPath    string
	MapDir            string
	TopNGenres        int
	TopNArtists       int
	SimplifyTolerance float64
	MaxRetries        int
	Timeout           time.Duration
}

// PrepareOptionsFrom reads preparation settings from the application config.
func PrepareOptionsFrom(cfg *shared.Config) PrepareOptions {
	return PrepareOptions{
		DataPath:          cfg.Ingest.Output,
		BoundariesURL:     cfg.Geo.BoundariesURL,
		BoundariesPath:    cfg.Geo.BoundariesPath,
		MapDir:            cfg.Geo.MapDir,
		TopNGenres:        cfg.TopNGenres,
		TopNArtists:       cfg.TopNArtists,
		SimplifyTolerance: cfg.Geo.SimplifyTolerance,
		MaxRetries:        cfg.Ingest.MaxRetries,
		Timeout:           cfg.Ingest.Timeout(),
	}
}

// PrepareResult summarizes a preparation run.
type PrepareResult struct {
	Artifacts          []string // written files, total map first
	Genres             []string // top genres, ranked
	GenresSkipped      int
	CountriesMatched   int
	CountriesUnmatched []string
	Downloaded         bool
}

// Preparer joins a dataset with country boundaries and renders the map artifacts.
type Preparer struct {
	opts    PrepareOptions
	fetcher *geo.Fetcher
	logger  *log.Logger
}

// NewPreparer creates a Preparer. A nil logger writes to stderr.
func NewPreparer(opts PrepareOptions, logger *log.Logger) *Preparer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "stage", models.StagePrepare)
	return &Preparer{
		opts:    opts,
		fetcher: geo.NewFetcher(opts.MaxRetries, opts.Timeout, logger),
		logger:  logger,
	}
}

// Fetcher exposes the boundary fetcher, for tuning retry waits.
func (p *Preparer) Fetcher() *geo.Fetcher { return p.fetcher }

// LoadDataset reads and decodes a data file written by ingestion.
func LoadDataset(path string) (*models.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return models.DecodeDataset(data)
}

// LoadInputs ensures the boundary cache, then loads the boundaries and the dataset.
func (p *Preparer) LoadInputs(ctx context.Context) (*models.Dataset, *geo.Reference, bool, error) {
	downloaded, err := p.fetcher.EnsureBoundaries(ctx, p.opts.BoundariesURL, p.opts.BoundariesPath)
	if err != nil {
		return nil, nil, false, err
	}

	ref, err := geo.LoadReference(p.opts.BoundariesPath, geo.LoadOptions{
		SimplifyTolerance: p.opts.SimplifyTolerance,
		Logger:            p.logger,
	})
	if err != nil {
		return nil, nil, downloaded, err
	}

	dataset, err := LoadDataset(p.opts.DataPath)
	if err != nil {
		return nil, nil, downloaded, err
	}
	return dataset, ref, downloaded, nil
}

// Run builds every table and writes the total map, one map per top genre and the ranking CSV.
// Identical inputs produce byte-identical artifacts.
func (p *Preparer) Run(ctx context.Context, progress chan<- ProgressUpdate) (*PrepareResult, error) {
	dataset, ref, downloaded, err := p.LoadInputs(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, boundariesUpdate(ref.Len()))

	views := BuildViews(dataset, ref, p.opts.TopNGenres, p.opts.TopNArtists)
	sendProgress(progress, tablesUpdate(len(views.Genres)))

	result := &PrepareResult{
		Downloaded:         downloaded,
		GenresSkipped:      len(views.Skipped),
		CountriesMatched:   views.Total.Matched,
		CountriesUnmatched: views.Total.Unmatched,
	}
	for _, o := range views.Skipped {
		p.logger.Warn("genre excluded from maps", "genre", o.Name(), "reason", o.Reason())
	}
	p.logUnmatched("total", views.Total)

	geometry, err := ref.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode boundaries: %w", err)
	}

	total := len(views.Genres) + 1
	totalPath := filepath.Join(p.opts.MapDir, TotalMapFile)
	fig := formatter.ChoroplethFigure(TotalTitle(), ValueLabel, views.Total.Rows, geometry)
	if err := formatter.WriteMapHTML(totalPath, TotalTitle(), fig); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", totalPath, err)
	}
	result.Artifacts = append(result.Artifacts, totalPath)
	sendProgress(progress, renderUpdate(1, total, totalPath))

	for idx, g := range views.Genres {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.logUnmatched(g.Record.Name, g.Table)

		path := filepath.Join(p.opts.MapDir, GenreMapFile(g.Slug))
		title := GenreTitle(g.Record.Name)
		fig := formatter.ChoroplethFigure(title, ValueLabel, g.Table.Rows, geometry)
		if err := formatter.WriteMapHTML(path, title, fig); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		result.Artifacts = append(result.Artifacts, path)
		result.Genres = append(result.Genres, g.Record.Name)
		sendProgress(progress, renderUpdate(idx+2, total, path))
		p.logger.Debug("rendered genre map", "genre", g.Record.Name, "path", path)
	}

	rankingPath := filepath.Join(p.opts.MapDir, RankingFile)
	if err := formatter.WriteRankingCSV(rankingPath, []string{"genre", "total_popularity"}, formatter.EntryRows(views.Ranking)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", rankingPath, err)
	}
	result.Artifacts = append(result.Artifacts, rankingPath)

	p.logger.Info("maps rendered", "artifacts", len(result.Artifacts), "genres", len(result.Genres),
		"matched", result.CountriesMatched, "unmatched", len(result.CountriesUnmatched))
	return result, nil
}

func (p *Preparer) logUnmatched(table string, m MergeResult) {
	for _, code := range m.Unmatched {
		p.logger.Warn("country code has no boundary, omitted", "table", table, "code", code)
	}
}
