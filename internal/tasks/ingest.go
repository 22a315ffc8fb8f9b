package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/services"
	"github.com/desertthunder/beatborders/internal/shared"
)

// IngestOptions holds the limits and output settings of an ingestion run.
type IngestOptions struct {
	MarketsLimit   int
	GenresLimit    int
	TracksPerGenre int
	TopNArtists    int
	Output         string
	AllowPartial   bool
}

// IngestOptionsFrom reads ingestion settings from the application config.
func IngestOptionsFrom(cfg *shared.Config) IngestOptions {
	return IngestOptions{
		MarketsLimit:   cfg.MarketsLimit,
		GenresLimit:    cfg.GenresLimit,
		TracksPerGenre: cfg.TracksPerGenre,
		TopNArtists:    cfg.TopNArtists,
		Output:         cfg.Ingest.Output,
		AllowPartial:   cfg.Ingest.AllowPartial,
	}
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	Dataset   *models.Dataset
	Complete  int
	Skipped   int
	Exhausted []string // genres skipped because retries ran out
	Written   bool     // whether the output file was replaced
}

// Ingester pulls genre popularity from a catalogue [services.Service] and writes a [models.Dataset].
type Ingester struct {
	svc    services.Service
	opts   IngestOptions
	logger *log.Logger
	now    func() time.Time
}

// NewIngester creates an Ingester. A nil logger writes to stderr.
func NewIngester(svc services.Service, opts IngestOptions, logger *log.Logger) *Ingester {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Ingester{
		svc:    svc,
		opts:   opts,
		logger: shared.WithLogger(logger, "stage", models.StageIngest),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run collects every genre and writes the dataset to the output path.
//
// When any genre ran out of retries the run returns [shared.ErrIncompleteRun] and leaves the
// previous output untouched, unless AllowPartial is set.
func (i *Ingester) Run(ctx context.Context, progress chan<- ProgressUpdate) (*IngestResult, error) {
	result, err := i.Collect(ctx, progress)
	if err != nil {
		return nil, err
	}

	if len(result.Exhausted) > 0 && !i.opts.AllowPartial {
		i.logger.Error("ingestion incomplete, keeping previous output", "exhausted", result.Exhausted, "output", i.opts.Output)
		return result, fmt.Errorf("%w: %d genres ran out of retries: %s",
			shared.ErrIncompleteRun, len(result.Exhausted), strings.Join(result.Exhausted, ", "))
	}

	data, err := result.Dataset.Encode()
	if err != nil {
		return result, fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := shared.WriteFileAtomic(i.opts.Output, data, 0o644); err != nil {
		return result, fmt.Errorf("failed to write dataset: %w", err)
	}
	result.Written = true

	sendProgress(progress, writeDatasetUpdate(i.opts.Output, result.Dataset.Genres.Len()))
	i.logger.Info("wrote dataset", "path", i.opts.Output, "complete", result.Complete, "skipped", result.Skipped)
	return result, nil
}

// Collect fetches genres, markets and tracks and builds the dataset in memory.
//
// Errors are returned only for failures that stop the whole run: authentication,
// category or market listing, and context cancellation.
func (i *Ingester) Collect(ctx context.Context, progress chan<- ProgressUpdate) (*IngestResult, error) {
	sendProgress(progress, authenticateUpdate(i.svc.Name()))
	if err := i.svc.Authenticate(ctx); err != nil {
		return nil, err
	}

	genres, err := i.fetchGenres(ctx, progress)
	if err != nil {
		return nil, err
	}

	markets, err := i.fetchMarkets(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, marketsUpdate(markets))

	allowed := make(map[string]bool, len(markets))
	for _, m := range markets {
		allowed[m] = true
	}

	dataset := &models.Dataset{
		GeneratedAt: i.now(),
		Limits: models.Limits{
			MarketsLimit:   i.opts.MarketsLimit,
			GenresLimit:    i.opts.GenresLimit,
			TracksPerGenre: i.opts.TracksPerGenre,
			TopNArtists:    i.opts.TopNArtists,
		},
		Markets: markets,
	}
	result := &IngestResult{Dataset: dataset}

	for idx, name := range genres {
		sendProgress(progress, genreStartedUpdate(idx+1, len(genres), name))

		record, err := i.fetchGenre(ctx, name, idx, allowed)
		var outcome models.GenreOutcome
		switch {
		case err == nil:
			outcome = models.Complete(*record)
			result.Complete++
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, shared.ErrAuthFailed):
			return nil, err
		case errors.Is(err, shared.ErrRetriesExhausted):
			i.logger.Error("genre skipped, retries exhausted", "genre", name, "err", err)
			outcome = models.Skipped(name, idx, err.Error())
			result.Skipped++
			result.Exhausted = append(result.Exhausted, name)
		default:
			i.logger.Warn("genre skipped", "genre", name, "err", err)
			outcome = models.Skipped(name, idx, err.Error())
			result.Skipped++
		}

		dataset.Add(outcome)
		sendProgress(progress, genreFinishedUpdate(idx+1, len(genres), outcome))
	}

	return result, nil
}

// fetchGenres pages through categories until GenresLimit names are collected or the listing ends.
func (i *Ingester) fetchGenres(ctx context.Context, progress chan<- ProgressUpdate) ([]string, error) {
	var names []string
	seen := make(map[string]bool)

	for offset := 0; len(names) < i.opts.GenresLimit; {
		limit := min(services.PageSize, i.opts.GenresLimit-len(names))
		page, err := i.svc.Categories(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch categories: %w", err)
		}

		for _, c := range page.Items {
			name := strings.TrimSpace(c.Name)
			switch {
			case name == "":
				i.logger.Warn("skipping category without a name", "id", c.ID)
				continue
			case seen[name]:
				i.logger.Debug("skipping duplicate category", "name", name)
				continue
			}
			seen[name] = true
			names = append(names, name)
			if len(names) == i.opts.GenresLimit {
				break
			}
		}

		sendProgress(progress, categoriesUpdate(len(names), i.opts.GenresLimit))
		if !page.Next || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	i.logger.Info("fetched genres", "count", len(names))
	return names, nil
}

// fetchMarkets returns the first MarketsLimit distinct market codes.
func (i *Ingester) fetchMarkets(ctx context.Context) ([]string, error) {
	raw, err := i.svc.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	var markets []string
	seen := make(map[string]bool)
	for _, m := range raw {
		code := strings.ToUpper(strings.TrimSpace(m))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		markets = append(markets, code)
		if len(markets) == i.opts.MarketsLimit {
			break
		}
	}

	if len(markets) == 0 {
		return nil, shared.ErrNoMarkets
	}
	i.logger.Info("fetched markets", "count", len(markets), "markets", strings.Join(markets, ","))
	return markets, nil
}

// fetchGenre pages through the genre's tracks and accumulates its record.
// Any page failure discards the partial record.
func (i *Ingester) fetchGenre(ctx context.Context, name string, order int, allowed map[string]bool) (*models.GenreRecord, error) {
	acc := newGenreAccumulator(name, order, allowed)
	query := services.GenreQuery(name)

	for offset := 0; offset < i.opts.TracksPerGenre; {
		limit := min(services.PageSize, i.opts.TracksPerGenre-offset)
		page, err := i.svc.SearchTracks(ctx, query, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("search %s at offset %d: %w", name, offset, err)
		}

		for _, tr := range page.Items {
			switch reason := acc.add(tr); reason {
			case "":
			case skipDuplicate, skipNoMarket:
				i.logger.Debug("skipping track", "genre", name, "track", tr.ID, "reason", reason)
			default:
				i.logger.Warn("skipping track", "genre", name, "track", tr.ID, "title", tr.Title, "reason", reason)
			}
		}

		if !page.Next || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	record := acc.record(i.opts.TopNArtists)
	i.logger.Debug("genre complete", "genre", name, "tracks", record.Tracks, "popularity", record.Popularity)
	return &record, nil
}

const (
	skipNoID        = "missing track id"
	skipNoArtist    = "track has no artists"
	skipDuplicate   = "duplicate track"
	skipNoMarket    = "not available in any selected market"
	skipBadPopScore = "negative popularity"
)

// genreAccumulator sums track popularity per market and per primary artist for one genre.
type genreAccumulator struct {
	rec     models.GenreRecord
	allowed map[string]bool
	seen    map[string]bool
}

func newGenreAccumulator(name string, order int, allowed map[string]bool) *genreAccumulator {
	return &genreAccumulator{
		rec:     models.GenreRecord{Name: name, Order: order},
		allowed: allowed,
		seen:    make(map[string]bool),
	}
}

// add attributes tr to the record and returns why it was skipped, empty when it contributed.
func (a *genreAccumulator) add(tr services.Track) string {
	switch {
	case tr.ID == "":
		return skipNoID
	case a.seen[tr.ID]:
		return skipDuplicate
	case strings.TrimSpace(tr.Artist) == "":
		return skipNoArtist
	case tr.Popularity < 0:
		return skipBadPopScore
	}
	a.seen[tr.ID] = true

	var markets []string
	counted := make(map[string]bool)
	for _, m := range tr.AvailableMarkets {
		code := strings.ToUpper(strings.TrimSpace(m))
		if a.allowed[code] && !counted[code] {
			counted[code] = true
			markets = append(markets, code)
		}
	}
	if len(markets) == 0 {
		return skipNoMarket
	}

	artist := strings.TrimSpace(tr.Artist)
	a.rec.Tracks++
	a.rec.Artists.Add(artist, tr.Popularity)
	for _, code := range markets {
		a.rec.Markets.Add(code, tr.Popularity)
		a.rec.Popularity += tr.Popularity

		tally, _ := a.rec.MarketArtists.Get(code)
		tally.Add(artist, tr.Popularity)
		a.rec.MarketArtists.Set(code, tally)
	}
	return ""
}

// record returns the accumulated record with per-market artist tallies cut to topN.
func (a *genreAccumulator) record(topN int) models.GenreRecord {
	rec := a.rec
	var trimmed models.OrderedMap[models.Tally]
	rec.MarketArtists.Each(func(code string, t models.Tally) {
		trimmed.Set(code, t.Truncated(topN))
	})
	rec.MarketArtists = trimmed
	return rec
}
