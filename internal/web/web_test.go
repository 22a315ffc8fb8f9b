package web

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/beatborders/internal/geo"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
	tu "github.com/desertthunder/beatborders/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	run *models.Run
	err error
}

func (f fakeLedger) Latest(models.Stage) (*models.Run, error) { return f.run, f.err }

func genreRecord(name string, order int, market, artist string, score int) models.GenreRecord {
	rec := models.GenreRecord{Name: name, Order: order, Tracks: 1, Popularity: score}
	rec.Markets.Add(market, score)
	rec.Artists.Add(artist, score)
	var t models.Tally
	t.Add(artist, score)
	rec.MarketArtists.Set(market, t)
	return rec
}

func testDataset() *models.Dataset {
	d := &models.Dataset{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Markets:     []string{"US", "GB"},
	}
	d.Add(models.Complete(genreRecord("Pop", 0, "US", "Artist A", 80)))
	d.Add(models.Complete(genreRecord("Jazz", 1, "GB", "Artist C", 40)))
	d.Add(models.Skipped("Rock", 2, "retries exhausted"))
	return d
}

func testReference(t *testing.T) *geo.Reference {
	t.Helper()
	ref, err := geo.ParseReference([]byte(tu.WorldGeoJSON), geo.LoadOptions{Logger: shared.NewLogger(&tu.DiscardWriter{})})
	require.NoError(t, err)
	return ref
}

func newTestApp(t *testing.T, d *models.Dataset, ledger RunLedger) (*App, string) {
	t.Helper()
	report, err := NewReport(d, testReference(t), shared.DefaultConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	app, err := NewApp(report, ledger, dir, shared.NewLogger(&tu.DiscardWriter{}))
	require.NoError(t, err)
	return app, dir
}

func get(t *testing.T, h http.Handler, target string) (int, string, http.Header) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body), rec.Header()
}

func TestNewReport(t *testing.T) {
	report, err := NewReport(testDataset(), testReference(t), shared.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, report.Genres, 2)
	assert.Equal(t, "Pop", report.DefaultGenre())
	assert.Equal(t, "Jazz", report.Genres[1].Name)
	assert.Equal(t, "/maps/genre/jazz.html", report.Genres[1].MapURL)
	assert.Equal(t, 1, report.GenresSkipped)
	assert.Equal(t, 3, report.Countries)

	assert.NotContains(t, string(report.TotalFigure), `"geojson"`)
	assert.Contains(t, string(report.Geometry), `"iso_a2":"FR"`)
	assert.Contains(t, string(report.Ranking), "Pop")

	_, ok := report.Panel("Rock")
	assert.False(t, ok, "skipped genres have no panel")
}

func TestApp(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	ledger := fakeLedger{run: &models.Run{
		Stage:          models.StageIngest,
		Status:         models.RunSucceeded,
		StartedAt:      finished.Add(-time.Minute),
		FinishedAt:     &finished,
		GenresComplete: 2,
		GenresSkipped:  1,
	}}

	t.Run("home", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), ledger)
		code, body, header := get(t, app.Handler(), "/")

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, "Total Spotify Popularity by Country")
		assert.Contains(t, body, `plotMap("total-map"`)
		assert.Contains(t, body, "<td>Pop</td><td>80</td>")
		assert.Contains(t, body, "last ingest succeeded 2026-03-01 12:05 UTC, 2 genres complete, 1 skipped")
	})

	t.Run("genres explorer selects first top genre", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), ledger)
		code, body, _ := get(t, app.Handler(), "/genres")

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, `hx-get="/genres/panel"`)
		assert.Contains(t, body, `<option value="Pop" selected>Pop</option>`)
		assert.Contains(t, body, `<option value="Jazz">Jazz</option>`)
		assert.Contains(t, body, "Pop Popularity by Country")
		assert.NotContains(t, body, `value="Rock"`)
	})

	t.Run("panel partial", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), ledger)
		code, body, _ := get(t, app.Handler(), "/genres/panel?genre=Jazz")

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "Jazz Popularity by Country")
		assert.Contains(t, body, "<td>Artist C</td><td>40</td>")
		assert.NotContains(t, body, "<html")
	})

	t.Run("unknown genre renders empty state", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), ledger)
		code, body, _ := get(t, app.Handler(), "/genres/panel?genre=Polka")

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "No data for genre")
		assert.Contains(t, body, "Polka")
		assert.NotContains(t, body, "plotMap")
	})

	t.Run("no complete genres", func(t *testing.T) {
		d := &models.Dataset{Markets: []string{"US"}}
		d.Add(models.Skipped("Rock", 0, "retries exhausted"))
		app, _ := newTestApp(t, d, nil)

		code, body, _ := get(t, app.Handler(), "/genres")
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, noGenres)
		assert.NotContains(t, body, "<select")

		_, home, _ := get(t, app.Handler(), "/")
		assert.Contains(t, home, noRankings)
	})

	t.Run("geometry", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), ledger)
		code, body, header := get(t, app.Handler(), GeometryPath)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "application/geo+json", header.Get("Content-Type"))
		assert.Contains(t, body, `"FeatureCollection"`)
		assert.Equal(t, 3, strings.Count(body, `"iso_a2"`))
	})

	t.Run("healthz", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), nil)
		code, body, _ := get(t, app.Handler(), "/healthz")

		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"ok","genres":2,"countries":3}`, body)
	})

	t.Run("map artifacts", func(t *testing.T) {
		app, dir := newTestApp(t, testDataset(), nil)
		tu.MustWriteFile(t, filepath.Join(dir, "genre", "pop.html"), "<html>pop</html>")
		h := app.Handler()

		code, body, _ := get(t, h, "/maps/genre/pop.html")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "<html>pop</html>", body)

		code, _, _ = get(t, h, "/maps/genre/")
		assert.Equal(t, http.StatusNotFound, code)

		code, _, _ = get(t, h, "/maps/missing.html")
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("footer without runs", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), fakeLedger{err: shared.ErrRunNotFound})
		_, body, _ := get(t, app.Handler(), "/")
		assert.Contains(t, body, "Data generated 2026-03-01 12:00 UTC; no ingestion runs recorded")
	})

	t.Run("footer survives ledger errors", func(t *testing.T) {
		app, _ := newTestApp(t, testDataset(), fakeLedger{err: errors.New("disk I/O error")})
		code, body, _ := get(t, app.Handler(), "/")
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "Data generated 2026-03-01 12:00 UTC")
	})
}
