package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/beatborders/internal/formatter"
	"github.com/desertthunder/beatborders/internal/shared"
	tu "github.com/desertthunder/beatborders/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boundaryServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newBoundaryServer(t *testing.T, body string) *boundaryServer {
	t.Helper()
	bs := &boundaryServer{}
	bs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs.hits.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(bs.Close)
	return bs
}

func newTestPreparer(t *testing.T, boundariesURL string) (*Preparer, PrepareOptions) {
	t.Helper()
	dir := t.TempDir()

	data, err := popJazzDataset().Encode()
	require.NoError(t, err)
	dataPath := filepath.Join(dir, "spotify_data.json")
	require.NoError(t, shared.WriteFileAtomic(dataPath, data, 0o644))

	opts := PrepareOptions{
		DataPath:       dataPath,
		BoundariesURL:  boundariesURL,
		BoundariesPath: filepath.Join(dir, "countries.geojson"),
		MapDir:         filepath.Join(dir, "map"),
		TopNGenres:     10,
		TopNArtists:    5,
		MaxRetries:     1,
		Timeout:        5 * time.Second,
	}
	p := NewPreparer(opts, shared.NewLogger(&tu.DiscardWriter{}))
	p.Fetcher().SetRetryWait(time.Millisecond, 2*time.Millisecond)
	return p, opts
}

func TestPreparerRun(t *testing.T) {
	t.Run("writes total, genre and ranking artifacts", func(t *testing.T) {
		bs := newBoundaryServer(t, tu.WorldGeoJSON)
		p, opts := newTestPreparer(t, bs.URL)

		result, err := p.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.True(t, result.Downloaded)
		assert.Equal(t, []string{
			filepath.Join(opts.MapDir, "total_popularity.html"),
			filepath.Join(opts.MapDir, "genre", "pop.html"),
			filepath.Join(opts.MapDir, "genre", "jazz.html"),
			filepath.Join(opts.MapDir, "genre_ranking.csv"),
		}, result.Artifacts)
		assert.Equal(t, []string{"Pop", "Jazz"}, result.Genres)
		assert.Equal(t, 2, result.CountriesMatched)
		assert.Empty(t, result.CountriesUnmatched)
		for _, path := range result.Artifacts {
			tu.AssertFileExists(t, path)
		}

		total := tu.MustReadFile(t, result.Artifacts[0])
		assert.Contains(t, total, "Total Spotify Popularity by Country")
		assert.Contains(t, total, "Pop: 80")
		assert.Contains(t, total, "Jazz: 40")
		assert.Contains(t, total, formatter.PlotlyCDN)

		csv := tu.MustReadFile(t, result.Artifacts[3])
		assert.Equal(t, "genre,total_popularity\nPop,160\nJazz,40\n", csv)
	})

	t.Run("identical inputs produce identical artifacts", func(t *testing.T) {
		bs := newBoundaryServer(t, tu.WorldGeoJSON)
		p, _ := newTestPreparer(t, bs.URL)

		first, err := p.Run(context.Background(), nil)
		require.NoError(t, err)
		snapshot := make(map[string]string, len(first.Artifacts))
		for _, path := range first.Artifacts {
			snapshot[path] = tu.MustReadFile(t, path)
		}

		second, err := p.Run(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, second.Downloaded, "boundaries come from the cache")
		assert.Equal(t, int32(1), bs.hits.Load())
		require.Equal(t, first.Artifacts, second.Artifacts)
		for _, path := range second.Artifacts {
			assert.Equal(t, snapshot[path], tu.MustReadFile(t, path), path)
		}
	})

	t.Run("every rendered code has a boundary", func(t *testing.T) {
		bs := newBoundaryServer(t, tu.WorldGeoJSON)
		p, _ := newTestPreparer(t, bs.URL)

		result, err := p.Run(context.Background(), nil)
		require.NoError(t, err)

		jazz := tu.MustReadFile(t, result.Artifacts[2])
		for _, code := range []string{`"FR"`, `"GB"`, `"US"`} {
			assert.Contains(t, jazz, code)
		}
		assert.NotContains(t, jazz, `"-99"`)
		assert.Contains(t, jazz, NoArtists)
	})

	t.Run("reports progress", func(t *testing.T) {
		bs := newBoundaryServer(t, tu.WorldGeoJSON)
		p, _ := newTestPreparer(t, bs.URL)

		progress := make(chan ProgressUpdate, 32)
		_, err := p.Run(context.Background(), progress)
		require.NoError(t, err)
		close(progress)

		counts := make(map[Phase]int)
		for u := range progress {
			counts[u.Phase]++
		}
		assert.Equal(t, 1, counts[LoadBoundaries])
		assert.Equal(t, 1, counts[BuildTables])
		assert.Equal(t, 3, counts[RenderMaps])
	})

	t.Run("boundary download failure writes nothing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		p, opts := newTestPreparer(t, srv.URL)

		_, err := p.Run(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrRetriesExhausted))
		tu.AssertNoFile(t, opts.BoundariesPath)
		tu.AssertNoFile(t, filepath.Join(opts.MapDir, TotalMapFile))
	})

	t.Run("boundaries without ISO-2 codes", func(t *testing.T) {
		bs := newBoundaryServer(t, `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"name":"Nowhere"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`)
		p, opts := newTestPreparer(t, bs.URL)

		_, err := p.Run(context.Background(), nil)
		assert.ErrorIs(t, err, shared.ErrNoISOColumn)
		tu.AssertNoFile(t, opts.BoundariesPath)
	})

	t.Run("missing data file", func(t *testing.T) {
		bs := newBoundaryServer(t, tu.WorldGeoJSON)
		p, opts := newTestPreparer(t, bs.URL)
		require.NoError(t, os.Remove(opts.DataPath))

		_, err := p.Run(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "failed to read data file"))
	})
}

func TestPrepareOptionsFrom(t *testing.T) {
	cfg := shared.DefaultConfig()
	cfg.Geo.MapDir = "out"
	opts := PrepareOptionsFrom(cfg)

	assert.Equal(t, "out", opts.MapDir)
	assert.Equal(t, cfg.Ingest.Output, opts.DataPath)
	assert.Equal(t, cfg.TopNGenres, opts.TopNGenres)
	assert.Equal(t, cfg.Ingest.Timeout(), opts.Timeout)
}

func TestGenreMapFile(t *testing.T) {
	assert.Equal(t, filepath.Join("genre", "hip-hop.html"), GenreMapFile("hip-hop"))
	assert.Equal(t, "Jazz Popularity by Country", GenreTitle("Jazz"))
}
