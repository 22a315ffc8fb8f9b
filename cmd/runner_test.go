package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/repositories"
	"github.com/desertthunder/beatborders/internal/services"
	"github.com/desertthunder/beatborders/internal/shared"
	tu "github.com/desertthunder/beatborders/internal/testing"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func testFixture() tu.SpotifyFixture {
	return tu.SpotifyFixture{
		Categories: []string{"Pop", "Jazz"},
		Markets:    []string{"US", "GB"},
		Tracks: map[string][]tu.FixtureTrack{
			"Pop":  {{ID: "p1", Name: "Pop Song", Artist: "Artist A", Popularity: 80, Markets: []string{"US", "GB"}}},
			"Jazz": {{ID: "j1", Name: "Jazz Song", Artist: "Artist C", Popularity: 40, Markets: []string{"US"}}},
		},
	}
}

type testEnv struct {
	dir        string
	configPath string
	spotify    *tu.SpotifyServer
	runner     *Runner
	output     *bytes.Buffer
}

// newTestEnv writes a config pointing every path at a temp dir and every URL at fake servers.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")

	dir := t.TempDir()
	spotify := tu.NewSpotifyServer(t, testFixture())
	boundaries := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tu.WorldGeoJSON))
	}))
	t.Cleanup(boundaries.Close)

	configPath := filepath.Join(dir, "config.toml")
	tu.MustWriteFile(t, configPath, fmt.Sprintf(`
markets_limit = 10
genres_limit = 10
tracks_per_genre = 50

[credentials.spotify]
client_id = "id"
client_secret = "secret"

[ingest]
output = %[1]q
api_url = %[2]q
token_url = %[3]q
max_retries = 0

[geo]
boundaries_url = %[4]q
boundaries_path = %[5]q
map_dir = %[6]q

[database]
path = %[7]q
`,
		filepath.Join(dir, "data", "spotify_data.json"),
		spotify.APIURL(),
		spotify.TokenURL(),
		boundaries.URL,
		filepath.Join(dir, "data", "countries.geojson"),
		filepath.Join(dir, "map"),
		filepath.Join(dir, "data", "beatborders.db"),
	))

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(&tu.DiscardWriter{}),
		Output: output,
		NewService: func(ctx context.Context, cfg *shared.Config, logger *log.Logger) (services.Service, error) {
			return services.NewSpotifyService(ctx, services.SpotifyOptions{
				ClientID:     cfg.Credentials.Spotify.ClientID,
				ClientSecret: cfg.Credentials.Spotify.ClientSecret,
				TokenURL:     cfg.Ingest.TokenURL,
				BaseURL:      cfg.Ingest.APIURL,
				MaxRetries:   cfg.Ingest.MaxRetries,
				Timeout:      5 * time.Second,
				RetryWaitMin: time.Millisecond,
				RetryWaitMax: 2 * time.Millisecond,
				Logger:       logger,
			})
		},
	})

	return &testEnv{dir: dir, configPath: configPath, spotify: spotify, runner: runner, output: output}
}

func (e *testEnv) run(args ...string) error {
	app := &cli.Command{Name: "beatborders", Commands: e.runner.register()}
	return app.Run(context.Background(), append([]string{"beatborders"}, args...))
}

func (e *testEnv) ledger(t *testing.T) []*models.Run {
	t.Helper()
	cfg, err := shared.LoadConfig(e.configPath)
	require.NoError(t, err)
	db, err := shared.OpenLedger(cfg.Database)
	require.NoError(t, err)
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(repositories.ListOptions{})
	require.NoError(t, err)
	return runs
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output == nil {
				t.Error("expected default output to be set")
			}
			if runner.newService == nil {
				t.Error("expected default service factory to be set")
			}
		})

		t.Run("registers every command", func(t *testing.T) {
			var names []string
			for _, c := range NewRunner(RunnerOpts{}).register() {
				names = append(names, c.Name)
			}
			assert.Equal(t, []string{"init", "ingest", "prepare", "serve", "history"}, names)
		})
	})

	t.Run("Init", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&tu.DiscardWriter{}), Output: output})
		app := &cli.Command{Name: "beatborders", Commands: runner.register()}

		require.NoError(t, app.Run(context.Background(), []string{"beatborders", "init"}))
		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(dir, "data", "beatborders.db"))
		assert.Contains(t, output.String(), "Next steps")

		require.NoError(t, app.Run(context.Background(), []string{"beatborders", "init"}), "init is repeatable")
	})

	t.Run("Ingest", func(t *testing.T) {
		t.Run("writes data file and records the run", func(t *testing.T) {
			env := newTestEnv(t)

			require.NoError(t, env.run("ingest", "--config", env.configPath))
			tu.AssertFileExists(t, filepath.Join(env.dir, "data", "spotify_data.json"))
			assert.Contains(t, env.output.String(), "2 genres complete, 0 skipped, 2 markets")

			runs := env.ledger(t)
			require.Len(t, runs, 1)
			assert.Equal(t, models.StageIngest, runs[0].Stage)
			assert.Equal(t, models.RunSucceeded, runs[0].Status)
			assert.Equal(t, 2, runs[0].GenresComplete)
		})

		t.Run("missing credentials fail before any request", func(t *testing.T) {
			env := newTestEnv(t)
			tu.MustWriteFile(t, env.configPath, "[ingest]\noutput = \"out.json\"\n")

			err := env.run("ingest", "--config", env.configPath)
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
			assert.Zero(t, env.spotify.Hits("token"))
		})

		t.Run("missing config", func(t *testing.T) {
			env := newTestEnv(t)
			err := env.run("ingest", "--config", filepath.Join(env.dir, "nope.toml"))
			assert.ErrorIs(t, err, shared.ErrMissingConfig)
		})

		t.Run("exhausted retries fail the run", func(t *testing.T) {
			env := newTestEnv(t)
			env.spotify.Fail("Jazz", http.StatusServiceUnavailable)

			err := env.run("ingest", "--config", env.configPath)
			assert.ErrorIs(t, err, shared.ErrIncompleteRun)
			tu.AssertNoFile(t, filepath.Join(env.dir, "data", "spotify_data.json"))

			runs := env.ledger(t)
			require.Len(t, runs, 1)
			assert.Equal(t, models.RunFailed, runs[0].Status)
			assert.Equal(t, 1, runs[0].GenresSkipped)
			assert.Contains(t, runs[0].Message, "ingestion incomplete")
		})

		t.Run("allow-partial keeps skipped markers", func(t *testing.T) {
			env := newTestEnv(t)
			env.spotify.Fail("Jazz", http.StatusServiceUnavailable)

			require.NoError(t, env.run("ingest", "--config", env.configPath, "--allow-partial"))
			assert.Contains(t, env.output.String(), "skipped Jazz")

			runs := env.ledger(t)
			require.Len(t, runs, 1)
			assert.Equal(t, models.RunPartial, runs[0].Status)
		})
	})

	t.Run("Prepare", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.run("ingest", "--config", env.configPath))
		env.output.Reset()

		require.NoError(t, env.run("prepare", "--config", env.configPath))
		tu.AssertFileExists(t, filepath.Join(env.dir, "map", "total_popularity.html"))
		tu.AssertFileExists(t, filepath.Join(env.dir, "map", "genre", "pop.html"))
		tu.AssertFileExists(t, filepath.Join(env.dir, "map", "genre", "jazz.html"))
		tu.AssertFileExists(t, filepath.Join(env.dir, "map", "genre_ranking.csv"))
		assert.Contains(t, env.output.String(), "Downloaded boundaries")

		runs := env.ledger(t)
		require.Len(t, runs, 2)
		assert.Equal(t, models.StagePrepare, runs[0].Stage)
		assert.Equal(t, models.RunSucceeded, runs[0].Status)
		assert.Equal(t, 2, runs[0].CountriesMatched)
	})

	t.Run("Prepare without data file", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.run("prepare", "--config", env.configPath)
		require.Error(t, err)

		runs := env.ledger(t)
		require.Len(t, runs, 1)
		assert.Equal(t, models.RunFailed, runs[0].Status)
	})

	t.Run("History", func(t *testing.T) {
		t.Run("empty ledger", func(t *testing.T) {
			env := newTestEnv(t)

			require.NoError(t, env.run("history", "--config", env.configPath))
			assert.Contains(t, env.output.String(), "BeatBorders run history")
			assert.Contains(t, env.output.String(), "No runs recorded")
		})

		t.Run("table", func(t *testing.T) {
			env := newTestEnv(t)
			require.NoError(t, env.run("ingest", "--config", env.configPath))
			env.output.Reset()

			require.NoError(t, env.run("history", "--config", env.configPath))
			out := env.output.String()
			assert.Contains(t, out, "STATUS")
			assert.Contains(t, out, "ingest")
			assert.Contains(t, out, "succeeded")
			assert.Contains(t, out, "2/2")
		})

		t.Run("json with stage filter", func(t *testing.T) {
			env := newTestEnv(t)
			require.NoError(t, env.run("ingest", "--config", env.configPath))
			require.NoError(t, env.run("prepare", "--config", env.configPath))
			env.output.Reset()

			require.NoError(t, env.run("history", "--config", env.configPath, "--json", "--stage", "prepare"))

			var runs []models.Run
			require.NoError(t, json.Unmarshal(env.output.Bytes(), &runs))
			require.Len(t, runs, 1)
			assert.Equal(t, models.StagePrepare, runs[0].Stage)
		})

		t.Run("output errors", func(t *testing.T) {
			env := newTestEnv(t)
			require.NoError(t, env.run("ingest", "--config", env.configPath))

			env.runner.output = tu.BrokenWriter{}
			err := env.run("history", "--config", env.configPath, "--json")
			assert.ErrorIs(t, err, tu.ErrWriteFailed)

			capped := &tu.CappedWriter{Allowed: 2, Target: &bytes.Buffer{}}
			env.runner.output = capped
			err = env.run("history", "--config", env.configPath)
			assert.ErrorIs(t, err, tu.ErrWriteFailed, "the first table row is the third write")
		})

		t.Run("unknown stage", func(t *testing.T) {
			env := newTestEnv(t)
			err := env.run("history", "--config", env.configPath, "--stage", "export")
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	})
}

func TestHistoryRow(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(95 * time.Second)
	row := historyRow(&models.Run{
		Stage:              models.StagePrepare,
		Status:             models.RunSucceeded,
		StartedAt:          started,
		FinishedAt:         &finished,
		GenresComplete:     8,
		GenresSkipped:      2,
		CountriesMatched:   9,
		CountriesUnmatched: 1,
	})

	assert.Contains(t, row, "prepare")
	assert.Contains(t, row, "1m35s")
	assert.Contains(t, row, "8/10")
	assert.Contains(t, row, "9/10")
}
