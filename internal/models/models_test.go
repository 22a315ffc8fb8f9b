package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMap(t *testing.T) {
	t.Run("keeps insertion order", func(t *testing.T) {
		var m OrderedMap[int]
		m.Set("zeta", 1)
		m.Set("alpha", 2)
		m.Set("mid", 3)
		m.Set("zeta", 4)

		assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
		v, ok := m.Get("zeta")
		assert.True(t, ok)
		assert.Equal(t, 4, v)
		assert.False(t, m.Has("missing"))
	})

	t.Run("JSON round trip preserves order", func(t *testing.T) {
		var m OrderedMap[int]
		m.Set("US", 80)
		m.Set("GB", 80)
		m.Set("AR", 10)

		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, `{"US":80,"GB":80,"AR":10}`, string(data))

		var decoded OrderedMap[int]
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, []string{"US", "GB", "AR"}, decoded.Keys())
	})

	t.Run("decodes null and empty", func(t *testing.T) {
		var m OrderedMap[string]
		require.NoError(t, json.Unmarshal([]byte(`null`), &m))
		assert.Zero(t, m.Len())

		require.NoError(t, json.Unmarshal([]byte(`{}`), &m))
		assert.Zero(t, m.Len())

		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("rejects non objects", func(t *testing.T) {
		var m OrderedMap[int]
		assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
		assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &m))
	})
}

func TestTally(t *testing.T) {
	var tally Tally
	tally.Add("Bad Bunny", 1)
	tally.Add("Taylor Swift", 2)
	tally.Add("Drake", 2)
	tally.Add("Bad Bunny", 1)

	t.Run("Total", func(t *testing.T) {
		assert.Equal(t, 6, tally.Total())
	})

	t.Run("Top breaks ties by insertion order", func(t *testing.T) {
		top := tally.Top(2)
		assert.Equal(t, []Entry{{Key: "Bad Bunny", Value: 2}, {Key: "Taylor Swift", Value: 2}}, top)
	})

	t.Run("Top with non-positive n returns all", func(t *testing.T) {
		assert.Len(t, tally.Top(0), 3)
	})

	t.Run("Truncated", func(t *testing.T) {
		tr := tally.Truncated(1)
		assert.Equal(t, []string{"Bad Bunny"}, tr.Keys())
		assert.Equal(t, 3, tally.Len(), "original untouched")
	})
}

func sampleDataset() *Dataset {
	pop := GenreRecord{Name: "Pop", Order: 0, Tracks: 1, Popularity: 80}
	pop.Markets.Add("US", 80)
	pop.Markets.Add("GB", 80)
	pop.Artists.Add("Artist A", 1)
	var us, gb Tally
	us.Add("Artist A", 1)
	gb.Add("Artist A", 1)
	pop.MarketArtists.Set("US", us)
	pop.MarketArtists.Set("GB", gb)

	d := &Dataset{
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Limits:      Limits{MarketsLimit: 2, GenresLimit: 3, TracksPerGenre: 50, TopNArtists: 5},
		Markets:     []string{"US", "GB"},
	}
	d.Add(Complete(pop))
	d.Add(Skipped("Jazz", 1, "retries exhausted"))
	return d
}

func TestGenreOutcome(t *testing.T) {
	t.Run("variants", func(t *testing.T) {
		c := Complete(GenreRecord{Name: "Pop", Popularity: 5})
		r, ok := c.Record()
		assert.True(t, ok)
		assert.Equal(t, 5, r.Popularity)
		assert.Equal(t, StatusComplete, c.Status())
		assert.Empty(t, c.Reason())

		s := Skipped("Jazz", 3, "boom")
		_, ok = s.Record()
		assert.False(t, ok)
		assert.Equal(t, "Jazz", s.Name())
		assert.Equal(t, 3, s.Order())
		assert.Equal(t, "boom", s.Reason())
	})

	t.Run("skipped JSON carries reason only", func(t *testing.T) {
		data, err := json.Marshal(Skipped("Jazz", 1, "timeout"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"skipped","name":"Jazz","order":1,"reason":"timeout"}`, string(data))
	})

	t.Run("unknown status fails", func(t *testing.T) {
		var o GenreOutcome
		assert.Error(t, json.Unmarshal([]byte(`{"status":"weird"}`), &o))
	})
}

func TestDataset(t *testing.T) {
	t.Run("Complete and Skipped", func(t *testing.T) {
		d := sampleDataset()
		complete := d.Complete()
		require.Len(t, complete, 1)
		assert.Equal(t, "Pop", complete[0].Name)

		skipped := d.Skipped()
		require.Len(t, skipped, 1)
		assert.Equal(t, "Jazz", skipped[0].Name())
	})

	t.Run("Genre lookup", func(t *testing.T) {
		d := sampleDataset()

		r, err := d.Genre("Pop")
		require.NoError(t, err)
		assert.Equal(t, 80, r.Popularity)

		_, err = d.Genre("Metal")
		assert.True(t, errors.Is(err, shared.ErrGenreNotFound))

		_, err = d.Genre("Jazz")
		assert.True(t, errors.Is(err, shared.ErrIncompleteGenre))
	})

	t.Run("Encode and Decode", func(t *testing.T) {
		d := sampleDataset()
		data, err := d.Encode()
		require.NoError(t, err)

		decoded, err := DecodeDataset(data)
		require.NoError(t, err)

		assert.True(t, d.GeneratedAt.Equal(decoded.GeneratedAt))
		assert.Equal(t, d.Limits, decoded.Limits)
		assert.Equal(t, []string{"Pop", "Jazz"}, decoded.Genres.Keys())

		pop, err := decoded.Genre("Pop")
		require.NoError(t, err)
		assert.Equal(t, []string{"US", "GB"}, pop.Markets.Keys())
		us, _ := pop.Markets.Get("US")
		assert.Equal(t, 80, us)
		assert.Equal(t, []Entry{{Key: "Artist A", Value: 1}}, pop.MarketArtistTally("GB").Top(5))
		assert.Zero(t, pop.MarketArtistTally("FR").Len())

		again, err := decoded.Encode()
		require.NoError(t, err)
		assert.Equal(t, string(data), string(again), "encoding is stable across a round trip")
	})

	t.Run("Decode malformed", func(t *testing.T) {
		_, err := DecodeDataset([]byte(`{"genres": [`))
		assert.True(t, errors.Is(err, shared.ErrMalformedResponse))
	})
}

func TestRun(t *testing.T) {
	t.Run("NewRun is valid", func(t *testing.T) {
		r := NewRun(StageIngest)
		assert.NoError(t, r.Validate())
		assert.Zero(t, r.Duration())
	})

	t.Run("Validate rejects unknown stage", func(t *testing.T) {
		r := NewRun("export")
		assert.True(t, errors.Is(r.Validate(), shared.ErrInvalidInput))
	})

	t.Run("Duration", func(t *testing.T) {
		r := NewRun(StagePrepare)
		end := r.StartedAt.Add(3 * time.Second)
		r.FinishedAt = &end
		assert.Equal(t, 3*time.Second, r.Duration())
	})

	t.Run("GenresFrom", func(t *testing.T) {
		rows := GenresFrom(sampleDataset())
		require.Len(t, rows, 2)
		assert.Equal(t, RunGenre{Position: 0, Genre: "Pop", Status: StatusComplete, Popularity: 80}, rows[0])
		assert.Equal(t, RunGenre{Position: 1, Genre: "Jazz", Status: StatusSkipped, Reason: "retries exhausted"}, rows[1])
	})
}
