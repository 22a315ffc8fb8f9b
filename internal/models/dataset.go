package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/goccy/go-json"
)

// Limits records the configuration an ingestion run used.
type Limits struct {
	MarketsLimit   int `json:"markets_limit"`
	GenresLimit    int `json:"genres_limit"`
	TracksPerGenre int `json:"tracks_per_genre"`
	TopNArtists    int `json:"top_n_artists"`
}

// Dataset is the ingestion output: one outcome per genre, in encounter order.
type Dataset struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Limits      Limits                   `json:"limits"`
	Markets     []string                 `json:"markets"`
	Genres      OrderedMap[GenreOutcome] `json:"genres"`
}

// Add appends an outcome keyed by its genre name.
func (d *Dataset) Add(o GenreOutcome) {
	d.Genres.Set(o.Name(), o)
}

// Complete returns every complete record in encounter order.
func (d *Dataset) Complete() []GenreRecord {
	var out []GenreRecord
	d.Genres.Each(func(_ string, o GenreOutcome) {
		if r, ok := o.Record(); ok {
			out = append(out, r)
		}
	})
	return out
}

// Skipped returns every skipped outcome in encounter order.
func (d *Dataset) Skipped() []GenreOutcome {
	var out []GenreOutcome
	d.Genres.Each(func(_ string, o GenreOutcome) {
		if o.Status() == StatusSkipped {
			out = append(out, o)
		}
	})
	return out
}

// Genre returns the complete record for name.
func (d *Dataset) Genre(name string) (GenreRecord, error) {
	o, ok := d.Genres.Get(name)
	if !ok {
		return GenreRecord{}, fmt.Errorf("%w: %s", shared.ErrGenreNotFound, name)
	}
	r, ok := o.Record()
	if !ok {
		return GenreRecord{}, fmt.Errorf("%w: %s skipped: %s", shared.ErrIncompleteGenre, name, o.Reason())
	}
	return r, nil
}

// Encode renders the dataset as indented UTF-8 JSON.
func (d *Dataset) Encode() ([]byte, error) {
	return shared.MarshalJSON(d, true)
}

// DecodeDataset parses a data file produced by [Dataset.Encode].
func DecodeDataset(data []byte) (*Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: data file: %v", shared.ErrMalformedResponse, err)
	}
	return &d, nil
}
