package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// GenreRecord holds the popularity figures accumulated for one genre.
type GenreRecord struct {
	Name       string `json:"name"`
	Order      int    `json:"order"`
	Tracks     int    `json:"tracks"`
	Popularity int    `json:"popularity"`

	// Markets maps market code to summed track popularity.
	Markets Tally `json:"markets"`

	// Artists maps primary artist to summed track popularity, each track counted once.
	Artists Tally `json:"artists"`

	// MarketArtists holds the leading artists per market.
	MarketArtists OrderedMap[Tally] `json:"market_artists"`
}

// MarketArtistTally returns the artist tally for market, empty when absent.
func (r GenreRecord) MarketArtistTally(market string) Tally {
	t, _ := r.MarketArtists.Get(market)
	return t
}

// OutcomeStatus tags a [GenreOutcome].
type OutcomeStatus string

const (
	StatusComplete OutcomeStatus = "complete"
	StatusSkipped  OutcomeStatus = "skipped"
)

// GenreOutcome is either a complete [GenreRecord] or a skipped genre with a reason.
//
// Construct with [Complete] or [Skipped].
type GenreOutcome struct {
	status OutcomeStatus
	reason string
	record GenreRecord
}

// Complete wraps a fully fetched record.
func Complete(r GenreRecord) GenreOutcome {
	return GenreOutcome{status: StatusComplete, record: r}
}

// Skipped marks a genre that could not be fetched.
func Skipped(name string, order int, reason string) GenreOutcome {
	return GenreOutcome{
		status: StatusSkipped,
		reason: reason,
		record: GenreRecord{Name: name, Order: order},
	}
}

// Status returns the outcome tag.
func (o GenreOutcome) Status() OutcomeStatus { return o.status }

// Name returns the genre name for either variant.
func (o GenreOutcome) Name() string { return o.record.Name }

// Order returns the encounter index for either variant.
func (o GenreOutcome) Order() int { return o.record.Order }

// Reason returns why the genre was skipped; empty for complete outcomes.
func (o GenreOutcome) Reason() string { return o.reason }

// Record returns the record and true only for complete outcomes.
func (o GenreOutcome) Record() (GenreRecord, bool) {
	if o.status != StatusComplete {
		return GenreRecord{}, false
	}
	return o.record, true
}

type completeOutcomeJSON struct {
	Status OutcomeStatus `json:"status"`
	GenreRecord
}

type skippedOutcomeJSON struct {
	Status OutcomeStatus `json:"status"`
	Name   string        `json:"name"`
	Order  int           `json:"order"`
	Reason string        `json:"reason"`
}

func (o GenreOutcome) MarshalJSON() ([]byte, error) {
	switch o.status {
	case StatusComplete:
		return json.Marshal(completeOutcomeJSON{Status: o.status, GenreRecord: o.record})
	case StatusSkipped:
		return json.Marshal(skippedOutcomeJSON{Status: o.status, Name: o.record.Name, Order: o.record.Order, Reason: o.reason})
	default:
		return nil, fmt.Errorf("unknown outcome status %q", o.status)
	}
}

func (o *GenreOutcome) UnmarshalJSON(data []byte) error {
	var head struct {
		Status OutcomeStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Status {
	case StatusComplete:
		var w completeOutcomeJSON
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*o = Complete(w.GenreRecord)
	case StatusSkipped:
		var w skippedOutcomeJSON
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*o = Skipped(w.Name, w.Order, w.Reason)
	default:
		return fmt.Errorf("unknown outcome status %q", head.Status)
	}
	return nil
}
