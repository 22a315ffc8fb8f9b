// Package models defines the data carried between the BeatBorders pipeline stages.
//
// The ingestion output is a [Dataset]: one [GenreOutcome] per genre in encounter order.
// An outcome is either complete, carrying a [GenreRecord], or skipped with a reason.
// Only complete records feed aggregation.
//
// [OrderedMap] and [Tally] keep insertion order through JSON encoding so Top-N ties
// resolve the same way before and after the data file round trip.
//
// Geo preparation produces [CountryTable] values of [CountryAggregate] rows.
// Every invocation of a stage is recorded as a [Run] in the ledger.
package models
