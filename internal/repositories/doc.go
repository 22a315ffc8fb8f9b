// Package repositories implements SQLite persistence for the run ledger.
//
// [RunRepository] records one row per ingest or prepare invocation in the runs table, and for
// ingest runs one row per genre outcome in run_genres. Rows are written when a run starts and
// updated once when it finishes; the history command and the report footer read them back.
package repositories
