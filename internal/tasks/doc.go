// Package tasks runs the two batch stages of the report pipeline.
//
// [Ingester] pages Spotify categories, markets and per-genre track search results into a
// [models.Dataset] and writes it atomically. A genre whose requests exhaust their retries is
// skipped; the run then fails with [shared.ErrIncompleteRun] unless partial output is allowed.
//
// [Preparer] joins the dataset with country boundaries through [BuildViews] and renders the
// total map, one map per top genre and the genre ranking CSV.
//
// Both stages report [ProgressUpdate] values on an optional channel. Sends never block.
package tasks
