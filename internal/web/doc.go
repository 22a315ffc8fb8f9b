// Package web serves the interactive report: a Home view with the total popularity map and the
// genre ranking, and a Genres Explorer whose dropdown swaps in a genre panel over HTMX.
//
// [NewReport] builds every figure and table once from the dataset and the boundary reference.
// Pages embed the figures without geometry and plot them against the boundaries served once at
// [GeometryPath]. Rendered artifacts from the prepare stage are served under /maps/.
//
// Routes
//
//	GET /                       Home
//	GET /genres                 Genres Explorer, first top genre selected
//	GET /genres/panel?genre=X   HTMX partial; unknown genres render an empty state
//	GET /geo/countries.geojson  shared boundaries
//	GET /maps/*                 map artifacts
//	GET /healthz                liveness
package web
