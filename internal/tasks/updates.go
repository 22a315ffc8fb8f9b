package tasks

import (
	"fmt"

	"github.com/desertthunder/beatborders/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Authenticate Phase = iota
	FetchCategories
	FetchMarkets
	FetchGenre
	WriteDataset
	LoadBoundaries
	BuildTables
	RenderMaps
)

func (p Phase) String() string {
	switch p {
	case Authenticate:
		return "authenticate"
	case FetchCategories:
		return "fetch_categories"
	case FetchMarkets:
		return "fetch_markets"
	case FetchGenre:
		return "fetch_genre"
	case WriteDataset:
		return "write_dataset"
	case LoadBoundaries:
		return "load_boundaries"
	case BuildTables:
		return "build_tables"
	case RenderMaps:
		return "render_maps"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func authenticateUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticate,
		Message: fmt.Sprintf("Authenticating with %s...", service),
	}
}

func categoriesUpdate(found, limit int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCategories,
		Step:    found,
		Total:   limit,
		Message: fmt.Sprintf("Fetched %d/%d genres", found, limit),
	}
}

func marketsUpdate(markets []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMarkets,
		Step:    len(markets),
		Total:   len(markets),
		Message: fmt.Sprintf("Using %d markets", len(markets)),
		Data:    markets,
	}
}

func genreStartedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchGenre,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching tracks for %s...", step, total, name),
	}
}

func genreFinishedUpdate(step, total int, o models.GenreOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, o.Name())
	if r, ok := o.Record(); ok {
		msg = fmt.Sprintf("%s (%d tracks, popularity %d)", msg, r.Tracks, r.Popularity)
	} else {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, o.Name(), o.Reason())
	}
	return ProgressUpdate{
		Phase:   FetchGenre,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    o,
	}
}

func writeDatasetUpdate(path string, genres int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteDataset,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote %d genres to %s", genres, path),
	}
}

func boundariesUpdate(countries int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadBoundaries,
		Step:    countries,
		Total:   countries,
		Message: fmt.Sprintf("Loaded %d country boundaries", countries),
	}
}

func tablesUpdate(genres int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildTables,
		Step:    genres + 1,
		Total:   genres + 1,
		Message: fmt.Sprintf("Built total table and %d genre tables", genres),
	}
}

func renderUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RenderMaps,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Rendered %s", step, total, path),
	}
}
