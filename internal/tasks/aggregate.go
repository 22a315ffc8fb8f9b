package tasks

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/desertthunder/beatborders/internal/geo"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
)

const (
	// NoArtists is the tooltip for a sampled market where a genre has no artists.
	NoArtists = "No artists"
	// NoData is the tooltip for a country that no market covered.
	NoData = "No data"
	// ExplorerArtists is the length of the per-genre artist ranking.
	ExplorerArtists = 10
)

// TopGenres returns up to n complete genres ordered by popularity, ties broken by encounter order.
func TopGenres(d *models.Dataset, n int) []models.GenreRecord {
	genres := d.Complete()
	sort.SliceStable(genres, func(i, j int) bool {
		if genres[i].Popularity != genres[j].Popularity {
			return genres[i].Popularity > genres[j].Popularity
		}
		return genres[i].Order < genres[j].Order
	})
	if n > 0 && len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

// TotalTable sums every complete genre per country. The tooltip lists the topN genres
// contributing most to the country as "Genre: value" lines.
func TotalTable(d *models.Dataset, topN int) models.CountryTable {
	var byCountry models.OrderedMap[models.Tally]
	for _, rec := range d.Complete() {
		rec.Markets.Each(func(code string, v int) {
			code = geo.NormalizeCode(code)
			t, _ := byCountry.Get(code)
			t.Add(rec.Name, v)
			byCountry.Set(code, t)
		})
	}

	var table models.CountryTable
	byCountry.Each(func(code string, t models.Tally) {
		table.Set(code, models.CountryAggregate{
			Code:    code,
			Value:   t.Total(),
			Tooltip: Tooltip(t.Top(topN), NoData),
		})
	})
	return table
}

// GenreTable builds the per-country table of one genre over every sampled market.
// Markets the genre did not reach get zero and [NoArtists].
func GenreTable(d *models.Dataset, rec models.GenreRecord, topN int) models.CountryTable {
	var table models.CountryTable
	add := func(code string) {
		code = geo.NormalizeCode(code)
		if table.Has(code) {
			return
		}
		value, _ := rec.Markets.Get(code)
		artists := rec.MarketArtistTally(code)
		table.Set(code, models.CountryAggregate{
			Code:    code,
			Value:   value,
			Tooltip: Tooltip(artists.Top(topN), NoArtists),
		})
	}

	for _, code := range d.Markets {
		add(code)
	}
	for _, code := range rec.Markets.Keys() {
		add(code)
	}
	return table
}

// Tooltip joins entries as "Key: value" lines separated by <br>, or returns empty when there are none.
// Keys are HTML-escaped.
func Tooltip(entries []models.Entry, empty string) string {
	if len(entries) == 0 {
		return empty
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %d", html.EscapeString(e.Key), e.Value))
	}
	return strings.Join(lines, "<br>")
}

// MergeResult is a table joined with the boundary reference.
type MergeResult struct {
	Rows      []models.CountryAggregate // one per reference country, sorted by code
	Matched   int
	Unmatched []string // table codes with no boundary, in table order
}

// Merge joins table with ref. Rows whose code has no boundary are excluded and reported.
// Countries without a row are filled with zero and [NoData].
func Merge(table models.CountryTable, ref *geo.Reference) MergeResult {
	var result MergeResult
	matched := make(map[string]models.CountryAggregate, table.Len())

	table.Each(func(code string, row models.CountryAggregate) {
		country, ok := ref.Lookup(code)
		if !ok {
			result.Unmatched = append(result.Unmatched, code)
			return
		}
		row.Code = country.Code
		row.Name = country.Name
		matched[country.Code] = row
		result.Matched++
	})

	for _, code := range ref.Codes() {
		if row, ok := matched[code]; ok {
			result.Rows = append(result.Rows, row)
			continue
		}
		country, _ := ref.Lookup(code)
		result.Rows = append(result.Rows, models.CountryAggregate{
			Code:    code,
			Name:    country.Name,
			Tooltip: NoData,
		})
	}
	return result
}

// GenreRanking totals each genre across countries, highest first with ties in the given order.
func GenreRanking(genres []models.GenreRecord) []models.Entry {
	var t models.Tally
	for _, g := range genres {
		t.Add(g.Name, g.Markets.Total())
	}
	return t.Top(0)
}

// ArtistRanking returns the genre's n highest-scoring artists.
func ArtistRanking(rec models.GenreRecord, n int) []models.Entry {
	return rec.Artists.Top(n)
}

// GenreView holds the derived data for one top genre.
type GenreView struct {
	Record  models.GenreRecord
	Slug    string
	Table   MergeResult
	Artists []models.Entry
}

// Views holds every table derived from one dataset and boundary reference.
type Views struct {
	Total   MergeResult
	Genres  []GenreView // top genres, ranked
	Ranking []models.Entry
	Skipped []models.GenreOutcome
}

// Genre returns the view for name.
func (v *Views) Genre(name string) (GenreView, bool) {
	for _, g := range v.Genres {
		if g.Record.Name == name {
			return g, true
		}
	}
	return GenreView{}, false
}

// BuildViews derives the total table, the genre ranking and one view per top genre.
func BuildViews(d *models.Dataset, ref *geo.Reference, topNGenres, topNArtists int) *Views {
	top := TopGenres(d, topNGenres)
	views := &Views{
		Total:   Merge(TotalTable(d, topNGenres), ref),
		Ranking: GenreRanking(top),
		Skipped: d.Skipped(),
	}

	slugs := GenreSlugs(top)
	for _, rec := range top {
		views.Genres = append(views.Genres, GenreView{
			Record:  rec,
			Slug:    slugs[rec.Name],
			Table:   Merge(GenreTable(d, rec, topNArtists), ref),
			Artists: ArtistRanking(rec, ExplorerArtists),
		})
	}
	return views
}

// GenreSlugs assigns each genre a unique file-safe slug. Empty slugs become "genre".
// A taken slug gets the genre's encounter index appended, then a counter until it is free.
func GenreSlugs(genres []models.GenreRecord) map[string]string {
	out := make(map[string]string, len(genres))
	used := make(map[string]bool, len(genres))
	for _, g := range genres {
		slug := shared.Slugify(g.Name)
		if slug == "" {
			slug = "genre"
		}
		if used[slug] {
			base := fmt.Sprintf("%s-%d", slug, g.Order)
			slug = base
			for n := 2; used[slug]; n++ {
				slug = fmt.Sprintf("%s-%d", base, n)
			}
		}
		used[slug] = true
		out[g.Name] = slug
	}
	return out
}
