// Package geo loads country boundaries and resolves ISO-2 codes to geometry.
package geo

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// CodeProperty is the property name normalized boundaries carry their ISO-2 code under.
const CodeProperty = "iso_a2"

// isoKeys lists the accepted ISO-2 property names in priority order, compared case-insensitively.
var isoKeys = []string{"iso_a2", "iso2", "iso_3166_1_alpha_2", "iso3166-1-alpha-2"}

// Country is one resolved boundary feature.
type Country struct {
	Code     string
	Name     string
	Geometry orb.Geometry
}

// Reference maps ISO-2 codes to country boundaries. It is read-only once loaded.
type Reference struct {
	countries map[string]Country
	codes     []string
	isoKey    string
	skipped   []string
}

// Lookup returns the country for code, matched after uppercasing and trimming.
func (r *Reference) Lookup(code string) (Country, bool) {
	c, ok := r.countries[NormalizeCode(code)]
	return c, ok
}

// Has reports whether code resolves to a country.
func (r *Reference) Has(code string) bool {
	_, ok := r.Lookup(code)
	return ok
}

// Codes returns every resolved code in ascending order.
func (r *Reference) Codes() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Len returns the number of resolved countries.
func (r *Reference) Len() int { return len(r.codes) }

// ISOKey returns the property name the codes were read from.
func (r *Reference) ISOKey() string { return r.isoKey }

// Skipped describes the features that were dropped while loading.
func (r *Reference) Skipped() []string { return r.skipped }

// FeatureCollection returns the resolved countries ordered by code, each with
// [CodeProperty] and "name" properties.
func (r *Reference) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, code := range r.codes {
		c := r.countries[code]
		f := geojson.NewFeature(c.Geometry)
		f.Properties[CodeProperty] = c.Code
		f.Properties["name"] = c.Name
		fc.Append(f)
	}
	return fc
}

// GeoJSON encodes [Reference.FeatureCollection].
func (r *Reference) GeoJSON() ([]byte, error) {
	return r.FeatureCollection().MarshalJSON()
}

// NormalizeCode uppercases and trims a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is exactly two ASCII letters.
func ValidCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// LoadOptions tunes [LoadReference].
type LoadOptions struct {
	// SimplifyTolerance is the Douglas-Peucker threshold in degrees. Zero keeps full detail.
	SimplifyTolerance float64
	Logger            *log.Logger
}

// LoadReference reads a GeoJSON FeatureCollection file.
func LoadReference(path string, opts LoadOptions) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundaries %s: %w", path, err)
	}
	return ParseReference(data, opts)
}

// ParseReference resolves every feature with a valid ISO-2 code and non-empty geometry.
//
// The ISO-2 property is detected from the first accepted name any feature carries.
// Features with a missing or malformed code, empty geometry or a code already seen are skipped and logged.
// A feature that simplification would collapse keeps its full geometry.
func ParseReference(data []byte, opts LoadOptions) (*Reference, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: boundaries: %v", shared.ErrMalformedResponse, err)
	}

	isoKey, ok := detectISOKey(fc)
	if !ok {
		return nil, shared.ErrNoISOColumn
	}

	ref := &Reference{countries: make(map[string]Country), isoKey: isoKey}
	var simplifier *simplify.DouglasPeuckerSimplifier
	if opts.SimplifyTolerance > 0 {
		simplifier = simplify.DouglasPeucker(opts.SimplifyTolerance)
	}

	for idx, f := range fc.Features {
		raw, _ := f.Properties[isoKey].(string)
		code := NormalizeCode(raw)
		name := featureName(f.Properties)
		skip := func(reason string) {
			logger.Warn("skipping boundary feature", "index", idx, "name", name, "code", raw, "reason", reason)
			ref.skipped = append(ref.skipped, fmt.Sprintf("%d %q: %s", idx, name, reason))
		}

		switch {
		case !ValidCode(code):
			skip("invalid ISO-2 code")
			continue
		case emptyGeometry(f.Geometry):
			skip("empty geometry")
			continue
		case ref.countries[code].Code != "":
			skip("duplicate ISO-2 code")
			continue
		}

		geom := f.Geometry
		if simplifier != nil {
			if simplified := simplifier.Simplify(orb.Clone(geom)); !collapsed(geom, simplified) {
				geom = simplified
			} else {
				logger.Debug("keeping unsimplified boundary", "code", code, "name", name)
			}
		}
		if name == "" {
			name = code
		}
		ref.countries[code] = Country{Code: code, Name: name, Geometry: geom}
		ref.codes = append(ref.codes, code)
	}

	sort.Strings(ref.codes)
	logger.Debug("loaded boundaries", "countries", len(ref.codes), "skipped", len(ref.skipped), "iso_key", isoKey)
	return ref, nil
}

// detectISOKey returns the property name holding ISO-2 codes as spelled in the file.
func detectISOKey(fc *geojson.FeatureCollection) (string, bool) {
	present := make(map[string]string)
	for _, f := range fc.Features {
		for k := range f.Properties {
			lower := strings.ToLower(k)
			if _, ok := present[lower]; !ok {
				present[lower] = k
			}
		}
	}
	for _, candidate := range isoKeys {
		if k, ok := present[candidate]; ok {
			return k, true
		}
	}
	return "", false
}

// featureName picks a display name: "name", then "admin", then the first key containing "name".
func featureName(props geojson.Properties) string {
	byLower := make(map[string]string, len(props))
	keys := make([]string, 0, len(props))
	for k, v := range props {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		lower := strings.ToLower(k)
		byLower[lower] = strings.TrimSpace(s)
		keys = append(keys, lower)
	}

	for _, k := range []string{"name", "admin"} {
		if v, ok := byLower[k]; ok {
			return v
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "name") {
			return byLower[k]
		}
	}
	return ""
}

func emptyGeometry(g orb.Geometry) bool {
	if g == nil {
		return true
	}
	switch g := g.(type) {
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	}
	return g.Bound().IsEmpty()
}

// collapsed reports whether simplification dropped a polygon or left a degenerate shape.
func collapsed(orig, simplified orb.Geometry) bool {
	if mp, ok := orig.(orb.MultiPolygon); ok {
		smp, ok := simplified.(orb.MultiPolygon)
		if !ok || len(smp) != len(mp) {
			return true
		}
	}
	return degenerate(simplified)
}

// degenerate reports whether g is missing a polygon or closed ring.
// A closed ring needs at least four points.
func degenerate(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) < 4
	case orb.MultiPolygon:
		if len(g) == 0 {
			return true
		}
		for _, p := range g {
			if degenerate(p) {
				return true
			}
		}
		return false
	}
	return emptyGeometry(g)
}
