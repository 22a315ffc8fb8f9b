// package formatter renders aggregated tables as Plotly choropleth figures, HTML documents, HTML tables and CSV
package formatter

import (
	"fmt"
	"html/template"

	"github.com/desertthunder/beatborders/internal/geo"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/goccy/go-json"
)

// PlotlyCDN is the plotly.js bundle every rendered page loads.
const PlotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// Figure is a Plotly figure holding a single choropleth trace.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is a Plotly choropleth trace keyed by ISO-2 code.
type Trace struct {
	Type          string          `json:"type"`
	GeoJSON       json.RawMessage `json:"geojson,omitempty"`
	FeatureIDKey  string          `json:"featureidkey"`
	Locations     []string        `json:"locations"`
	Z             []int           `json:"z"`
	Text          []string        `json:"text"`
	CustomData    [][]string      `json:"customdata"`
	HoverTemplate string          `json:"hovertemplate"`
	ColorScale    string          `json:"colorscale"`
	ZMin          int             `json:"zmin"`
	ColorBar      ColorBar        `json:"colorbar"`
	Marker        Marker          `json:"marker"`
}

type ColorBar struct {
	Title Text `json:"title"`
}

type Marker struct {
	Line Line `json:"line"`
}

type Line struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

type Text struct {
	Text string `json:"text"`
}

// Layout is the subset of Plotly layout the maps use.
type Layout struct {
	Title  Text   `json:"title"`
	Geo    Geo    `json:"geo"`
	Margin Margin `json:"margin"`
	Height int    `json:"height"`
}

type Geo struct {
	Projection Projection `json:"projection"`
	FitBounds  string     `json:"fitbounds"`
	Visible    bool       `json:"visible"`
}

type Projection struct {
	Type string `json:"type"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// ChoroplethFigure builds a figure with one location per row. Rows are used in the given order.
// geometry may be nil when the page supplies boundaries separately.
func ChoroplethFigure(title, valueLabel string, rows []models.CountryAggregate, geometry []byte) Figure {
	trace := Trace{
		Type:          "choropleth",
		FeatureIDKey:  "properties." + geo.CodeProperty,
		Locations:     make([]string, 0, len(rows)),
		Z:             make([]int, 0, len(rows)),
		Text:          make([]string, 0, len(rows)),
		CustomData:    make([][]string, 0, len(rows)),
		HoverTemplate: fmt.Sprintf("<b>%%{text}</b><br>%s: %%{z}<br>%%{customdata[0]}<extra></extra>", valueLabel),
		ColorScale:    "Viridis",
		ColorBar:      ColorBar{Title: Text{Text: valueLabel}},
		Marker:        Marker{Line: Line{Width: 0.5, Color: "#444"}},
	}
	if len(geometry) > 0 {
		trace.GeoJSON = json.RawMessage(geometry)
	}

	for _, row := range rows {
		trace.Locations = append(trace.Locations, row.Code)
		trace.Z = append(trace.Z, row.Value)
		trace.Text = append(trace.Text, row.Name)
		trace.CustomData = append(trace.CustomData, []string{row.Tooltip})
	}

	return Figure{
		Data: []Trace{trace},
		Layout: Layout{
			Title: Text{Text: title},
			Geo: Geo{
				Projection: Projection{Type: "mercator"},
				FitBounds:  "locations",
				Visible:    false,
			},
			Margin: Margin{L: 0, R: 0, T: 40, B: 0},
			Height: 560,
		},
	}
}

// Marshal encodes the figure. Encoding is deterministic for equal figures.
func (f Figure) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// JS encodes the figure for embedding in a <script> block.
func (f Figure) JS() (template.JS, error) {
	data, err := f.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode figure: %w", err)
	}
	return template.JS(data), nil
}
