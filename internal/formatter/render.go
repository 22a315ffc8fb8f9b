package formatter

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"

	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/shared"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.tmpl"))

// RenderMapHTML renders a standalone HTML document displaying fig.
func RenderMapHTML(title string, fig Figure) ([]byte, error) {
	js, err := fig.JS()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = templates.ExecuteTemplate(&buf, "map.html.tmpl", map[string]any{
		"Title":     title,
		"PlotlyURL": PlotlyCDN,
		"Figure":    js,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render map: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMapHTML renders fig and writes it atomically to path.
func WriteMapHTML(path, title string, fig Figure) error {
	data, err := RenderMapHTML(title, fig)
	if err != nil {
		return err
	}
	return shared.WriteFileAtomic(path, data, 0o644)
}

// RankingTableHTML renders an HTML table fragment. empty is shown when rows is empty.
func RankingTableHTML(headers []string, rows [][]string, empty string) (template.HTML, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "table.html.tmpl", map[string]any{
		"Headers": headers,
		"Rows":    rows,
		"Empty":   empty,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// EntryRows converts ranked entries to table rows of key and value.
func EntryRows(entries []models.Entry) [][]string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, []string{e.Key, strconv.Itoa(e.Value)})
	}
	return out
}

// RankingCSV converts a ranking to CSV with the given headers.
func RankingCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteRankingCSV writes a ranking CSV atomically to path.
func WriteRankingCSV(path string, headers []string, rows [][]string) error {
	data, err := RankingCSV(headers, rows)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}
	return shared.WriteFileAtomic(path, data, 0o644)
}
