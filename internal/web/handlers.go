package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/formatter"
	"github.com/desertthunder/beatborders/internal/models"
	"github.com/desertthunder/beatborders/internal/server"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/goccy/go-json"
)

const (
	// HTMXCDN is the htmx bundle the report pages load.
	HTMXCDN = "https://unpkg.com/htmx.org@2.0.3"
	// GeometryPath serves the shared boundary GeoJSON every map on a page plots against.
	GeometryPath = "/geo/countries.geojson"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// RunLedger reads the most recent ledger entry of a stage.
type RunLedger interface {
	Latest(stage models.Stage) (*models.Run, error)
}

type panelData struct {
	Found bool
	Panel GenrePanel
	Empty string
}

type pageData struct {
	Title       string
	Active      string
	PlotlyURL   string
	HTMXURL     string
	GeometryURL string
	Footer      string
	Report      *Report
	Genre       string
	Panel       panelData
}

// App serves the Home and Genres Explorer views of a [Report].
type App struct {
	report *Report
	ledger RunLedger
	mapDir string
	logger *log.Logger
	pages  map[string]*template.Template
}

// NewApp parses the page templates. ledger may be nil, in which case the footer omits run details.
func NewApp(report *Report, ledger RunLedger, mapDir string, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	pages := make(map[string]*template.Template, 2)
	for _, name := range []string{"home", "genres"} {
		tmpl, err := template.ParseFS(templateFiles,
			"templates/layout.html.tmpl",
			"templates/panel.html.tmpl",
			"templates/"+name+".html.tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s templates: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &App{report: report, ledger: ledger, mapDir: mapDir, logger: logger, pages: pages}, nil
}

// Register adds every report route to r.
func (a *App) Register(r server.Router) {
	r.Handle(http.MethodGet, "/", http.HandlerFunc(a.home))
	r.Handle(http.MethodGet, "/genres", http.HandlerFunc(a.genres))
	r.Handle(http.MethodGet, "/genres/panel", http.HandlerFunc(a.panel))
	r.Handle(http.MethodGet, GeometryPath, http.HandlerFunc(a.geometry))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.health))
	r.Handler(NewArtifactHandler(a.mapDir))
}

// Handler returns the report routes behind the default middleware stack.
func (a *App) Handler() http.Handler {
	router := server.NewChiRouter()
	router.Use(server.DefaultMiddleware(a.logger)...)
	a.Register(router)
	return router
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, "home", "layout", a.page("Home", "home"))
}

func (a *App) genres(w http.ResponseWriter, r *http.Request) {
	data := a.page("Genres Explorer", "genres")
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	if genre == "" {
		genre = a.report.DefaultGenre()
	}
	data.Genre = genre
	data.Panel = a.panelFor(genre)
	a.render(w, "genres", "layout", data)
}

// panel renders the HTMX partial. Unknown genres get an empty-state panel with 200 so the swap happens.
func (a *App) panel(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	a.render(w, "genres", "panel", a.panelFor(genre))
}

func (a *App) geometry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(a.report.Geometry)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(map[string]any{
		"status":    "ok",
		"genres":    len(a.report.Genres),
		"countries": a.report.Countries,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (a *App) panelFor(genre string) panelData {
	if genre == "" {
		return panelData{Empty: noGenres}
	}
	p, ok := a.report.Panel(genre)
	if !ok {
		a.logger.Debug("genre panel requested for unknown genre", "genre", genre)
		return panelData{Empty: fmt.Sprintf("No data for genre %q", genre)}
	}
	return panelData{Found: true, Panel: p}
}

func (a *App) page(title, active string) pageData {
	return pageData{
		Title:       title,
		Active:      active,
		PlotlyURL:   formatter.PlotlyCDN,
		HTMXURL:     HTMXCDN,
		GeometryURL: GeometryPath,
		Footer:      a.footer(),
		Report:      a.report,
	}
}

// footer describes the dataset and the latest ingestion run.
func (a *App) footer() string {
	parts := []string{"Data generated " + formatTime(a.report.GeneratedAt)}
	if a.ledger == nil {
		return parts[0]
	}

	run, err := a.ledger.Latest(models.StageIngest)
	switch {
	case errors.Is(err, shared.ErrRunNotFound):
		parts = append(parts, "no ingestion runs recorded")
	case err != nil:
		a.logger.Warn("failed to read run ledger", "error", err)
	default:
		at := run.StartedAt
		if run.FinishedAt != nil {
			at = *run.FinishedAt
		}
		parts = append(parts, fmt.Sprintf("last ingest %s %s, %d genres complete, %d skipped",
			run.Status, formatTime(at), run.GenresComplete, run.GenresSkipped))
	}
	return strings.Join(parts, "; ")
}

func (a *App) render(w http.ResponseWriter, page, name string, data any) {
	var buf bytes.Buffer
	if err := a.pages[page].ExecuteTemplate(&buf, name, data); err != nil {
		a.logger.Error("failed to render template", "page", page, "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
