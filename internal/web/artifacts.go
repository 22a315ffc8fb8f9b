package web

import (
	"net/http"
)

// ArtifactHandler serves the rendered map artifacts under /maps/.
type ArtifactHandler struct {
	files http.Handler
}

// NewArtifactHandler serves files from dir.
func NewArtifactHandler(dir string) *ArtifactHandler {
	return &ArtifactHandler{files: http.StripPrefix("/maps/", http.FileServer(http.Dir(dir)))}
}

// Routes implements [server.Handler].
func (h *ArtifactHandler) Routes() []string { return []string{"/maps/*"} }

// ServeHTTP serves GET and HEAD requests; directory listings are refused.
func (h *ArtifactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if len(r.URL.Path) > 0 && r.URL.Path[len(r.URL.Path)-1] == '/' {
		http.NotFound(w, r)
		return
	}
	h.files.ServeHTTP(w, r)
}
