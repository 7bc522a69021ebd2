// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
)

type Handlers struct{ P domain.ProgressStore }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type progressView struct {
	App       string `json:"app"`
	Collected int    `json:"collected"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/progress/{app}", h.getProgress)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) getProgress(w http.ResponseWriter, r *http.Request) {
	app := strings.TrimSpace(chi.URLParam(r, "app"))
	if app == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid app", "app id is required")
		return
	}
	n, ok, err := h.P.Progress(r.Context(), app)
	if err != nil {
		log.Error().Str("app", app).Err(err).Msg("read progress failed")
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "progress store unavailable")
		return
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "no harvest seen for this app")
		return
	}

	etag, body := calcETagAndBody(progressView{App: app, Collected: n})
	// progress moves while a harvest runs; polling clients use If-None-Match
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write progress body")
	}
}
