// Package console serves the server-rendered site pages: the navigation
// menu in both layouts and the PGN/SPN viewer.
package console

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/navigation"
	"github.com/voltline/j1939-console/internal/products"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

//go:embed templates/*.html
var templateFS embed.FS

// NoSPNData is shown in place of an empty SPN table.
const NoSPNData = j1939.NoSPNData

// Handler renders console pages.
type Handler struct {
	nav       *navigation.Handler
	vehicles  *vehicles.Store
	reference *reference.Store
	products  *products.Store
	metrics   *metrics.Metrics
	tmpl      *template.Template
}

// New parses the embedded templates. Any store may be nil, which disables
// the pages that need it.
func New(nav *navigation.Handler, vs *vehicles.Store, rs *reference.Store, ps *products.Store, m *metrics.Metrics) (*Handler, error) {
	tmpl, err := template.New("console").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing console templates: %w", err)
	}
	return &Handler{
		nav:       nav,
		vehicles:  vs,
		reference: rs,
		products:  ps,
		metrics:   m,
		tmpl:      tmpl,
	}, nil
}

// RegisterRoutes mounts the pages. The home page and reference viewer are
// public; uploaded vehicles need the viewer role.
func (h *Handler) RegisterRoutes(r chi.Router, guard *accounts.Guard) {
	r.Get("/", h.handleIndex)
	if h.reference != nil {
		r.Get("/reference/pgns/{id}", h.handleReferencePGN)
	}
	if h.vehicles != nil {
		r.Route("/console", func(r chi.Router) {
			r.Use(guard.Require(accounts.RoleViewer))
			r.Get("/vehicles", h.handleVehicles)
			r.Get("/vehicles/{id}", h.handleVehicle)
		})
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("console: rendering page", "template", name, "error", err)
	}
}

type errorPage struct {
	Chrome
	Message string
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, status, "error", errorPage{Chrome: h.chrome(r, http.StatusText(status)), Message: msg})
}
