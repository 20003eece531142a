package navigation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/metrics"
)

// Handler serves the menu tree, stateless views and live menu sessions.
type Handler struct {
	tree        *Tree
	metrics     *metrics.Metrics
	defaultLang string
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(tree *Tree, m *metrics.Metrics, defaultLang string) *Handler {
	if defaultLang != LangArabic {
		defaultLang = LangEnglish
	}
	return &Handler{tree: tree, metrics: m, defaultLang: defaultLang}
}

// Tree returns the served tree.
func (h *Handler) Tree() *Tree { return h.tree }

// RegisterRoutes mounts the navigation endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/navigation", h.handleTree)
	r.Get("/api/navigation/view", h.handleView)
	r.Get("/ws/navigation", h.handleSession)
}

// Lang picks the request language from ?lang=, falling back to the default.
func (h *Handler) Lang(r *http.Request) string {
	switch lang := r.URL.Query().Get("lang"); lang {
	case LangEnglish, LangArabic:
		return lang
	}
	return h.defaultLang
}

// Replay builds a fresh menu and applies the expansion named by the
// section, item and group query parameters. Unknown IDs are ignored.
func (h *Handler) Replay(r *http.Request) *Menu {
	q := r.URL.Query()
	m := NewMenu(h.tree)
	if s := q.Get("section"); s != "" {
		m.OpenSection(s)
	}
	if i := q.Get("item"); i != "" {
		m.ToggleItem(i)
	}
	if g := q.Get("group"); g != "" {
		m.ToggleLeafGroup(g)
	}
	return m
}

type treeResponse struct {
	Lang     string     `json:"lang"`
	Sections []NodeView `json:"sections"`
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	lang := h.Lang(r)
	writeJSON(w, http.StatusOK, treeResponse{
		Lang:     lang,
		Sections: Localize(h.tree, lang),
	})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	m := h.Replay(r)
	surface := ParseSurface(r.URL.Query().Get("surface"))
	writeJSON(w, http.StatusOK, m.Render(h.Lang(r), surface))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("navigation: encoding response", "error", err)
	}
}
