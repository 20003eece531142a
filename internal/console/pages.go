package console

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

type indexPage struct {
	Chrome
	Products []productCard
}

type productCard struct {
	Name     string
	SKU      string
	Category string
	Latest   string
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{Chrome: h.chrome(r, "J1939 Telematics & Diagnostics")}
	if h.products != nil {
		list, err := h.products.List(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			h.renderError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		for _, p := range list {
			card := productCard{Name: p.Name, SKU: p.SKU, Category: p.Category}
			if fw, err := h.products.Latest(r.Context(), p.ID); err == nil && fw != nil {
				card.Latest = fw.Version
			}
			page.Products = append(page.Products, card)
		}
	}
	h.render(w, http.StatusOK, "index", page)
}

type vehiclesPage struct {
	Chrome
	Vehicles []vehicles.Vehicle
}

func (h *Handler) handleVehicles(w http.ResponseWriter, r *http.Request) {
	list, err := h.vehicles.List(r.Context(), 100, 0)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.render(w, http.StatusOK, "vehicles", vehiclesPage{Chrome: h.chrome(r, "Vehicles"), Vehicles: list})
}

// ViewerPage is the PGN/SPN viewer: one tab per canonical PGN and the SPN
// table of the selected one.
type ViewerPage struct {
	Chrome
	Heading  string
	Shape    string
	PGNCount int
	SPNCount int
	Tabs     []Tab
	Active   *j1939.CanonicalPGN
	Rows     []j1939.SPNRow
	Empty    string
}

// Tab links to one PGN of the viewer.
type Tab struct {
	Index  int
	Hex    string
	Name   string
	Count  int
	Active bool
	Link   string
}

func (h *Handler) handleVehicle(w http.ResponseWriter, r *http.Request) {
	v, rec, err := h.vehicles.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if v == nil {
		h.renderError(w, r, http.StatusNotFound, "vehicle not found")
		return
	}
	res := j1939.Normalize(rec)
	h.metrics.ObserveNormalization(res.Shape.String(), res.SPNCount)
	h.render(w, http.StatusOK, "viewer", h.viewer(r, v.DisplayName, res))
}

func (h *Handler) handleReferencePGN(w http.ResponseWriter, r *http.Request) {
	p, err := h.reference.GetPGN(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		h.renderError(w, r, http.StatusNotFound, "PGN not found")
		return
	}
	name := p.Name
	if st, err := h.reference.GetStandard(r.Context(), p.StandardID); err == nil && st != nil {
		name = st.Code + " " + p.Name
	}
	res, err := reference.NormalizedPGN(name, p)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.render(w, http.StatusOK, "viewer", h.viewer(r, name, res))
}

// viewer selects the tab given by ?tab=, or the PGN named by ?pgn=, and
// defaults to the first one. Tabs are addressed by position because PGN hex
// values may be empty or repeated.
func (h *Handler) viewer(r *http.Request, heading string, res j1939.Result) ViewerPage {
	page := ViewerPage{
		Chrome:   h.chrome(r, heading),
		Heading:  heading,
		Shape:    res.Shape.String(),
		PGNCount: res.PGNCount,
		SPNCount: res.SPNCount,
	}

	q := r.URL.Query()
	activeIdx := -1
	if v := q.Get("tab"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			if _, ok := res.At(i); ok {
				activeIdx = i
			}
		}
	} else if want := q.Get("pgn"); want != "" {
		activeIdx = res.Index(want)
	}
	if activeIdx < 0 && len(res.PGNList) > 0 {
		activeIdx = 0
	}
	active, found := res.At(activeIdx)

	for i, p := range res.PGNList {
		link := r.URL.Query()
		link.Del("pgn")
		link.Set("tab", strconv.Itoa(i))
		page.Tabs = append(page.Tabs, Tab{
			Index:  i,
			Hex:    p.PGNHex,
			Name:   p.Name,
			Count:  p.SPNCount,
			Active: i == activeIdx,
			Link:   r.URL.Path + "?" + link.Encode(),
		})
	}

	if found {
		page.Active = &active
		page.Rows = j1939.Rows(active)
	}
	if len(page.Rows) == 0 {
		page.Empty = NoSPNData
	}
	return page
}
