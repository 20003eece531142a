package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
)

// RegisterRoutes mounts the reference data endpoints. Reads are public;
// writes need the editor role.
func RegisterRoutes(r chi.Router, store *Store, guard *accounts.Guard, auditStore *audit.Store) {
	editor := guard.Require(accounts.RoleEditor)

	r.Route("/api/standards", func(r chi.Router) {
		r.Get("/", handleListStandards(store))
		r.Get("/{id}", handleGetStandard(store))
		r.Get("/{id}/pgns", handleListPGNs(store))

		r.With(editor).Post("/", handleCreateStandard(store, auditStore))
		r.With(editor).Post("/import", handleImport(store, auditStore))
		r.With(editor).Delete("/{id}", handleDeleteStandard(store, auditStore))
		r.With(editor).Post("/{id}/pgns", handleCreatePGN(store, auditStore))
	})

	r.Route("/api/pgns", func(r chi.Router) {
		r.Get("/lookup", handleLookupPGN(store))
		r.Get("/{id}", handleGetPGN(store))
		r.Get("/{id}/spns", handleListSPNs(store))
		r.Get("/{id}/record", handlePGNRecord(store))

		r.With(editor).Put("/{id}", handleUpdatePGN(store, auditStore))
		r.With(editor).Delete("/{id}", handleDeletePGN(store, auditStore))
		r.With(editor).Post("/{id}/spns", handleCreateSPN(store, auditStore))
	})

	r.Route("/api/spns", func(r chi.Router) {
		r.Get("/", handleSearchSPNs(store))
		r.Get("/{id}", handleGetSPN(store))

		r.With(editor).Put("/{id}", handleUpdateSPN(store, auditStore))
		r.With(editor).Delete("/{id}", handleDeleteSPN(store, auditStore))
	})
}

// --- standards ---

func handleListStandards(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListStandards(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetStandard(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.GetStandard(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if st == nil {
			writeError(w, fmt.Errorf("standard: %w", ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleCreateStandard(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st Standard
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := store.CreateStandard(r.Context(), &st); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionStandardCreated, audit.ScopeStandard, st.ID, st.Code)
		writeJSON(w, http.StatusCreated, st)
	}
}

func handleImport(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		b, err := ParseBundle(data)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := store.ImportBundle(r.Context(), b)
		if err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionStandardImported, audit.ScopeStandard,
			res.Standard.ID, fmt.Sprintf("%s: %d PGNs, %d SPNs", res.Standard.Code, res.PGNs, res.SPNs))
		writeJSON(w, http.StatusOK, res)
	}
}

func handleDeleteStandard(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteStandard(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionStandardDeleted, audit.ScopeStandard, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- PGNs ---

func handleListPGNs(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListPGNs(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreatePGN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p PGN
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		p.ID = ""
		p.StandardID = chi.URLParam(r, "id")
		if err := store.SavePGN(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionPGNSaved, audit.ScopePGN, p.ID, "created "+p.PGNHex)
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleLookupPGN(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hex := r.URL.Query().Get("hex")
		if hex == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hex is required"})
			return
		}
		list, err := store.LookupPGN(r.Context(), hex)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetPGN(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPGN(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePGNRecord(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPGN(w, r, store)
		if !ok {
			return
		}
		name := p.Name
		if st, err := store.GetStandard(r.Context(), p.StandardID); err == nil && st != nil {
			name = st.Code + " " + p.Name
		}
		rec, err := AsRecord(name, p)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(rec.Raw())
	}
}

func handleUpdatePGN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p PGN
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		p.ID = chi.URLParam(r, "id")
		if err := store.SavePGN(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionPGNSaved, audit.ScopePGN, p.ID, "updated "+p.PGNHex)
		handleGetPGN(store)(w, r)
	}
}

func handleDeletePGN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeletePGN(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionPGNDeleted, audit.ScopePGN, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- SPNs ---

func handleListSPNs(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListSPNs(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreateSPN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sp SPN
		if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		sp.ID = ""
		sp.PGNID = chi.URLParam(r, "id")
		if err := store.SaveSPN(r.Context(), &sp); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionSPNSaved, audit.ScopeSPN, sp.ID,
			"created SPN "+strconv.FormatInt(sp.SPN, 10))
		writeJSON(w, http.StatusCreated, sp)
	}
}

func handleSearchSPNs(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := store.SearchSPNs(r.Context(), q, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetSPN(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sp, err := store.GetSPN(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if sp == nil {
			writeError(w, fmt.Errorf("spn: %w", ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, sp)
	}
}

func handleUpdateSPN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sp SPN
		if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		sp.ID = chi.URLParam(r, "id")
		if err := store.SaveSPN(r.Context(), &sp); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionSPNSaved, audit.ScopeSPN, sp.ID,
			"updated SPN "+strconv.FormatInt(sp.SPN, 10))
		handleGetSPN(store)(w, r)
	}
}

func handleDeleteSPN(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteSPN(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionSPNDeleted, audit.ScopeSPN, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadPGN(w http.ResponseWriter, r *http.Request, store *Store) (*PGN, bool) {
	p, err := store.GetPGN(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if p == nil {
		writeError(w, fmt.Errorf("pgn: %w", ErrNotFound))
		return nil, false
	}
	return p, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
