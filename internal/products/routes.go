package products

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
)

// RegisterRoutes mounts the catalogue endpoints. Reads are public; writes
// need the editor role.
func RegisterRoutes(r chi.Router, store *Store, guard *accounts.Guard, auditStore *audit.Store) {
	editor := guard.Require(accounts.RoleEditor)

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/{id}", handleGet(store))
		r.Get("/{id}/firmware", handleListFirmware(store))
		r.Get("/{id}/firmware/latest", handleLatest(store))

		r.With(editor).Post("/", handleCreate(store, auditStore))
		r.With(editor).Put("/{id}", handleUpdate(store, auditStore))
		r.With(editor).Delete("/{id}", handleDelete(store, auditStore))
		r.With(editor).Post("/{id}/firmware", handleRelease(store, auditStore))
	})

	r.Route("/api/firmware", func(r chi.Router) {
		r.Get("/{id}", handleGetFirmware(store))
		r.With(editor).Delete("/{id}", handleDeleteFirmware(store, auditStore))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if p == nil {
			writeError(w, fmt.Errorf("product: %w", ErrNotFound))
			return
		}
		if err := p.Render(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCreate(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Product
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := store.Create(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionProductCreated, audit.ScopeProduct, p.ID, p.SKU)
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleUpdate(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Product
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		p.ID = chi.URLParam(r, "id")
		if err := store.Update(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionProductUpdated, audit.ScopeProduct, p.ID, p.SKU)
		handleGet(store)(w, r)
	}
}

func handleDelete(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionProductDeleted, audit.ScopeProduct, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListFirmware(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListFirmware(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleLatest(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := store.Latest(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if f == nil {
			writeError(w, fmt.Errorf("firmware: %w", ErrNotFound))
			return
		}
		if err := f.Render(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func handleRelease(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f Firmware
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		f.ProductID = chi.URLParam(r, "id")
		if err := store.Release(r.Context(), &f); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionFirmwareReleased, audit.ScopeFirmware, f.ID,
			f.ProductID+" "+f.Version)
		writeJSON(w, http.StatusCreated, f)
	}
}

func handleGetFirmware(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := store.GetFirmware(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if f == nil {
			writeError(w, fmt.Errorf("firmware: %w", ErrNotFound))
			return
		}
		if err := f.Render(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func handleDeleteFirmware(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteFirmware(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionFirmwareDeleted, audit.ScopeFirmware, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
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
