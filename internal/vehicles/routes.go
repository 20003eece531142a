package vehicles

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/metrics"
)

// maxRecordBytes bounds uploaded and normalized request bodies.
const maxRecordBytes = 16 << 20

// RegisterRoutes mounts vehicle endpoints under /api/vehicles and the
// stateless normalizer at /api/normalize.
func RegisterRoutes(r chi.Router, store *Store, guard *accounts.Guard, auditStore *audit.Store, m *metrics.Metrics) {
	r.Post("/api/normalize", handleNormalize(m))

	r.Route("/api/vehicles", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(accounts.RoleViewer))
			r.Get("/", handleList(store))
			r.Get("/{id}", handleGet(store, m))
			r.Get("/{id}/raw", handleRaw(store))
			r.Get("/{id}/pgns/{hex}", handlePGN(store, m))
			r.Get("/{id}/tabs/{index}", handleTab(store, m))
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(accounts.RoleEditor))
			r.Post("/", handleUpload(store, auditStore, m))
			r.Delete("/{id}", handleDelete(store, auditStore))
		})
	})
}

type normalizeResponse struct {
	DisplayName string       `json:"display_name"`
	Normalized  j1939.Result `json:"normalized"`
}

func handleNormalize(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := readRecord(w, r)
		if !ok {
			return
		}
		res := j1939.Normalize(rec)
		m.ObserveNormalization(res.Shape.String(), res.SPNCount)
		writeJSON(w, http.StatusOK, normalizeResponse{
			DisplayName: j1939.DisplayName(rec),
			Normalized:  res,
		})
	}
}

func handleUpload(store *Store, auditStore *audit.Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := readRecord(w, r)
		if !ok {
			return
		}

		v, err := store.Create(r.Context(), rec, r.URL.Query().Get("filename"), accounts.ActorID(r.Context()))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		m.ObserveNormalization(v.Shape.String(), v.SPNCount)
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionVehicleUploaded, audit.ScopeVehicle, v.ID,
			v.DisplayName+" ("+v.Shape.String()+", "+strconv.Itoa(v.PGNCount)+" PGNs)")
		writeJSON(w, http.StatusCreated, v)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		list, err := store.List(r.Context(), limit, offset)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, rec, ok := load(w, r, store)
		if !ok {
			return
		}
		res := j1939.Normalize(rec)
		m.ObserveNormalization(res.Shape.String(), res.SPNCount)
		writeJSON(w, http.StatusOK, Detail{Vehicle: *v, Normalized: res})
	}
}

func handleRaw(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := store.Payload(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if payload == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}

// handlePGN addresses a PGN by hex. PGNs whose hex is empty or repeated
// are reachable through handleTab.
func handlePGN(store *Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, rec, ok := load(w, r, store)
		if !ok {
			return
		}
		res := j1939.Normalize(rec)
		m.ObserveNormalization(res.Shape.String(), res.SPNCount)
		writePGN(w, v.ID, res, res.Index(chi.URLParam(r, "hex")))
	}
}

// handleTab addresses a PGN by its position in the normalized list.
func handleTab(store *Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
			return
		}
		v, rec, ok := load(w, r, store)
		if !ok {
			return
		}
		res := j1939.Normalize(rec)
		m.ObserveNormalization(res.Shape.String(), res.SPNCount)
		writePGN(w, v.ID, res, i)
	}
}

func writePGN(w http.ResponseWriter, vehicleID string, res j1939.Result, i int) {
	pgn, found := res.At(i)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pgn not found"})
		return
	}
	writeJSON(w, http.StatusOK, PGNDetail{VehicleID: vehicleID, Index: i, PGN: pgn, Rows: j1939.Rows(pgn)})
}

func handleDelete(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		auditStore.Record(r.Context(), accounts.ActorID(r.Context()), audit.ActionVehicleDeleted, audit.ScopeVehicle, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

func load(w http.ResponseWriter, r *http.Request, store *Store) (*Vehicle, *j1939.VehicleRecord, bool) {
	v, rec, err := store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, nil, false
	}
	if v == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()})
		return nil, nil, false
	}
	return v, rec, true
}

func readRecord(w http.ResponseWriter, r *http.Request) (*j1939.VehicleRecord, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return nil, false
	}
	rec, err := j1939.ParseRecord(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
