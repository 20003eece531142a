package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:      "test-1",
		ActorID: "alice",
		Action:  ActionVehicleUploaded,
		Scope:   ScopeVehicle,
		ScopeID: "veh-1",
		Summary: "Uploaded excavator.json",
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("entry not found")
	}
	if got.ActorID != "alice" || got.Action != ActionVehicleUploaded || got.Scope != ScopeVehicle {
		t.Errorf("got %+v", got)
	}
	if got.ScopeID != "veh-1" || got.Summary != "Uploaded excavator.json" {
		t.Errorf("got %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not populated")
	}
}

func TestLogDefaults(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{Action: ActionStandardImported, Scope: ScopeStandard}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{ActorID: "system"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID, got empty string")
	}
}

func TestRecordNilStore(t *testing.T) {
	var store *Store
	store.Record(context.Background(), "alice", ActionProductCreated, ScopeProduct, "p1", "noop")
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	store.Record(ctx, "alice", ActionProductCreated, ScopeProduct, "p1", "")
	store.Record(ctx, "bob", ActionProductDeleted, ScopeProduct, "p1", "")
	store.Record(ctx, "alice", ActionUserRoleChanged, ScopeUser, "u1", "")

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 3},
		{"actor", QueryFilter{ActorID: "alice"}, 2},
		{"scope", QueryFilter{Scope: ScopeProduct}, 2},
		{"scope id", QueryFilter{ScopeID: "u1"}, 1},
		{"action", QueryFilter{Action: ActionProductDeleted}, 1},
		{"limit", QueryFilter{Limit: 2}, 2},
		{"offset", QueryFilter{Limit: 2, Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestQueryTimeWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	store.Record(ctx, "alice", ActionVehicleDeleted, ScopeVehicle, "v1", "")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	entries, _ := store.Query(ctx, QueryFilter{Since: &past, Until: &future})
	if len(entries) != 1 {
		t.Errorf("window around now: got %d entries", len(entries))
	}
	entries, _ = store.Query(ctx, QueryFilter{Since: &future})
	if len(entries) != 0 {
		t.Errorf("window in the future: got %d entries", len(entries))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	got, err := store.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPQuery(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()
	store.Record(ctx, "alice", ActionFirmwareReleased, ScopeFirmware, "fw-1", "v1.2.0")
	store.Record(ctx, "bob", ActionFirmwareDeleted, ScopeFirmware, "fw-1", "")

	req := httptest.NewRequest(http.MethodGet, "/api/audit?actor=alice", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Summary != "v1.2.0" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHTTPQueryBadSince(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?since=yesterday", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)
	if err := store.Log(context.Background(), Entry{ID: "http-1", ActorID: "alice", Action: ActionSPNSaved, Scope: ScopeSPN}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" || got.Action != ActionSPNSaved {
		t.Errorf("got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing entry status = %d", rec.Code)
	}
}

func TestHTTPHistory(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()
	store.Record(ctx, "alice", ActionProductCreated, ScopeProduct, "p-1", "created")
	store.Record(ctx, "alice", ActionProductUpdated, ScopeProduct, "p-1", "renamed")
	store.Record(ctx, "alice", ActionProductCreated, ScopeProduct, "p-2", "other")

	req := httptest.NewRequest(http.MethodGet, "/api/audit/history/product/p-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	for _, e := range entries {
		if e.ScopeID != "p-1" {
			t.Errorf("unexpected entry %+v", e)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/audit/history/widget/p-1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown scope status = %d", rec.Code)
	}
}
