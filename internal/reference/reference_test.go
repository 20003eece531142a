package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
	"github.com/voltline/j1939-console/internal/db"
	"github.com/voltline/j1939-console/internal/j1939"
)

func setupStore(t *testing.T) (*Store, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), database
}

func loadSample(t *testing.T) *Bundle {
	t.Helper()
	data, err := os.ReadFile("testdata/j1939-71-sample.json")
	if err != nil {
		t.Fatal(err)
	}
	if !IsBundle(data) {
		t.Fatal("sample not recognised as a bundle")
	}
	b, err := ParseBundle(data)
	if err != nil {
		t.Fatalf("ParseBundle: %v", err)
	}
	return b
}

func TestPGNNormalize(t *testing.T) {
	tests := []struct {
		in      PGN
		wantHex string
		wantDec int64
	}{
		{PGN{PGNHex: "0xf004"}, "F004", 61444},
		{PGN{PGNDec: 65262}, "FEEE", 65262},
		{PGN{PGNHex: "0"}, "0", 0},
	}
	for _, tt := range tests {
		p := tt.in
		p.Normalize()
		if p.PGNHex != tt.wantHex || p.PGNDec != tt.wantDec || p.DataLength != 8 {
			t.Errorf("Normalize(%+v) = %s/%d/%d", tt.in, p.PGNHex, p.PGNDec, p.DataLength)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("Validate(%+v): %v", p, err)
		}
	}

	bad := []PGN{
		{},
		{PGNDec: MaxPGN + 1},
		{PGNHex: "F004", PGNDec: 1},
	}
	for _, p := range bad {
		p.Normalize()
		if err := p.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalid", p, err)
		}
	}
}

func TestImportBundle(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	res, err := store.ImportBundle(ctx, loadSample(t))
	if err != nil {
		t.Fatalf("ImportBundle: %v", err)
	}
	if res.Replaced || res.PGNs != 2 || res.SPNs != 3 || res.Standard.PGNCount != 2 {
		t.Errorf("result = %+v", res)
	}

	pgns, err := store.ListPGNs(ctx, res.Standard.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pgns) != 2 || pgns[0].PGNHex != "F004" || pgns[1].PGNHex != "FEEE" {
		t.Fatalf("pgns = %+v", pgns)
	}

	eec1, err := store.GetPGN(ctx, pgns[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(eec1.SPNs) != 2 || eec1.SPNs[0].SPN != 512 {
		t.Errorf("SPNs not in bit order: %+v", eec1.SPNs)
	}
	speed := eec1.SPNs[1]
	if speed.Factor != 0.125 || speed.Max == nil || *speed.Max != 8031.875 {
		t.Errorf("engine speed = %+v", speed)
	}

	// Re-importing replaces the PGNs in place.
	again, err := store.ImportBundle(ctx, loadSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if !again.Replaced || again.Standard.ID != res.Standard.ID || again.Standard.PGNCount != 2 {
		t.Errorf("re-import = %+v", again)
	}
	if hits, _ := store.SearchSPNs(ctx, "Engine Speed", 0); len(hits) != 1 {
		t.Errorf("duplicate SPNs after re-import: %d", len(hits))
	}
}

func TestImportBundleRollsBack(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	b := &Bundle{
		Standard: BundleStandard{Code: "J1939-73"},
		PGNs: []BundlePGN{
			{PGN: PGN{PGNHex: "FECA", Name: "DM1"}},
			{PGN: PGN{PGNHex: "FECA", Name: "duplicate"}},
		},
	}
	if _, err := store.ImportBundle(ctx, b); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if st, _ := store.GetStandardByCode(ctx, "J1939-73"); st != nil {
		t.Error("failed import left a standard behind")
	}
}

func TestLookupAndSearch(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	if _, err := store.ImportBundle(ctx, loadSample(t)); err != nil {
		t.Fatal(err)
	}

	for _, hex := range []string{"F004", "0xf004", " f004 "} {
		hits, err := store.LookupPGN(ctx, hex)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].Acronym != "EEC1" {
			t.Errorf("LookupPGN(%q) = %+v", hex, hits)
		}
	}
	if hits, _ := store.LookupPGN(ctx, "zz"); len(hits) != 0 {
		t.Errorf("invalid hex matched %d", len(hits))
	}

	if hits, _ := store.SearchSPNs(ctx, "110", 0); len(hits) != 1 || hits[0].Name != "Engine Coolant Temperature" {
		t.Errorf("numeric search = %+v", hits)
	}
	if hits, _ := store.SearchSPNs(ctx, "engine", 0); len(hits) != 3 {
		t.Errorf("name search = %d hits", len(hits))
	}
	if hits, _ := store.SearchSPNs(ctx, "engine", 1); len(hits) != 1 {
		t.Errorf("limited search = %d hits", len(hits))
	}
}

func TestAsRecordRoundTripsThroughNormalizer(t *testing.T) {
	p := &PGN{
		PGNHex: "F004",
		PGNDec: 61444,
		Name:   "Electronic Engine Controller 1",
		SPNs: []SPN{
			{SPN: 190, Name: "Engine Speed", StartBit: 24, BitWidth: 16, Factor: 0.125},
		},
	}

	res, err := NormalizedPGN("J1939-71 EEC1", p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Shape != j1939.ShapeArray || res.PGNCount != 1 || res.SPNCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	got := res.PGNList[0]
	if got.PGNHex != "F004" || got.PGNDec != 61444 || got.Name != p.Name {
		t.Errorf("pgn = %+v", got)
	}
	if br := j1939.BitRange(got.SPNs[0]); br != "24-40" {
		t.Errorf("bit range = %s", br)
	}

	rec, _ := AsRecord("J1939-71 EEC1", p)
	if name := j1939.DisplayName(rec); name != "J1939-71 EEC1" {
		t.Errorf("display name = %q", name)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store, database := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store, accounts.NoAuth(), audit.NewStore(database))
	return r, store
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHTTPCRUD(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/standards", Standard{Code: "J1939-21", Title: "Data Link Layer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create standard = %d: %s", w.Code, w.Body)
	}
	var st Standard
	json.NewDecoder(w.Body).Decode(&st)

	if w := do(t, r, http.MethodPost, "/api/standards", Standard{Code: "J1939-21"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate standard = %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/standards/"+st.ID+"/pgns", PGN{PGNHex: "EA00", Name: "Request"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create pgn = %d: %s", w.Code, w.Body)
	}
	var p PGN
	json.NewDecoder(w.Body).Decode(&p)
	if p.PGNDec != 59904 {
		t.Errorf("pgn_dec = %d", p.PGNDec)
	}

	if w := do(t, r, http.MethodPost, "/api/standards/missing/pgns", PGN{PGNHex: "EA00"}); w.Code != http.StatusNotFound {
		t.Errorf("pgn under missing standard = %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/pgns/"+p.ID+"/spns", SPN{SPN: 2540, Name: "Parameter Group Number", StartBit: 0, BitWidth: 24})
	if w.Code != http.StatusCreated {
		t.Fatalf("create spn = %d: %s", w.Code, w.Body)
	}
	var sp SPN
	json.NewDecoder(w.Body).Decode(&sp)
	if sp.Factor != 1 {
		t.Errorf("default factor = %v", sp.Factor)
	}

	if w := do(t, r, http.MethodPost, "/api/pgns/"+p.ID+"/spns", SPN{SPN: 1}); w.Code != http.StatusBadRequest {
		t.Errorf("nameless spn = %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/spns/"+sp.ID, SPN{SPN: 2540, Name: "Requested PGN", BitWidth: 24})
	if w.Code != http.StatusOK {
		t.Fatalf("update spn = %d: %s", w.Code, w.Body)
	}
	json.NewDecoder(w.Body).Decode(&sp)
	if sp.Name != "Requested PGN" {
		t.Errorf("updated spn = %+v", sp)
	}

	w = do(t, r, http.MethodGet, "/api/pgns/"+p.ID, nil)
	var full PGN
	json.NewDecoder(w.Body).Decode(&full)
	if len(full.SPNs) != 1 {
		t.Errorf("pgn spns = %d", len(full.SPNs))
	}

	w = do(t, r, http.MethodGet, "/api/pgns/"+p.ID+"/record", nil)
	rec, err := j1939.ParseRecord(w.Body.Bytes())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if j1939.DisplayName(rec) != "J1939-21 Request" {
		t.Errorf("record name = %q", j1939.DisplayName(rec))
	}

	if w := do(t, r, http.MethodDelete, "/api/standards/"+st.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete standard = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/spns/"+sp.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("spn survived cascade = %d", w.Code)
	}
}

func TestHTTPImportAndLookup(t *testing.T) {
	r, _ := setupRouter(t)
	data, err := os.ReadFile("testdata/j1939-71-sample.json")
	if err != nil {
		t.Fatal(err)
	}

	w := do(t, r, http.MethodPost, "/api/standards/import", data)
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodGet, "/api/pgns/lookup?hex=0xFEEE", nil)
	var hits []PGN
	json.NewDecoder(w.Body).Decode(&hits)
	if len(hits) != 1 || hits[0].Acronym != "ET1" {
		t.Errorf("lookup = %+v", hits)
	}

	if w := do(t, r, http.MethodGet, "/api/pgns/lookup", nil); w.Code != http.StatusBadRequest {
		t.Errorf("lookup without hex = %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/spns?q=coolant", nil)
	var spns []SPN
	json.NewDecoder(w.Body).Decode(&spns)
	if len(spns) != 1 || spns[0].SPN != 110 {
		t.Errorf("search = %+v", spns)
	}

	if w := do(t, r, http.MethodPost, "/api/standards/import", []byte(`{"standard": {}}`)); w.Code != http.StatusBadRequest {
		t.Errorf("import without code = %d", w.Code)
	}
}

func TestHTTPWritesNeedEditor(t *testing.T) {
	store, database := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store, accounts.NewGuard(accounts.NewStore(database)), nil)

	if w := do(t, r, http.MethodPost, "/api/standards", Standard{Code: "X"}); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/standards", nil); w.Code != http.StatusOK {
		t.Errorf("anonymous list = %d", w.Code)
	}
}
