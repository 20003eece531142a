package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/voltline/j1939-console/internal/db"
	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

func setupServer(t *testing.T) (*Server, *vehicles.Store, *reference.Store, *metrics.Metrics) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	vs := vehicles.NewStore(database)
	rs := reference.NewStore(database)
	m := metrics.New()
	return NewServer(vs, rs, m), vs, rs, m
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String(), result.IsError
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"normalize", normalizeRecordTool, "normalize_vehicle_record"},
		{"list", listVehiclesTool, "list_vehicles"},
		{"get", getVehicleTool, "get_vehicle"},
		{"lookup", lookupPGNTool, "lookup_pgn"},
		{"search", searchSPNsTool, "search_spns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv, vs, rs, _ := setupServer(t)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.vehicles != vs || srv.reference != rs {
		t.Error("stores not set correctly")
	}
}

func TestHandleNormalizeRecord(t *testing.T) {
	srv, _, _, m := setupServer(t)

	t.Run("flat record", func(t *testing.T) {
		text, isErr := call(t, srv.handleNormalizeRecord, map[string]any{
			"record": `{"name": "Bus 12", "spns": [
				{"pgn_hex": "A", "name": "x", "start_bit": "12", "bit_width": "8"},
				{"pgn_hex": "A", "name": "y"},
				{"pgn_hex": "B"}
			]}`,
		})
		if isErr {
			t.Fatalf("unexpected tool error: %s", text)
		}
		for _, want := range []string{"Vehicle: Bus 12", "Encoding: flat, 2 PGN(s), 3 SPN(s)", "- x  bits 12-20", "--- PGN B (11) PGN_B ---"} {
			if !strings.Contains(text, want) {
				t.Errorf("output missing %q:\n%s", want, text)
			}
		}
		if got := testutil.ToFloat64(m.Normalizations.WithLabelValues("flat")); got != 1 {
			t.Errorf("flat normalizations = %v", got)
		}
	})

	t.Run("empty PGN", func(t *testing.T) {
		text, _ := call(t, srv.handleNormalizeRecord, map[string]any{
			"record": `{"pgnSpnMapping": {"0x1": {"spns": []}}}`,
		})
		if !strings.Contains(text, "No SPN Data Available") || !strings.Contains(text, "Vehicle: Unknown Vehicle") {
			t.Errorf("unexpected output:\n%s", text)
		}
	})

	t.Run("not an object", func(t *testing.T) {
		if _, isErr := call(t, srv.handleNormalizeRecord, map[string]any{"record": `[1, 2]`}); !isErr {
			t.Error("expected error for array input")
		}
	})

	t.Run("missing record", func(t *testing.T) {
		if _, isErr := call(t, srv.handleNormalizeRecord, map[string]any{}); !isErr {
			t.Error("expected error for missing record")
		}
	})
}

func TestHandleVehicles(t *testing.T) {
	srv, vs, _, _ := setupServer(t)

	text, isErr := call(t, srv.handleListVehicles, map[string]any{})
	if isErr || !strings.Contains(text, "No vehicles uploaded yet") {
		t.Errorf("empty list = %q", text)
	}

	rec, err := j1939.ParseRecord([]byte(`{"pgns": [
		{"pgn_hex": "F004", "name": "EEC1", "spns": [{"name": "Engine Speed", "start_bit": 24, "bit_width": 16}]},
		{"pgn_hex": "FEEE", "name": "ET1", "spns": [{"name": "Coolant", "start_bit": 0, "bit_width": 8}]}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	v, err := vs.Create(context.Background(), rec, "excavator-22.json", "test")
	if err != nil {
		t.Fatal(err)
	}

	text, _ = call(t, srv.handleListVehicles, map[string]any{"limit": 5})
	if !strings.Contains(text, v.ID) || !strings.Contains(text, "excavator-22 (array, 2 PGNs, 2 SPNs)") {
		t.Errorf("list = %q", text)
	}

	text, isErr = call(t, srv.handleGetVehicle, map[string]any{"id": v.ID, "pgn": "0xfeee"})
	if isErr {
		t.Fatalf("get_vehicle error: %s", text)
	}
	if !strings.Contains(text, "Coolant") || strings.Contains(text, "Engine Speed") {
		t.Errorf("pgn filter not applied:\n%s", text)
	}

	if _, isErr := call(t, srv.handleGetVehicle, map[string]any{"id": v.ID, "pgn": "ABCD"}); !isErr {
		t.Error("expected error for unknown PGN")
	}
	if _, isErr := call(t, srv.handleGetVehicle, map[string]any{"id": "missing"}); !isErr {
		t.Error("expected error for unknown vehicle")
	}
}

func TestHandleVehicleIndex(t *testing.T) {
	srv, vs, _, _ := setupServer(t)

	rec, err := j1939.ParseRecord([]byte(`{"pgns": [
		{"name": "EEC1", "spns": [{"name": "engine_speed"}]},
		{"name": "CCVS", "spns": [{"name": "wheel_speed"}]}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	v, err := vs.Create(context.Background(), rec, "loader.json", "test")
	if err != nil {
		t.Fatal(err)
	}

	text, isErr := call(t, srv.handleGetVehicle, map[string]any{"id": v.ID, "index": 1})
	if isErr {
		t.Fatalf("get_vehicle error: %s", text)
	}
	if !strings.Contains(text, "CCVS") || !strings.Contains(text, "wheel_speed") || strings.Contains(text, "engine_speed") {
		t.Errorf("index filter not applied:\n%s", text)
	}

	if _, isErr := call(t, srv.handleGetVehicle, map[string]any{"id": v.ID, "index": 2}); !isErr {
		t.Error("expected error for out of range index")
	}
}

func TestHandleReferenceTools(t *testing.T) {
	srv, _, rs, _ := setupServer(t)
	ctx := context.Background()

	text, _ := call(t, srv.handleLookupPGN, map[string]any{"hex": "FEEE"})
	if !strings.Contains(text, "No reference PGN FEEE") {
		t.Errorf("empty lookup = %q", text)
	}

	_, err := rs.ImportBundle(ctx, &reference.Bundle{
		Standard: reference.BundleStandard{Code: "J1939-71"},
		PGNs: []reference.BundlePGN{{
			PGN: reference.PGN{PGNHex: "FEEE", Name: "Engine Temperature 1", Acronym: "ET1"},
			SPNs: []reference.SPN{
				{SPN: 110, Name: "Engine Coolant Temperature", BitWidth: 8, Offset: -40, Unit: "C"},
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	text, isErr := call(t, srv.handleLookupPGN, map[string]any{"hex": "0xfeee"})
	if isErr {
		t.Fatalf("lookup error: %s", text)
	}
	for _, want := range []string{"--- J1939-71 PGN FEEE (65262) ---", "Acronym: ET1", "- SPN 110 Engine Coolant Temperature  bits 0-8  x1 -40 C"} {
		if !strings.Contains(text, want) {
			t.Errorf("lookup missing %q:\n%s", want, text)
		}
	}

	text, _ = call(t, srv.handleSearchSPNs, map[string]any{"query": "coolant"})
	if !strings.Contains(text, "Found 1 SPN(s)") {
		t.Errorf("search = %q", text)
	}
	text, _ = call(t, srv.handleSearchSPNs, map[string]any{"query": "oil pressure"})
	if text != "No SPNs found." {
		t.Errorf("empty search = %q", text)
	}
	if _, isErr := call(t, srv.handleSearchSPNs, map[string]any{}); !isErr {
		t.Error("expected error for missing query")
	}
}

func TestToolsWithoutStores(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	if _, isErr := call(t, srv.handleGetVehicle, map[string]any{"id": "x"}); !isErr {
		t.Error("expected error without vehicle store")
	}
	if _, isErr := call(t, srv.handleLookupPGN, map[string]any{"hex": "F004"}); !isErr {
		t.Error("expected error without reference store")
	}
	if text, isErr := call(t, srv.handleNormalizeRecord, map[string]any{"record": `{}`}); isErr || !strings.Contains(text, "0 PGN(s)") {
		t.Errorf("normalize without stores = %q", text)
	}
}
