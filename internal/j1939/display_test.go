package j1939

import "testing"

func TestBitRange(t *testing.T) {
	tests := []struct {
		name string
		spn  SPN
		want string
	}{
		{"string fields", SPN{"start_bit": "12", "bit_width": "8"}, "12-20"},
		{"numeric fields", SPN{"start_bit": float64(24), "bit_width": float64(16)}, "24-40"},
		{"non numeric start", SPN{"start_bit": "abc"}, "0-0"},
		{"both missing", SPN{}, "0-0"},
		{"width missing", SPN{"start_bit": 12}, "12-12"},
		{"padded strings", SPN{"start_bit": " 4 ", "bit_width": "4"}, "4-8"},
		{"object values", SPN{"start_bit": map[string]any{"x": 1}, "bit_width": []any{1}}, "0-0"},
		{"nan", SPN{"start_bit": "NaN", "bit_width": "8"}, "0-8"},
		{"nil spn", nil, "0-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BitRange(tt.spn); got != tt.want {
				t.Errorf("BitRange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"name": "Truck A", "vehicle_name": "B", "filename": "c.json"}`, "Truck A"},
		{`{"name": "", "vehicle_name": "Bus B"}`, "Bus B"},
		{`{"name": "  ", "filename": "uploads/fleet/tractor_07.json"}`, "tractor_07"},
		{`{"file_name": "C:\\logs\\excavator.dbc"}`, "excavator"},
		{`{"name": {"en": "nested"}}`, UnknownVehicleName},
		{`{}`, UnknownVehicleName},
	}
	for _, tt := range tests {
		if got := DisplayName(mustParse(t, tt.in)); got != tt.want {
			t.Errorf("DisplayName(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if DisplayName(nil) != UnknownVehicleName {
		t.Error("DisplayName(nil) should fall back")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	calls := 0
	counting := func(v string) Accessor {
		return func() string {
			calls++
			return v
		}
	}

	got := FirstNonEmpty(counting(""), nil, counting("second"), counting("third"))
	if got != "second" {
		t.Errorf("FirstNonEmpty = %q, want second", got)
	}
	if calls != 2 {
		t.Errorf("accessors after the first match should not run, calls = %d", calls)
	}
	if FirstNonEmpty() != "" {
		t.Error("empty chain should yield empty string")
	}
}

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		spn  SPN
		want string
	}{
		{SPN{"value": 12.5, "physical_value": 99}, "12.5"},
		{SPN{"value": 0}, "0"},
		{SPN{"physical_value": "1450 rpm"}, "1450 rpm"},
		{SPN{}, EmptyValue},
	}
	for _, tt := range tests {
		if got := DisplayValue(tt.spn); got != tt.want {
			t.Errorf("DisplayValue(%v) = %q, want %q", tt.spn, got, tt.want)
		}
	}
}

func TestRowsDoNotMutate(t *testing.T) {
	res := Normalize(mustParse(t, `{"pgns": [{"pgn_hex": "F004", "spns": [
		{"name": "Engine Speed", "unit": "rpm", "start_bit": 24, "bit_width": 16, "factor": 0.125, "offset": 0, "value": 1450},
		{}
	]}]}`))
	pgn := res.PGNList[0]

	rows := Rows(pgn)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	r := rows[0]
	if r.Name != "Engine Speed" || r.Unit != "rpm" || r.BitRange != "24-40" || r.Factor != "0.125" || r.Offset != "0" || r.Value != "1450" {
		t.Errorf("row = %+v", r)
	}
	if rows[1].Name != EmptyValue || rows[1].BitRange != "0-0" {
		t.Errorf("empty SPN row = %+v", rows[1])
	}
	if _, ok := pgn.SPNs[1]["bit_range"]; ok {
		t.Error("Rows must not write derived fields into the SPN")
	}
}
