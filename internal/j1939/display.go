package j1939

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/spf13/cast"
)

// UnknownVehicleName is shown when a record carries no usable name.
const UnknownVehicleName = "Unknown Vehicle"

// EmptyValue is shown for SPN cells with no data.
const EmptyValue = "-"

// Accessor yields one candidate in a fallback chain.
type Accessor func() string

// Constant is an accessor that always yields s.
func Constant(s string) Accessor {
	return func() string { return s }
}

// FirstNonEmpty evaluates accessors in order and returns the first result
// that is not blank.
func FirstNonEmpty(accessors ...Accessor) string {
	for _, a := range accessors {
		if a == nil {
			continue
		}
		if v := a(); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FileStem wraps an accessor yielding a file path and returns its base name
// without extension.
func FileStem(a Accessor) Accessor {
	return func() string {
		name := strings.ReplaceAll(a(), "\\", "/")
		if strings.TrimSpace(name) == "" {
			return ""
		}
		base := path.Base(name)
		return strings.TrimSuffix(base, path.Ext(base))
	}
}

// DisplayName resolves the name a viewer shows for a record.
func DisplayName(r *VehicleRecord) string {
	if r == nil {
		return UnknownVehicleName
	}
	return FirstNonEmpty(
		r.Field("name"),
		r.Field("vehicle_name"),
		FileStem(r.Field("filename")),
		FileStem(r.Field("file_name")),
		Constant(UnknownVehicleName),
	)
}

// BitRange formats an SPN's bit span as "start-end". Missing or non-numeric
// start_bit or bit_width count as 0; nothing here can fail.
func BitRange(spn SPN) (out string) {
	defer func() {
		if recover() != nil {
			out = "0-0"
		}
	}()
	start := lenientInt(spn["start_bit"])
	width := lenientInt(spn["bit_width"])
	return fmt.Sprintf("%d-%d", start, start+width)
}

func lenientInt(v any) int64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

// DisplayValue returns the SPN's physical value for display.
func DisplayValue(spn SPN) string {
	return FirstNonEmpty(spn.Field("value"), spn.Field("physical_value"), Constant(EmptyValue))
}

// NoSPNData is shown in place of an empty SPN table.
const NoSPNData = "No SPN Data Available"

// SPNRow is one table row in the viewer.
type SPNRow struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Value       string `json:"value"`
	RawValue    string `json:"raw_value"`
	BitRange    string `json:"bit_range"`
	Factor      string `json:"factor"`
	Offset      string `json:"offset"`
}

// Rows derives display rows for every SPN of a PGN without touching it.
func Rows(p CanonicalPGN) []SPNRow {
	rows := make([]SPNRow, 0, len(p.SPNs))
	for _, spn := range p.SPNs {
		rows = append(rows, SPNRow{
			Name:        FirstNonEmpty(spn.Field("name"), Constant(EmptyValue)),
			Description: FirstNonEmpty(spn.Field("description"), Constant(EmptyValue)),
			Unit:        FirstNonEmpty(spn.Field("unit"), Constant(EmptyValue)),
			Value:       DisplayValue(spn),
			RawValue:    FirstNonEmpty(spn.Field("raw_value"), Constant(EmptyValue)),
			BitRange:    BitRange(spn),
			Factor:      FirstNonEmpty(spn.Field("factor"), Constant(EmptyValue)),
			Offset:      FirstNonEmpty(spn.Field("offset"), Constant(EmptyValue)),
		})
	}
	return rows
}
