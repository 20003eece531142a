package reference

import (
	"github.com/voltline/j1939-console/internal/j1939"
)

// AsRecord exports p as an array-shaped vehicle record so the PGN viewer
// can render reference definitions the same way as uploaded data. name
// becomes the record's display name.
func AsRecord(name string, p *PGN) (*j1939.VehicleRecord, error) {
	spns := make([]any, 0, len(p.SPNs))
	for _, sp := range p.SPNs {
		entry := map[string]any{
			"spn":         sp.SPN,
			"name":        sp.Name,
			"description": sp.Description,
			"unit":        sp.Unit,
			"start_bit":   sp.StartBit,
			"bit_width":   sp.BitWidth,
			"factor":      sp.Factor,
			"offset":      sp.Offset,
			"pgn_hex":     p.PGNHex,
		}
		if sp.Min != nil {
			entry["min"] = *sp.Min
		}
		if sp.Max != nil {
			entry["max"] = *sp.Max
		}
		spns = append(spns, entry)
	}

	return j1939.RecordFromMap(map[string]any{
		"name": name,
		"pgns": []any{
			map[string]any{
				"pgn_hex": p.PGNHex,
				"pgn_dec": p.PGNDec,
				"name":    p.Name,
				"acronym": p.Acronym,
				"spns":    spns,
			},
		},
	})
}

// NormalizedPGN renders a reference PGN through the vehicle normalizer.
func NormalizedPGN(name string, p *PGN) (j1939.Result, error) {
	rec, err := AsRecord(name, p)
	if err != nil {
		return j1939.Result{}, err
	}
	return j1939.Normalize(rec), nil
}
