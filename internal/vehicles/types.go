package vehicles

import (
	"time"

	"github.com/voltline/j1939-console/internal/j1939"
)

// Vehicle is the stored summary of an uploaded record. The payload itself
// is kept raw and normalized on every read.
type Vehicle struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Filename    string      `json:"filename,omitempty"`
	Shape       j1939.Shape `json:"shape"`
	PGNCount    int         `json:"pgn_count"`
	SPNCount    int         `json:"spn_count"`
	UploadedBy  string      `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Detail is a vehicle with its freshly normalized PGN list.
type Detail struct {
	Vehicle    Vehicle      `json:"vehicle"`
	Normalized j1939.Result `json:"normalized"`
}

// PGNDetail is one canonical PGN with its display rows. Index is the PGN's
// position in the normalized list.
type PGNDetail struct {
	VehicleID string             `json:"vehicle_id"`
	Index     int                `json:"index"`
	PGN       j1939.CanonicalPGN `json:"pgn"`
	Rows      []j1939.SPNRow     `json:"rows"`
}

// Summarize derives the stored summary of rec. filename is the upload's
// name and only names the vehicle when the record itself does not.
func Summarize(rec *j1939.VehicleRecord, filename string) Vehicle {
	res := j1939.Normalize(rec)
	name := j1939.DisplayName(rec)
	if name == j1939.UnknownVehicleName && filename != "" {
		name = j1939.FirstNonEmpty(j1939.FileStem(j1939.Constant(filename)), j1939.Constant(name))
	}
	return Vehicle{
		DisplayName: name,
		Filename:    filename,
		Shape:       res.Shape,
		PGNCount:    res.PGNCount,
		SPNCount:    res.SPNCount,
	}
}
