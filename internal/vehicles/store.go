package vehicles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voltline/j1939-console/internal/db"
	"github.com/voltline/j1939-console/internal/j1939"
)

// ErrNotFound is returned by mutations on a missing vehicle.
var ErrNotFound = errors.New("vehicle not found")

// Store persists uploaded vehicle records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create stores rec under a new ID and returns its summary.
func (s *Store) Create(ctx context.Context, rec *j1939.VehicleRecord, filename, uploadedBy string) (*Vehicle, error) {
	v := Summarize(rec, filename)
	v.ID = uuid.New().String()
	v.UploadedBy = uploadedBy

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, display_name, filename, shape, pgn_count, spn_count, payload, uploaded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DisplayName, v.Filename, v.Shape.String(), v.PGNCount, v.SPNCount, string(rec.Raw()), v.UploadedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting vehicle: %w", err)
	}
	return s.Get(ctx, v.ID)
}

const vehicleColumns = "id, display_name, filename, shape, pgn_count, spn_count, uploaded_by, created_at"

// Get returns a vehicle summary, or nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Vehicle, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting vehicle: %w", err)
	}
	return v, nil
}

// Load returns a vehicle with its parsed record, or nil, nil, nil when
// absent.
func (s *Store) Load(ctx context.Context, id string) (*Vehicle, *j1939.VehicleRecord, error) {
	v, err := s.Get(ctx, id)
	if err != nil || v == nil {
		return nil, nil, err
	}
	payload, err := s.Payload(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rec, err := j1939.ParseRecord(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing stored payload of %s: %w", id, err)
	}
	return v, rec, nil
}

// Payload returns the stored JSON exactly as uploaded, or nil when absent.
func (s *Store) Payload(ctx context.Context, id string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM vehicles WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vehicle payload: %w", err)
	}
	return []byte(payload), nil
}

// List returns summaries newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Vehicle, error) {
	query := "SELECT " + vehicleColumns + " FROM vehicles ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, max(offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}
	defer rows.Close()

	list := []Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Delete removes a vehicle.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(sc scanner) (*Vehicle, error) {
	var (
		v         Vehicle
		shape, ts string
	)
	if err := sc.Scan(&v.ID, &v.DisplayName, &v.Filename, &shape, &v.PGNCount, &v.SPNCount, &v.UploadedBy, &ts); err != nil {
		return nil, err
	}
	v.Shape = j1939.ParseShape(shape)
	v.CreatedAt = db.ParseTime(ts)
	return &v, nil
}
