package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/voltline/j1939-console/internal/db"
)

// Store provides CRUD over standards, PGNs and SPNs.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// execer is satisfied by both *db.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// --- standards ---

// CreateStandard inserts st and sets its ID.
func (s *Store) CreateStandard(ctx context.Context, st *Standard) error {
	return insertStandard(ctx, s.db, st)
}

func insertStandard(ctx context.Context, ex execer, st *Standard) error {
	st.Code = strings.TrimSpace(st.Code)
	if st.Code == "" {
		return fmt.Errorf("%w: standard code is required", ErrInvalid)
	}
	st.ID = uuid.New().String()
	_, err := ex.ExecContext(ctx,
		"INSERT INTO standards (id, code, title, revision) VALUES (?, ?, ?, ?)",
		st.ID, st.Code, st.Title, st.Revision)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("standard %s: %w", st.Code, ErrDuplicate)
		}
		return fmt.Errorf("inserting standard: %w", err)
	}
	return nil
}

const standardQuery = `
	SELECT s.id, s.code, s.title, s.revision, s.created_at,
	       (SELECT COUNT(*) FROM pgns p WHERE p.standard_id = s.id)
	FROM standards s`

// GetStandard returns a standard, or nil, nil when absent.
func (s *Store) GetStandard(ctx context.Context, id string) (*Standard, error) {
	row := s.db.QueryRowContext(ctx, standardQuery+" WHERE s.id = ?", id)
	st, err := scanStandard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting standard: %w", err)
	}
	return st, nil
}

// GetStandardByCode returns a standard by its code, or nil, nil.
func (s *Store) GetStandardByCode(ctx context.Context, code string) (*Standard, error) {
	row := s.db.QueryRowContext(ctx, standardQuery+" WHERE s.code = ?", strings.TrimSpace(code))
	st, err := scanStandard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting standard: %w", err)
	}
	return st, nil
}

// ListStandards returns all standards ordered by code.
func (s *Store) ListStandards(ctx context.Context) ([]Standard, error) {
	rows, err := s.db.QueryContext(ctx, standardQuery+" ORDER BY s.code")
	if err != nil {
		return nil, fmt.Errorf("listing standards: %w", err)
	}
	defer rows.Close()

	list := []Standard{}
	for rows.Next() {
		st, err := scanStandard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning standard: %w", err)
		}
		list = append(list, *st)
	}
	return list, rows.Err()
}

// DeleteStandard removes a standard with all its PGNs and SPNs.
func (s *Store) DeleteStandard(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "standards", id)
}

// --- PGNs ---

// SavePGN inserts p when it has no ID, otherwise updates it.
func (s *Store) SavePGN(ctx context.Context, p *PGN) error {
	return savePGN(ctx, s.db, p)
}

func savePGN(ctx context.Context, ex execer, p *PGN) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	var err error
	if p.ID == "" {
		p.ID = uuid.New().String()
		_, err = ex.ExecContext(ctx, `
			INSERT INTO pgns (id, standard_id, pgn_dec, pgn_hex, name, acronym, description, data_length, transmission_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.StandardID, p.PGNDec, p.PGNHex, p.Name, p.Acronym, p.Description, p.DataLength, p.TransmissionRate)
	} else {
		var res sql.Result
		res, err = ex.ExecContext(ctx, `
			UPDATE pgns SET pgn_dec = ?, pgn_hex = ?, name = ?, acronym = ?, description = ?,
				data_length = ?, transmission_rate = ?
			WHERE id = ?`,
			p.PGNDec, p.PGNHex, p.Name, p.Acronym, p.Description, p.DataLength, p.TransmissionRate, p.ID)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrNotFound
			}
		}
	}
	if err != nil {
		switch {
		case isUnique(err):
			return fmt.Errorf("pgn %s: %w", p.PGNHex, ErrDuplicate)
		case strings.Contains(err.Error(), "FOREIGN KEY"):
			return fmt.Errorf("standard %s: %w", p.StandardID, ErrNotFound)
		}
		return fmt.Errorf("saving pgn: %w", err)
	}
	return nil
}

const pgnColumns = "id, standard_id, pgn_dec, pgn_hex, name, acronym, description, data_length, transmission_rate"

// GetPGN returns a PGN with its SPNs, or nil, nil when absent.
func (s *Store) GetPGN(ctx context.Context, id string) (*PGN, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+pgnColumns+" FROM pgns WHERE id = ?", id)
	p, err := scanPGN(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pgn: %w", err)
	}
	if p.SPNs, err = s.ListSPNs(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPGNs returns the PGNs of a standard ordered by number, without SPNs.
func (s *Store) ListPGNs(ctx context.Context, standardID string) ([]PGN, error) {
	return s.queryPGNs(ctx, "SELECT "+pgnColumns+" FROM pgns WHERE standard_id = ? ORDER BY pgn_dec", standardID)
}

// LookupPGN returns every PGN, across standards, matching a hex
// identifier. The 0x prefix and case are ignored.
func (s *Store) LookupPGN(ctx context.Context, hex string) ([]PGN, error) {
	hex = strings.TrimSpace(hex)
	if len(hex) > 2 && strings.EqualFold(hex[:2], "0x") {
		hex = hex[2:]
	}
	dec, err := strconv.ParseInt(hex, 16, 64)
	if err != nil {
		return []PGN{}, nil
	}
	return s.queryPGNs(ctx, "SELECT "+pgnColumns+" FROM pgns WHERE pgn_dec = ? ORDER BY standard_id", dec)
}

func (s *Store) queryPGNs(ctx context.Context, query string, args ...any) ([]PGN, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pgns: %w", err)
	}
	defer rows.Close()

	list := []PGN{}
	for rows.Next() {
		p, err := scanPGN(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pgn: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// DeletePGN removes a PGN and its SPNs.
func (s *Store) DeletePGN(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "pgns", id)
}

// --- SPNs ---

// SaveSPN inserts sp when it has no ID, otherwise updates it. A zero
// factor is stored as 1.
func (s *Store) SaveSPN(ctx context.Context, sp *SPN) error {
	return saveSPN(ctx, s.db, sp)
}

func saveSPN(ctx context.Context, ex execer, sp *SPN) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	if sp.Factor == 0 {
		sp.Factor = 1
	}

	var err error
	if sp.ID == "" {
		sp.ID = uuid.New().String()
		_, err = ex.ExecContext(ctx, `
			INSERT INTO spns (id, pgn_id, spn, name, description, unit, start_bit, bit_width, factor, offset_value, min_value, max_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sp.ID, sp.PGNID, sp.SPN, sp.Name, sp.Description, sp.Unit, sp.StartBit, sp.BitWidth,
			sp.Factor, sp.Offset, nullFloat(sp.Min), nullFloat(sp.Max))
	} else {
		var res sql.Result
		res, err = ex.ExecContext(ctx, `
			UPDATE spns SET spn = ?, name = ?, description = ?, unit = ?, start_bit = ?, bit_width = ?,
				factor = ?, offset_value = ?, min_value = ?, max_value = ?
			WHERE id = ?`,
			sp.SPN, sp.Name, sp.Description, sp.Unit, sp.StartBit, sp.BitWidth,
			sp.Factor, sp.Offset, nullFloat(sp.Min), nullFloat(sp.Max), sp.ID)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrNotFound
			}
		}
	}
	if err != nil {
		switch {
		case isUnique(err):
			return fmt.Errorf("spn %d: %w", sp.SPN, ErrDuplicate)
		case strings.Contains(err.Error(), "FOREIGN KEY"):
			return fmt.Errorf("pgn %s: %w", sp.PGNID, ErrNotFound)
		}
		return fmt.Errorf("saving spn: %w", err)
	}
	return nil
}

const spnColumns = "id, pgn_id, spn, name, description, unit, start_bit, bit_width, factor, offset_value, min_value, max_value"

// GetSPN returns an SPN, or nil, nil when absent.
func (s *Store) GetSPN(ctx context.Context, id string) (*SPN, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+spnColumns+" FROM spns WHERE id = ?", id)
	sp, err := scanSPN(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting spn: %w", err)
	}
	return sp, nil
}

// ListSPNs returns the SPNs of a PGN in bit order.
func (s *Store) ListSPNs(ctx context.Context, pgnID string) ([]SPN, error) {
	return s.querySPNs(ctx, "SELECT "+spnColumns+" FROM spns WHERE pgn_id = ? ORDER BY start_bit, spn", pgnID)
}

// SearchSPNs matches q against SPN names and descriptions, or the SPN
// number when q is numeric.
func (s *Store) SearchSPNs(ctx context.Context, q string, limit int) ([]SPN, error) {
	if limit <= 0 {
		limit = 50
	}
	q = strings.TrimSpace(q)
	if n, err := strconv.ParseInt(q, 10, 64); err == nil {
		return s.querySPNs(ctx, "SELECT "+spnColumns+" FROM spns WHERE spn = ? ORDER BY name LIMIT ?", n, limit)
	}
	pattern := "%" + q + "%"
	return s.querySPNs(ctx,
		"SELECT "+spnColumns+" FROM spns WHERE name LIKE ? OR description LIKE ? ORDER BY name LIMIT ?",
		pattern, pattern, limit)
}

func (s *Store) querySPNs(ctx context.Context, query string, args ...any) ([]SPN, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying spns: %w", err)
	}
	defer rows.Close()

	list := []SPN{}
	for rows.Next() {
		sp, err := scanSPN(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning spn: %w", err)
		}
		list = append(list, *sp)
	}
	return list, rows.Err()
}

// DeleteSPN removes an SPN.
func (s *Store) DeleteSPN(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "spns", id)
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanStandard(sc scanner) (*Standard, error) {
	var (
		st Standard
		ts string
	)
	if err := sc.Scan(&st.ID, &st.Code, &st.Title, &st.Revision, &ts, &st.PGNCount); err != nil {
		return nil, err
	}
	st.CreatedAt = db.ParseTime(ts)
	return &st, nil
}

func scanPGN(sc scanner) (*PGN, error) {
	var p PGN
	err := sc.Scan(&p.ID, &p.StandardID, &p.PGNDec, &p.PGNHex, &p.Name, &p.Acronym,
		&p.Description, &p.DataLength, &p.TransmissionRate)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSPN(sc scanner) (*SPN, error) {
	var (
		sp     SPN
		lo, hi sql.NullFloat64
	)
	err := sc.Scan(&sp.ID, &sp.PGNID, &sp.SPN, &sp.Name, &sp.Description, &sp.Unit,
		&sp.StartBit, &sp.BitWidth, &sp.Factor, &sp.Offset, &lo, &hi)
	if err != nil {
		return nil, err
	}
	if lo.Valid {
		sp.Min = &lo.Float64
	}
	if hi.Valid {
		sp.Max = &hi.Float64
	}
	return &sp, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func deleteByID(ctx context.Context, ex execer, table, id string) error {
	res, err := ex.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE")
}
