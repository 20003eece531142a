package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voltline/j1939-console/internal/db"
)

// Store provides CRUD over products and firmware.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const productColumns = "id, name, sku, category, description, created_at, updated_at"

// Create inserts p and sets its ID.
func (s *Store) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.SKU, p.Category, p.Description, db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("sku %s: %w", p.SKU, ErrDuplicate)
		}
		return fmt.Errorf("inserting product: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update overwrites the editable fields of p.
func (s *Store) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET name = ?, sku = ?, category = ?, description = ?, updated_at = ? WHERE id = ?",
		p.Name, p.SKU, p.Category, p.Description, db.FormatTime(time.Now()), p.ID)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("sku %s: %w", p.SKU, ErrDuplicate)
		}
		return fmt.Errorf("updating product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a product with its firmware, newest first, or nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	if p.Firmware, err = s.ListFirmware(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns products ordered by name, optionally filtered by category.
func (s *Store) List(ctx context.Context, category string) ([]Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	var args []any
	if category = strings.TrimSpace(category); category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY name", args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	list := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Delete removes a product and its firmware.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "products", id)
}

const firmwareColumns = "id, product_id, version, release_notes, download_url, checksum, released_at"

// Release records a firmware build for its product.
func (s *Store) Release(ctx context.Context, f *Firmware) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.ID = uuid.New().String()
	if f.ReleasedAt.IsZero() {
		f.ReleasedAt = time.Now()
	}
	f.ReleasedAt = f.ReleasedAt.UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO firmware ("+firmwareColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.ProductID, f.Version, f.ReleaseNotes, f.DownloadURL, f.Checksum, db.FormatTime(f.ReleasedAt))
	if err != nil {
		switch {
		case isUnique(err):
			return fmt.Errorf("version %s: %w", f.Version, ErrDuplicate)
		case strings.Contains(err.Error(), "FOREIGN KEY"):
			return fmt.Errorf("product %s: %w", f.ProductID, ErrNotFound)
		}
		return fmt.Errorf("inserting firmware: %w", err)
	}
	return nil
}

// GetFirmware returns a firmware release, or nil, nil.
func (s *Store) GetFirmware(ctx context.Context, id string) (*Firmware, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+firmwareColumns+" FROM firmware WHERE id = ?", id)
	f, err := scanFirmware(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting firmware: %w", err)
	}
	return f, nil
}

// ListFirmware returns a product's releases, newest first.
func (s *Store) ListFirmware(ctx context.Context, productID string) ([]Firmware, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+firmwareColumns+" FROM firmware WHERE product_id = ? ORDER BY released_at DESC, rowid DESC",
		productID)
	if err != nil {
		return nil, fmt.Errorf("listing firmware: %w", err)
	}
	defer rows.Close()

	list := []Firmware{}
	for rows.Next() {
		f, err := scanFirmware(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning firmware: %w", err)
		}
		list = append(list, *f)
	}
	return list, rows.Err()
}

// Latest returns the newest release of a product, or nil, nil.
func (s *Store) Latest(ctx context.Context, productID string) (*Firmware, error) {
	list, err := s.ListFirmware(ctx, productID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// DeleteFirmware removes a release.
func (s *Store) DeleteFirmware(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "firmware", id)
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (*Product, error) {
	var (
		p                Product
		created, updated string
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Description, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = db.ParseTime(created)
	p.UpdatedAt = db.ParseTime(updated)
	return &p, nil
}

func scanFirmware(sc scanner) (*Firmware, error) {
	var (
		f        Firmware
		released string
	)
	if err := sc.Scan(&f.ID, &f.ProductID, &f.Version, &f.ReleaseNotes, &f.DownloadURL, &f.Checksum, &released); err != nil {
		return nil, err
	}
	f.ReleasedAt = db.ParseTime(released)
	return &f, nil
}

func isUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE")
}
