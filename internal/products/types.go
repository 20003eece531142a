// Package products manages the product catalogue and firmware releases
// shown on the marketing site.
package products

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid product data")
	ErrDuplicate = errors.New("already exists")
)

// Product is a catalogue entry. Description is markdown.
type Product struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	SKU             string     `json:"sku"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	DescriptionHTML string     `json:"description_html,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Firmware        []Firmware `json:"firmware,omitempty"`
}

// Firmware is one released build for a product. ReleaseNotes is markdown.
type Firmware struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Version      string    `json:"version"`
	ReleaseNotes string    `json:"release_notes"`
	NotesHTML    string    `json:"release_notes_html,omitempty"`
	DownloadURL  string    `json:"download_url"`
	Checksum     string    `json:"checksum"`
	ReleasedAt   time.Time `json:"released_at"`
}

var (
	skuPattern      = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)
	checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Validate trims and checks p. SKUs are stored upper case.
func (p *Product) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !skuPattern.MatchString(p.SKU) {
		return fmt.Errorf("%w: sku %q must be letters, digits and dashes", ErrInvalid, p.SKU)
	}
	return nil
}

// Validate trims and checks f. The checksum, when given, is a sha256 hex
// digest.
func (f *Firmware) Validate() error {
	f.Version = strings.TrimPrefix(strings.TrimSpace(f.Version), "v")
	f.Checksum = strings.ToLower(strings.TrimSpace(f.Checksum))
	f.DownloadURL = strings.TrimSpace(f.DownloadURL)
	if f.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalid)
	}
	if f.Checksum != "" && !checksumPattern.MatchString(f.Checksum) {
		return fmt.Errorf("%w: checksum must be a sha256 hex digest", ErrInvalid)
	}
	return nil
}
