package reference

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voltline/j1939-console/internal/j1939"
)

// J1939 identifier limits.
const (
	MaxPGN = 0x3FFFF // 18-bit parameter group number
	MaxSPN = 0x7FFFF // 19-bit suspect parameter number
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid reference data")
	ErrDuplicate = errors.New("already exists")
)

// Standard is a published J1939 document, e.g. J1939-71.
type Standard struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Revision  string    `json:"revision"`
	PGNCount  int       `json:"pgn_count"`
	CreatedAt time.Time `json:"created_at"`
}

// PGN is a parameter group defined by a standard.
type PGN struct {
	ID               string `json:"id"`
	StandardID       string `json:"standard_id"`
	PGNDec           int64  `json:"pgn_dec"`
	PGNHex           string `json:"pgn_hex"`
	Name             string `json:"name"`
	Acronym          string `json:"acronym"`
	Description      string `json:"description"`
	DataLength       int    `json:"data_length"`
	TransmissionRate string `json:"transmission_rate"`
	SPNs             []SPN  `json:"spns,omitempty"`
}

// SPN is a suspect parameter carried in a PGN.
type SPN struct {
	ID          string   `json:"id"`
	PGNID       string   `json:"pgn_id"`
	SPN         int64    `json:"spn"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Unit        string   `json:"unit"`
	StartBit    int      `json:"start_bit"`
	BitWidth    int      `json:"bit_width"`
	Factor      float64  `json:"factor"`
	Offset      float64  `json:"offset"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
}

// Normalize fills the hex/decimal pair from whichever half is set and
// applies defaults.
func (p *PGN) Normalize() {
	p.PGNHex = strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(p.PGNHex), "0x"), "0X"))
	switch {
	case p.PGNHex == "" && p.PGNDec > 0:
		p.PGNHex = j1939.FormatPGNHex(p.PGNDec)
	case p.PGNDec == 0 && p.PGNHex != "":
		p.PGNDec = j1939.ParsePGNHex(p.PGNHex)
	}
	if p.DataLength == 0 {
		p.DataLength = 8
	}
}

// Validate checks p after Normalize.
func (p *PGN) Validate() error {
	if p.PGNDec < 0 || p.PGNDec > MaxPGN {
		return fmt.Errorf("%w: pgn %d out of range", ErrInvalid, p.PGNDec)
	}
	if p.PGNHex == "" {
		return fmt.Errorf("%w: pgn_hex or pgn_dec is required", ErrInvalid)
	}
	if j1939.ParsePGNHex(p.PGNHex) != p.PGNDec {
		return fmt.Errorf("%w: pgn_hex %s does not match pgn_dec %d", ErrInvalid, p.PGNHex, p.PGNDec)
	}
	if p.DataLength < 0 || p.DataLength > 1785 {
		return fmt.Errorf("%w: data_length %d out of range", ErrInvalid, p.DataLength)
	}
	return nil
}

// Validate checks s.
func (s *SPN) Validate() error {
	if s.SPN < 0 || s.SPN > MaxSPN {
		return fmt.Errorf("%w: spn %d out of range", ErrInvalid, s.SPN)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: spn name is required", ErrInvalid)
	}
	if s.StartBit < 0 || s.BitWidth < 0 || s.BitWidth > 64 {
		return fmt.Errorf("%w: bit layout %d+%d out of range", ErrInvalid, s.StartBit, s.BitWidth)
	}
	return nil
}
