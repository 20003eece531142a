package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Bundle is the import format for one standard with its nested PGNs and
// SPNs. Files carrying a top-level "standard" key are bundles.
type Bundle struct {
	Standard BundleStandard `json:"standard"`
	PGNs     []BundlePGN    `json:"pgns"`
}

// BundleStandard identifies the standard a bundle defines.
type BundleStandard struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Revision string `json:"revision"`
}

// BundlePGN is a PGN with its SPNs inline.
type BundlePGN struct {
	PGN
	SPNs []SPN `json:"spns"`
}

// IsBundle reports whether a JSON object looks like a reference bundle.
func IsBundle(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, ok := probe["standard"]
	return ok
}

// ParseBundle decodes a bundle.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(b.Standard.Code) == "" {
		return nil, fmt.Errorf("%w: bundle standard code is required", ErrInvalid)
	}
	return &b, nil
}

// ImportResult summarizes an ImportBundle call.
type ImportResult struct {
	Standard Standard `json:"standard"`
	Replaced bool     `json:"replaced"`
	PGNs     int      `json:"pgns"`
	SPNs     int      `json:"spns"`
}

// ImportBundle loads b in one transaction. An existing standard with the
// same code keeps its ID but has its PGNs replaced.
func (s *Store) ImportBundle(ctx context.Context, b *Bundle) (*ImportResult, error) {
	code := strings.TrimSpace(b.Standard.Code)
	existing, err := s.GetStandardByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res := &ImportResult{Replaced: existing != nil}
	var standardID string
	if existing != nil {
		standardID = existing.ID
		if _, err := tx.ExecContext(ctx,
			"UPDATE standards SET title = ?, revision = ? WHERE id = ?",
			b.Standard.Title, b.Standard.Revision, standardID); err != nil {
			return nil, fmt.Errorf("updating standard: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pgns WHERE standard_id = ?", standardID); err != nil {
			return nil, fmt.Errorf("clearing pgns: %w", err)
		}
	} else {
		st := Standard{Code: code, Title: b.Standard.Title, Revision: b.Standard.Revision}
		if err := insertStandard(ctx, tx, &st); err != nil {
			return nil, err
		}
		standardID = st.ID
	}

	for i := range b.PGNs {
		bp := b.PGNs[i]
		p := bp.PGN
		p.ID = ""
		p.StandardID = standardID
		if err := savePGN(ctx, tx, &p); err != nil {
			return nil, fmt.Errorf("pgn #%d: %w", i+1, err)
		}
		res.PGNs++

		for j := range bp.SPNs {
			sp := bp.SPNs[j]
			sp.ID = ""
			sp.PGNID = p.ID
			if err := saveSPN(ctx, tx, &sp); err != nil {
				return nil, fmt.Errorf("pgn %s spn #%d: %w", p.PGNHex, j+1, err)
			}
			res.SPNs++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}

	st, err := s.GetStandard(ctx, standardID)
	if err != nil {
		return nil, err
	}
	res.Standard = *st
	return res, nil
}
