// Package j1939 normalizes vehicle PGN/SPN records into one canonical
// display model.
//
// Backend records arrive in one of three encodings: a keyed PGN mapping, an
// array of PGN objects with embedded SPNs, or a flat SPN list where every SPN
// names its own PGN. Normalize never fails; malformed input degrades to empty
// lists and zero counts.
package j1939

import (
	"strings"

	"github.com/spf13/cast"
)

// Record keys recognized by the classifier.
const (
	KeyMapping = "pgnSpnMapping"
	KeyPGNs    = "pgns"
	KeySPNs    = "spns"
)

// UnknownPGN is the bucket key for flat SPNs that carry no pgn_hex.
const UnknownPGN = "UNKNOWN"

// Shape identifies which encoding a vehicle record used.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeMapping
	ShapeArray
	ShapeFlat
)

var shapeNames = map[Shape]string{
	ShapeNone:    "none",
	ShapeMapping: "mapping",
	ShapeArray:   "array",
	ShapeFlat:    "flat",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return "none"
}

// MarshalText encodes the shape by name.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a shape name; unknown names become ShapeNone.
func (s *Shape) UnmarshalText(text []byte) error {
	*s = ParseShape(string(text))
	return nil
}

// ParseShape returns the shape with the given name, or ShapeNone.
func ParseShape(name string) Shape {
	for shape, n := range shapeNames {
		if n == name {
			return shape
		}
	}
	return ShapeNone
}

// SPN is a single suspect parameter as received from the backend. It stays an
// open JSON object so attributes the console does not know about survive.
type SPN map[string]any

// Field returns an accessor yielding the field as a string, or "" when the
// field is absent or not a scalar.
func (s SPN) Field(key string) Accessor {
	return func() string {
		return scalarString(s[key])
	}
}

// CanonicalPGN is one parameter group in the normalized output.
type CanonicalPGN struct {
	PGNHex   string `json:"pgn_hex"`
	PGNDec   int64  `json:"pgn_dec"`
	Name     string `json:"name"`
	SPNs     []SPN  `json:"spns"`
	SPNCount int    `json:"spn_count"`
}

// Result is the canonical structure handed to the viewer.
type Result struct {
	Shape    Shape          `json:"shape"`
	PGNList  []CanonicalPGN `json:"pgnList"`
	SPNCount int            `json:"spnCount"`
	PGNCount int            `json:"pgnCount"`
}

// BucketSPNTotal sums the SPN counts of every PGN in the list. For every
// shape it equals SPNCount.
func (r Result) BucketSPNTotal() int {
	total := 0
	for _, p := range r.PGNList {
		total += p.SPNCount
	}
	return total
}

// Index returns the position of the PGN with the given hex identifier, or
// -1. An exact match wins over a match that ignores case and an optional 0x
// prefix, so "0x1" and "1" stay distinct when both are present. Several PGNs
// can share a hex (the "" fallback); only the first is addressable by hex.
func (r Result) Index(hex string) int {
	hex = strings.TrimSpace(hex)
	for i, p := range r.PGNList {
		if p.PGNHex == hex {
			return i
		}
	}
	want := trimHexPrefix(hex)
	for i, p := range r.PGNList {
		if strings.EqualFold(trimHexPrefix(p.PGNHex), want) {
			return i
		}
	}
	return -1
}

// Find returns the PGN Index locates.
func (r Result) Find(hex string) (CanonicalPGN, bool) {
	return r.At(r.Index(hex))
}

// At returns the PGN at position i of the list.
func (r Result) At(i int) (CanonicalPGN, bool) {
	if i < 0 || i >= len(r.PGNList) {
		return CanonicalPGN{}, false
	}
	return r.PGNList[i], true
}

func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

// scalarString renders JSON scalars the way they appear in the source data.
// Objects, arrays and null render as "".
func scalarString(v any) string {
	switch v.(type) {
	case nil, map[string]any, []any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}
