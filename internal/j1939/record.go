package j1939

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotObject is returned by ParseRecord when the payload is not a JSON object.
var ErrNotObject = errors.New("j1939: vehicle record must be a JSON object")

// VehicleRecord is a backend vehicle/file record whose PGN/SPN encoding is
// not known until it is classified. Fields stay as raw JSON and are decoded
// fresh on every read, so nothing derived from a record aliases it.
type VehicleRecord struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// ParseRecord decodes a JSON object into a VehicleRecord.
func ParseRecord(data []byte) (*VehicleRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &VehicleRecord{raw: raw, fields: fields}, nil
}

// RecordFromMap builds a record from an already decoded object.
func RecordFromMap(m map[string]any) (*VehicleRecord, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return ParseRecord(data)
}

// Raw returns the record's original JSON encoding.
func (r *VehicleRecord) Raw() []byte {
	if r == nil {
		return []byte("{}")
	}
	return r.raw
}

// Has reports whether the top-level key is present.
func (r *VehicleRecord) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fields[key]
	return ok
}

// Field returns an accessor yielding a top-level scalar field as a string.
func (r *VehicleRecord) Field(key string) Accessor {
	return func() string {
		var v any
		if !r.decode(key, &v) {
			return ""
		}
		return scalarString(v)
	}
}

func (r *VehicleRecord) decode(key string, v any) bool {
	if r == nil {
		return false
	}
	raw, ok := r.fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// array decodes a top-level JSON array, or returns nil.
func (r *VehicleRecord) array(key string) []any {
	var arr []any
	if !r.decode(key, &arr) {
		return nil
	}
	return arr
}

// Encoding is the classified form of a vehicle record. Exactly one of
// MappingEncoding, ArrayEncoding, FlatEncoding or NoEncoding is produced.
type Encoding interface {
	Shape() Shape
}

// MappingEncoding is shape (a): PGN key -> {spns: [...], ...}, in key order.
type MappingEncoding struct {
	Entries *orderedmap.OrderedMap[string, any]
}

// ArrayEncoding is shape (b): an array of PGN objects embedding their SPNs.
type ArrayEncoding struct {
	PGNs []any
}

// FlatEncoding is shape (c): SPNs that each carry their own pgn_hex.
type FlatEncoding struct {
	SPNs []any
}

// NoEncoding is a record with no recognized PGN/SPN data.
type NoEncoding struct{}

func (MappingEncoding) Shape() Shape { return ShapeMapping }
func (ArrayEncoding) Shape() Shape   { return ShapeArray }
func (FlatEncoding) Shape() Shape    { return ShapeFlat }
func (NoEncoding) Shape() Shape      { return ShapeNone }

// Classify picks the authoritative encoding of a record. The first present
// in the order mapping > array > flat wins and the rest are ignored, even
// when also populated.
func Classify(r *VehicleRecord) Encoding {
	if r == nil {
		return NoEncoding{}
	}

	if r.Has(KeyMapping) {
		entries := orderedmap.New[string, any]()
		if err := json.Unmarshal(r.fields[KeyMapping], entries); err == nil && entries.Len() > 0 {
			return MappingEncoding{Entries: entries}
		}
	}

	if pgns := r.array(KeyPGNs); len(pgns) > 0 {
		return ArrayEncoding{PGNs: pgns}
	}

	if spns := r.array(KeySPNs); len(spns) > 0 {
		return FlatEncoding{SPNs: spns}
	}

	return NoEncoding{}
}
