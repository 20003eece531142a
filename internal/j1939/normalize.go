package j1939

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Normalize converts a vehicle record into the canonical PGN list. It is a
// pure function of its input: the same record always yields an equal
// Result, and the PGN list is never nil.
func Normalize(r *VehicleRecord) Result {
	switch enc := Classify(r).(type) {
	case MappingEncoding:
		return normalizeMapping(enc)
	case ArrayEncoding:
		return normalizeArray(enc)
	case FlatEncoding:
		return normalizeFlat(enc)
	default:
		return Result{Shape: ShapeNone, PGNList: []CanonicalPGN{}}
	}
}

func normalizeMapping(enc MappingEncoding) Result {
	list := make([]CanonicalPGN, 0, enc.Entries.Len())
	total := 0
	for pair := enc.Entries.Oldest(); pair != nil; pair = pair.Next() {
		pgn := canonicalPGN(asObject(pair.Value), pair.Key)
		total += pgn.SPNCount
		list = append(list, pgn)
	}
	return Result{Shape: ShapeMapping, PGNList: list, SPNCount: total, PGNCount: len(list)}
}

func normalizeArray(enc ArrayEncoding) Result {
	list := make([]CanonicalPGN, 0, len(enc.PGNs))
	total := 0
	for _, v := range enc.PGNs {
		pgn := canonicalPGN(asObject(v), "")
		total += pgn.SPNCount
		list = append(list, pgn)
	}
	return Result{Shape: ShapeArray, PGNList: list, SPNCount: total, PGNCount: len(list)}
}

func normalizeFlat(enc FlatEncoding) Result {
	buckets := orderedmap.New[string, []SPN]()
	for _, v := range enc.SPNs {
		spn := toSPN(v)
		key := FirstNonEmpty(spn.Field("pgn_hex"), Constant(UnknownPGN))
		group, _ := buckets.Get(key)
		buckets.Set(key, append(group, spn))
	}

	list := make([]CanonicalPGN, 0, buckets.Len())
	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, CanonicalPGN{
			PGNHex:   pair.Key,
			PGNDec:   ParsePGNHex(pair.Key),
			Name:     "PGN_" + pair.Key,
			SPNs:     pair.Value,
			SPNCount: len(pair.Value),
		})
	}

	// The total comes from the input, not the buckets.
	return Result{Shape: ShapeFlat, PGNList: list, SPNCount: len(enc.SPNs), PGNCount: len(list)}
}

// canonicalPGN builds one CanonicalPGN from a PGN object. key is the mapping
// key for shape (a) entries and "" otherwise.
func canonicalPGN(entry map[string]any, key string) CanonicalPGN {
	obj := SPN(entry)
	hex := FirstNonEmpty(obj.Field("pgn_hex"), obj.Field("pgn"), Constant(key))
	spns := toSPNs(entry["spns"])
	return CanonicalPGN{
		PGNHex:   hex,
		PGNDec:   pgnDec(entry["pgn_dec"], hex),
		Name:     FirstNonEmpty(obj.Field("name"), Constant("PGN_"+hex)),
		SPNs:     spns,
		SPNCount: len(spns),
	}
}

func pgnDec(explicit any, hex string) int64 {
	if explicit != nil {
		if f, err := cast.ToFloat64E(explicit); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
	}
	return ParsePGNHex(hex)
}

// ParsePGNHex parses a hexadecimal PGN identifier, with or without a 0x
// prefix. Unparseable input yields 0.
func ParsePGNHex(hex string) int64 {
	n, err := strconv.ParseInt(trimHexPrefix(strings.TrimSpace(hex)), 16, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatPGNHex renders a PGN number the way reference data stores it.
func FormatPGNHex(dec int64) string {
	return strings.ToUpper(strconv.FormatInt(dec, 16))
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// toSPN keeps objects as they are; any other element becomes an empty SPN so
// list lengths are preserved.
func toSPN(v any) SPN {
	return SPN(asObject(v))
}

func toSPNs(v any) []SPN {
	arr, ok := v.([]any)
	if !ok {
		return []SPN{}
	}
	out := make([]SPN, 0, len(arr))
	for _, el := range arr {
		out = append(out, toSPN(el))
	}
	return out
}
