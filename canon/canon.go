package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Canonical Encoding
//
// Renders a decoded JSON value as a byte-stable string so that two
// structurally equal values always serialize identically: object keys are
// sorted recursively, numbers have exactly one spelling, and strings use a
// fixed escape table. The canonical string is what gets hashed into a state
// fingerprint, so any deviation here shows up as permanent fingerprint
// divergence between client and server.
// ============================================================================

// Canonicalize renders v as its canonical JSON string.
//
// Accepted values: nil, bool, string, the numeric kinds, json.Number,
// []any, and map[string]any. Anything else is an error, as is a non-finite
// number: a misleading fingerprint is worse than no fingerprint.
func Canonicalize(v any) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Fingerprint canonicalizes v and hashes the UTF-8 bytes with SHA-256,
// returning lowercase hex. Pure; equal structures yield equal fingerprints
// regardless of key insertion order or numeric spelling in the source.
func Fingerprint(v any) (string, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return "", serr.Wrap(err, "value cannot be fingerprinted")
	}
	return HexSum([]byte(s)), nil
}

// Equal reports deep structural equality of two values by comparing their
// canonical forms. Values that cannot be canonicalized are never equal.
func Equal(a, b any) bool {
	ca, err := Canonicalize(a)
	if err != nil {
		return false
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false
	}
	return ca == cb
}

func writeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeEscaped(b, val)
	case float64:
		s, err := formatFloat(val)
		if err != nil {
			return err
		}
		b.WriteString(s)
	case float32:
		s, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		b.WriteString(s)
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(val, 10))
	case json.Number:
		s, err := normalizeNumber(val)
		if err != nil {
			return err
		}
		b.WriteString(s)
	case []any:
		b.WriteByte('[')
		for i, el := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			// Empty array slots are significant; they render as null
			// rather than being dropped.
			if err := writeCanonical(b, el); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		// Plain byte ordering, applied at every nesting level.
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeEscaped(b, k)
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return serr.New(fmt.Sprintf("value of type %T cannot be canonicalized", v))
	}
	return nil
}

// formatFloat gives a float exactly one canonical spelling. Values that are
// whole and within the range where decimal notation is exact print without
// a fraction or exponent; everything else uses the shortest round-trip
// form with an unpadded exponent.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", serr.New("non-finite number cannot be canonicalized")
	}
	if f == 0 {
		// Covers negative zero as well; "-0" must never leak into a
		// canonical string.
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// strconv pads single-digit exponents to two digits; the canonical
	// form does not (1.5e-07 -> 1.5e-7).
	s = strings.Replace(s, "e+0", "e+", 1)
	s = strings.Replace(s, "e-0", "e-", 1)
	return s, nil
}

// normalizeNumber reduces a json.Number literal to the same spelling the
// other numeric kinds produce, so "2.0" and 2 canonicalize identically.
func normalizeNumber(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", serr.New("unparseable number literal: " + n.String())
	}
	return formatFloat(f)
}

// writeEscaped writes s as a JSON string: quote and backslash escaped, the
// named control escapes used where they exist, \u00xx for the remaining
// controls, and every other rune passed through as UTF-8. Invalid UTF-8
// sequences become U+FFFD.
func writeEscaped(b *strings.Builder, s string) {
	const hexDigits = "0123456789abcdef"
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[r>>4])
				b.WriteByte(hexDigits[r&0xf])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
