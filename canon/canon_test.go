package canon_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"dayplan/canon"
)

// TestCanonicalizeSortsKeysRecursively checks that object keys come out in
// byte order at every nesting level, independent of how the maps were built.
func TestCanonicalizeSortsKeysRecursively(t *testing.T) {
	v := map[string]any{
		"zeta": map[string]any{
			"b": 2,
			"a": 1,
		},
		"alpha": []any{
			map[string]any{"y": true, "x": false},
		},
	}

	got, err := canon.Canonicalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"alpha":[{"x":false,"y":true}],"zeta":{"a":1,"b":2}}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// TestCanonicalizeArraySlots verifies that array positions are preserved:
// nil elements render as null instead of collapsing the slot.
func TestCanonicalizeArraySlots(t *testing.T) {
	got, err := canon.Canonicalize([]any{"run", nil, 3, nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `["run",null,3,null]`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// TestCanonicalizeNumbers locks in the single canonical spelling for each
// numeric shape: whole floats print as integers, tiny and huge magnitudes
// use an unpadded exponent, and json.Number literals are normalized.
func TestCanonicalizeNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "whole float", input: 2.0, want: "2"},
		{name: "fractional float", input: 1.5, want: "1.5"},
		{name: "zero", input: 0.0, want: "0"},
		{name: "negative zero", input: math.Copysign(0, -1), want: "0"},
		{name: "small decimal", input: 0.00002, want: "0.00002"},
		{name: "exponent threshold", input: 1e21, want: "1e+21"},
		{name: "tiny exponent", input: 1.5e-7, want: "1.5e-7"},
		{name: "plain int", input: 42, want: "42"},
		{name: "int64", input: int64(9007199254740993), want: "9007199254740993"},
		{name: "uint64", input: uint64(18446744073709551615), want: "18446744073709551615"},
		{name: "number literal whole", input: json.Number("2.0"), want: "2"},
		{name: "number literal int", input: json.Number("7"), want: "7"},
	}

	for _, tc := range tests {
		got, err := canon.Canonicalize(tc.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

// TestCanonicalizeRejectsNonFinite confirms that NaN and infinities are hard
// errors rather than silent substitutions.
func TestCanonicalizeRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := canon.Canonicalize(f); err == nil {
			t.Errorf("expected error for %v, got none", f)
		}
		if _, err := canon.Canonicalize(map[string]any{"v": f}); err == nil {
			t.Errorf("expected error for nested %v, got none", f)
		}
	}
}

// TestCanonicalizeRejectsUnsupportedTypes confirms that values outside the
// JSON model produce a descriptive error instead of a bogus encoding.
func TestCanonicalizeRejectsUnsupportedTypes(t *testing.T) {
	for _, v := range []any{time.Now(), struct{ A int }{1}, []int{1, 2}} {
		if _, err := canon.Canonicalize(v); err == nil {
			t.Errorf("expected error for %T, got none", v)
		}
	}
}

// TestCanonicalizeStringEscapes checks the escape table: the named escapes,
// \u00xx for bare controls, and UTF-8 passthrough for everything else.
func TestCanonicalizeStringEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "quote and backslash", input: `say "hi" \ bye`, want: `"say \"hi\" \\ bye"`},
		{name: "named controls", input: "a\nb\tc\rd\be\ff", want: `"a\nb\tc\rd\be\ff"`},
		{name: "bare control", input: "x\x01y\x1fz", want: `"x\u0001y\u001fz"`},
		{name: "unicode passthrough", input: "héllo ☀", want: `"héllo ☀"`},
		{name: "slash not escaped", input: "a/b", want: `"a/b"`},
	}

	for _, tc := range tests {
		got, err := canon.Canonicalize(tc.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

// TestFingerprintKnownVector pins the full pipeline to a literal digest so
// that any canonicalization or hashing drift fails loudly.
func TestFingerprintKnownVector(t *testing.T) {
	got, err := canon.Fingerprint(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "43258cff783fe7036d8a43033f830adfc60ec037382473548ac742b888292777"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// TestFingerprintIgnoresSourceFormatting checks that values decoded from
// differently ordered and differently spelled JSON fingerprint identically
// to a map built by hand with integer values.
func TestFingerprintIgnoresSourceFormatting(t *testing.T) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(`{"b":2.0,"a":1}`), &decoded); err != nil {
		t.Fatalf("failed to decode test document: %v", err)
	}

	fromDecoded, err := canon.Fingerprint(decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fromLiteral, err := canon.Fingerprint(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fromDecoded != fromLiteral {
		t.Errorf("decoded fingerprint %s differs from literal fingerprint %s", fromDecoded, fromLiteral)
	}
}

// TestEqual covers the structural equality helper, including the rule that
// values which cannot be canonicalized are never equal to anything.
func TestEqual(t *testing.T) {
	a := map[string]any{"id": "t-1", "tags": []any{"x", "y"}}
	b := map[string]any{"tags": []any{"x", "y"}, "id": "t-1"}
	if !canon.Equal(a, b) {
		t.Error("expected structurally equal maps to compare equal")
	}

	c := map[string]any{"id": "t-1", "tags": []any{"y", "x"}}
	if canon.Equal(a, c) {
		t.Error("expected differing array order to compare unequal")
	}

	if canon.Equal(math.NaN(), math.NaN()) {
		t.Error("expected uncanonicalizable values to compare unequal")
	}
	if !canon.Equal(nil, nil) {
		t.Error("expected nil to equal nil")
	}
}
