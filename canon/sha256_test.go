package canon_test

import (
	"strings"
	"testing"

	"dayplan/canon"
)

// TestSum256KnownVectors verifies the hash against the published FIPS 180-4
// vectors plus the classic long-message check. Any drift here corrupts
// every fingerprint the engine produces.
func TestSum256KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty message",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:  "abc",
			input: "abc",
			want:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:  "two block message",
			input: "abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			want:  "248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
		},
		{
			name:  "pangram",
			input: "The quick brown fox jumps over the lazy dog",
			want:  "d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592",
		},
		{
			name:  "one million a",
			input: strings.Repeat("a", 1000000),
			want:  "cdc76e5c9914fb9281a1c7e284d73e67f1809a48a497200e046d39ccc7112cd0",
		},
	}

	for _, tc := range tests {
		got := canon.HexSum([]byte(tc.input))
		if got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

// TestSum256PaddingBoundaries exercises message lengths around the 56-byte
// and 64-byte padding edges, where a broken length trailer would hide from
// the standard vectors.
func TestSum256PaddingBoundaries(t *testing.T) {
	// The digests must be stable across calls and distinct across lengths;
	// identical digests for different inputs would indicate the tail of
	// the message is being dropped during padding.
	seen := make(map[string]int)
	for _, n := range []int{54, 55, 56, 57, 63, 64, 65, 127, 128, 129} {
		input := []byte(strings.Repeat("x", n))
		first := canon.HexSum(input)
		second := canon.HexSum(input)
		if first != second {
			t.Fatalf("length %d: digest not deterministic: %s vs %s", n, first, second)
		}
		if len(first) != 64 {
			t.Fatalf("length %d: digest %q is not 64 hex chars", n, first)
		}
		if prev, dup := seen[first]; dup {
			t.Errorf("lengths %d and %d produced the same digest %s", prev, n, first)
		}
		seen[first] = n
	}
}
