package header

import (
	"bytes"
	"testing"
)

func TestDigestsRoundTrip(t *testing.T) {
	crcs := []uint32{0x12345678, 0, 0xdeadbeef, 0, 1}

	var buf bytes.Buffer
	if err := WriteDigests(&buf, crcs); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDigests(&buf, len(crcs))
	if err != nil {
		t.Fatal(err)
	}

	for i, want := range crcs {
		if got[i] != want {
			t.Fatalf("digest %d = %#x, want %#x", i, got[i], want)
		}
	}
}
