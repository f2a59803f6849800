package filters

import (
	"bytes"
	"io"
	"testing"
)

func TestDeltaRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		distance uint
		data     []byte
	}{
		{"distance1", 1, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{"distance4", 4, bytes.Repeat([]byte{10, 20, 30, 40}, 50)},
		{"distance256", 256, bytes.Repeat([]byte{0xAA}, 600)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var encoded bytes.Buffer
			enc := NewDeltaEncoder(&encoded, c.distance)
			if _, err := enc.Write(c.data); err != nil {
				t.Fatal(err)
			}

			dec, err := NewDeltaDecoder(bytes.NewReader(encoded.Bytes()), c.distance, int64(len(c.data)))
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(dec)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, c.data) {
				t.Fatalf("round trip mismatch: got %v, want %v", got, c.data)
			}
		})
	}
}

func TestDeltaRoundTripMultipleWrites(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 40)
	const distance = 3

	var encoded bytes.Buffer
	enc := NewDeltaEncoder(&encoded, distance)
	// Split across several Write calls at arbitrary, non-aligned boundaries
	// to exercise the carried delta state between calls.
	chunks := [][]byte{data[:7], data[7:50], data[50:51], data[51:]}
	for _, c := range chunks {
		if _, err := enc.Write(c); err != nil {
			t.Fatal(err)
		}
	}

	dec, err := NewDeltaDecoder(bytes.NewReader(encoded.Bytes()), distance, int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip across chunked writes mismatch: got %v, want %v", got, data)
	}
}
