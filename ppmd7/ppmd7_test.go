package ppmd7

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func encodeDecode(t *testing.T, order int, memSize uint32, data []byte) []byte {
	t.Helper()

	var encoded bytes.Buffer
	enc, err := NewEncoder(&encoded, order, memSize)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := NewDecoder(bytes.NewReader(encoded.Bytes()), order, memSize)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	// PPMd7 carries no in-band length or end marker, so the caller must
	// already know exactly how many symbols to pull, matching how the
	// 7z folder's recorded unpack size drives decoding.
	got := make([]byte, len(data))
	if _, err := io.ReadFull(dec, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	return got
}

func TestRoundTripRepetitiveText(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200))
	got := encodeDecode(t, 6, 16<<20, data)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestRoundTripRandomBytes(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte((i*2654435761 + 7) % 256)
	}
	got := encodeDecode(t, 4, MinMemSize, data)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestRoundTripEmpty(t *testing.T) {
	got := encodeDecode(t, 6, 1<<20, nil)
	if len(got) != 0 {
		t.Fatalf("got %d bytes, want 0", len(got))
	}
}

func TestNewEncoderRejectsBadOrder(t *testing.T) {
	if _, err := NewEncoder(&bytes.Buffer{}, MinOrder-1, 1<<20); err == nil {
		t.Fatal("expected an error for an order below MinOrder")
	}
	if _, err := NewEncoder(&bytes.Buffer{}, MaxOrder+1, 1<<20); err == nil {
		t.Fatal("expected an error for an order above MaxOrder")
	}
}

func TestNewEncoderRejectsBadMemSize(t *testing.T) {
	if _, err := NewEncoder(&bytes.Buffer{}, 6, MinMemSize-1); err == nil {
		t.Fatal("expected an error for a memSize below MinMemSize")
	}
}
