package filters

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

// pseudoX86Code builds a buffer that looks enough like x86 machine code to
// exercise x86Convert's CALL/JMP rewriting: scattered 0xE8/0xE9 opcodes
// followed by a plausible 32-bit relative displacement, amid filler bytes
// that won't spuriously match the opcode test.
func pseudoX86Code(n int) []byte {
	r := rand.New(rand.NewSource(1))
	buf := make([]byte, n)
	r.Read(buf)

	for i := 0; i+5 < n; i += 37 {
		if i%2 == 0 {
			buf[i] = 0xE8
		} else {
			buf[i] = 0xE9
		}
		// A small, plausible displacement whose top byte is 0x00 or 0xff,
		// the form x86Convert actually rewrites.
		buf[i+1] = byte(r.Intn(256))
		buf[i+2] = byte(r.Intn(256))
		buf[i+3] = byte(r.Intn(256))
		if r.Intn(2) == 0 {
			buf[i+4] = 0x00
		} else {
			buf[i+4] = 0xff
		}
	}
	return buf
}

func TestBCJX86RoundTrip(t *testing.T) {
	sizes := []int{10, 4096, 4096*2 + 500}
	for _, n := range sizes {
		data := pseudoX86Code(n)

		var encoded bytes.Buffer
		w := NewBCJX86Writer(&encoded)
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}

		r := NewBCJX86Reader(bytes.NewReader(encoded.Bytes()))
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("size %d: round trip mismatch (got %d bytes, want %d)", n, len(got), len(data))
		}
	}
}

func TestBCJARMRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	data := make([]byte, 4100)
	r.Read(data)
	for i := 3; i+1 <= len(data); i += 4 {
		data[i] = 0xeb
	}

	var encoded bytes.Buffer
	w := NewBCJARMWriter(&encoded)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	dr := NewBCJARMReader(bytes.NewReader(encoded.Bytes()))
	got, err := io.ReadAll(dr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch (got %d bytes, want %d)", len(got), len(data))
	}
}

func TestBCJWriteSmallChunks(t *testing.T) {
	data := pseudoX86Code(2000)

	var encoded bytes.Buffer
	w := NewBCJX86Writer(&encoded)
	for i := 0; i < len(data); i += 17 {
		end := i + 17
		if end > len(data) {
			end = len(data)
		}
		if _, err := w.Write(data[i:end]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewBCJX86Reader(bytes.NewReader(encoded.Bytes()))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("chunked-write round trip mismatch (got %d bytes, want %d)", len(got), len(data))
	}
}
