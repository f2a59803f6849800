package blockgraph

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/go7zip/sevenzip/coder"
)

// TestEncodeDecodeRoundTripChain builds a two-stage [Delta, Copy] encode
// chain (mirroring a real [filter, compressor] pipeline's shape without
// needing a third-party compressor), encodes a buffer, and decodes it back
// through BuildDecoder, checking the folder's bind pairs and CRC survive
// the whole wire round trip.
func TestEncodeDecodeRoundTripChain(t *testing.T) {
	original := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 100)

	var sink bytes.Buffer
	chain, err := BuildEncoderChain(&sink, []ChainStage{
		{Method: coder.Delta, Config: coder.CoderConfig{DeltaDistance: 1}},
		{Method: coder.Copy},
	})
	if err != nil {
		t.Fatal(err)
	}

	crc := crc32.NewIEEE()
	if _, err := io.Copy(io.MultiWriter(chain.Writer, crc), bytes.NewReader(original)); err != nil {
		t.Fatal(err)
	}
	if err := chain.Close(); err != nil {
		t.Fatal(err)
	}

	folder := chain.Folder(crc.Sum32())
	if len(folder.CoderInfo) != 2 {
		t.Fatalf("got %d coders, want 2", len(folder.CoderInfo))
	}
	if len(folder.BindPairsInfo) != 1 {
		t.Fatalf("got %d bind pairs, want 1", len(folder.BindPairsInfo))
	}

	packed := []io.Reader{bytes.NewReader(sink.Bytes())}
	r, err := BuildDecoder(folder, packed, &coder.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("decoded %d bytes != original %d bytes", len(got), len(original))
	}
}

// TestDecodeChecksumMismatch confirms a corrupted folder CRC surfaces
// ErrChecksumMismatch instead of silently succeeding or returning a bare
// io.EOF.
func TestDecodeChecksumMismatch(t *testing.T) {
	original := []byte("hello, 7z")

	var sink bytes.Buffer
	chain, err := BuildEncoderChain(&sink, []ChainStage{{Method: coder.Copy}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chain.Writer.Write(original); err != nil {
		t.Fatal(err)
	}
	if err := chain.Close(); err != nil {
		t.Fatal(err)
	}

	folder := chain.Folder(0xdeadbeef) // wrong CRC on purpose

	packed := []io.Reader{bytes.NewReader(sink.Bytes())}
	r, err := BuildDecoder(folder, packed, &coder.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = io.ReadAll(r)
	if err != ErrChecksumMismatch {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}
