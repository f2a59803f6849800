package header

import (
	"bytes"
	"testing"
)

func TestCoderInfoRoundTripSimple(t *testing.T) {
	ci := &CoderInfo{CodecID: 0x21, NumInStreams: 1, NumOutStreams: 1, Properties: []byte{0x18}}

	var buf bytes.Buffer
	if err := WriteCoderInfo(&buf, ci); err != nil {
		t.Fatal(err)
	}

	got, err := ReadCoderInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.CodecID != ci.CodecID {
		t.Fatalf("CodecID = %#x, want %#x", got.CodecID, ci.CodecID)
	}
	if !bytes.Equal(got.Properties, ci.Properties) {
		t.Fatalf("Properties = %v, want %v", got.Properties, ci.Properties)
	}
}

func TestCoderInfoRoundTripComplex(t *testing.T) {
	// BCJ2 shape: 4 inputs, 1 output, no properties.
	ci := &CoderInfo{CodecID: 0x0303011B, NumInStreams: 4, NumOutStreams: 1}

	var buf bytes.Buffer
	if err := WriteCoderInfo(&buf, ci); err != nil {
		t.Fatal(err)
	}

	got, err := ReadCoderInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumInStreams != 4 || got.NumOutStreams != 1 {
		t.Fatalf("stream counts = %d/%d, want 4/1", got.NumInStreams, got.NumOutStreams)
	}
	if got.CodecID != ci.CodecID {
		t.Fatalf("CodecID = %#x, want %#x", got.CodecID, ci.CodecID)
	}
}

// TestFolderRoundTripChain covers a two-stage scalar chain (e.g. Delta then
// Lzma2): CoderInfo[0] is the outer filter, CoderInfo[1] the compressor, with
// a single bind pair feeding coder 0's input from coder 1's output, and
// coder 1's input as the sole packed stream.
func TestFolderRoundTripChain(t *testing.T) {
	folder := &Folder{
		CoderInfo: []*CoderInfo{
			{CodecID: 0x03, NumInStreams: 1, NumOutStreams: 1, Properties: []byte{0x00}},
			{CodecID: 0x21, NumInStreams: 1, NumOutStreams: 1, Properties: []byte{0x18}},
		},
		BindPairsInfo: []*BindPairsInfo{{InIndex: 0, OutIndex: 1}},
		PackedIndices: []int{1},
		UnpackSizes:   []uint64{1024, 1024},
		UnpackCRC:     0xcafebabe,
	}

	var buf bytes.Buffer
	if err := WriteFolder(&buf, folder); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFolder(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.CoderInfo) != 2 {
		t.Fatalf("got %d coders, want 2", len(got.CoderInfo))
	}
	if len(got.BindPairsInfo) != 1 || got.BindPairsInfo[0].InIndex != 0 || got.BindPairsInfo[0].OutIndex != 1 {
		t.Fatalf("bind pairs = %+v", got.BindPairsInfo)
	}
	if len(got.PackedIndices) != 1 || got.PackedIndices[0] != 1 {
		t.Fatalf("packed indices = %v, want [1]", got.PackedIndices)
	}
	if got.FindBindPairForInStream(0) != 0 {
		t.Fatalf("FindBindPairForInStream(0) = %d, want 0", got.FindBindPairForInStream(0))
	}
	if got.FindBindPairForOutStream(1) != 0 {
		t.Fatalf("FindBindPairForOutStream(1) = %d, want 0", got.FindBindPairForOutStream(1))
	}
	if got.FindBindPairForOutStream(0) != -1 {
		t.Fatalf("FindBindPairForOutStream(0) = %d, want -1 (main output)", got.FindBindPairForOutStream(0))
	}
}
