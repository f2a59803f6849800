package header

import (
	"bytes"
	"testing"
)

func twoStageFolder(unpackCRC uint32) *Folder {
	return &Folder{
		CoderInfo: []*CoderInfo{
			{CodecID: 0x21, NumInStreams: 1, NumOutStreams: 1, Properties: []byte{0x18}},
		},
		PackedIndices: []int{0},
		UnpackSizes:   []uint64{3000},
		UnpackCRC:     unpackCRC,
	}
}

func TestStreamsInfoRoundTripSingleSubstreamPerFolder(t *testing.T) {
	si := &StreamsInfo{
		PackInfo: &PackInfo{
			PackPos:   0,
			PackSizes: []uint64{100, 200},
		},
		UnpackInfo: &UnpackInfo{
			Folders: []*Folder{twoStageFolder(0x11111111), twoStageFolder(0x22222222)},
		},
	}

	var buf bytes.Buffer
	if err := WriteStreamsInfo(&buf, si); err != nil {
		t.Fatal(err)
	}

	got, err := ReadStreamsInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.UnpackInfo.Folders) != 2 {
		t.Fatalf("got %d folders, want 2", len(got.UnpackInfo.Folders))
	}
	if got.UnpackInfo.Folders[0].UnpackCRC != 0x11111111 {
		t.Fatalf("folder 0 CRC = %#x", got.UnpackInfo.Folders[0].UnpackCRC)
	}
	if got.UnpackInfo.Folders[1].UnpackCRC != 0x22222222 {
		t.Fatalf("folder 1 CRC = %#x", got.UnpackInfo.Folders[1].UnpackCRC)
	}
}

func TestStreamsInfoRoundTripSolidFolderSubstreams(t *testing.T) {
	// One solid folder containing 3 substreams: explicit sizes for the first
	// two, the third derived from folder.UnpackSize() minus their sum, and a
	// digest array because NumUnpackStreamsInFolders[0] > 1.
	folder := twoStageFolder(0)
	folder.UnpackSizes = []uint64{600}

	si := &StreamsInfo{
		PackInfo: &PackInfo{PackPos: 0, PackSizes: []uint64{550}},
		UnpackInfo: &UnpackInfo{
			Folders: []*Folder{folder},
		},
		SubStreamsInfo: &SubStreamsInfo{
			NumUnpackStreamsInFolders: []int{3},
			UnpackSizes:               []uint64{100, 200, 300},
			Digests:                   []uint32{0xaaaa, 0xbbbb, 0xcccc},
		},
	}

	var buf bytes.Buffer
	if err := WriteStreamsInfo(&buf, si); err != nil {
		t.Fatal(err)
	}

	got, err := ReadStreamsInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.SubStreamsInfo == nil {
		t.Fatal("SubStreamsInfo is nil")
	}
	want := []uint64{100, 200, 300}
	for i, w := range want {
		if got.SubStreamsInfo.UnpackSizes[i] != w {
			t.Fatalf("substream size %d = %d, want %d", i, got.SubStreamsInfo.UnpackSizes[i], w)
		}
	}
	for i, w := range []uint32{0xaaaa, 0xbbbb, 0xcccc} {
		if got.SubStreamsInfo.Digests[i] != w {
			t.Fatalf("digest %d = %#x, want %#x", i, got.SubStreamsInfo.Digests[i], w)
		}
	}
}
