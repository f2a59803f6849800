package sevenzip

import "github.com/go7zip/sevenzip/header"

// streamMap is the precomputed cross-index spec.md §3 describes: it lets
// the reader jump straight from a file index or block index to the byte
// offsets and substream slots it needs, without re-walking FilesInfo or
// SubStreamsInfo on every lookup.
type streamMap struct {
	blockFirstPackStreamIndex []int
	packStreamOffsets         []int64 // offset from the start of the pack region

	blockFirstFileIndex []int // first file index produced by each block
	fileBlockIndex      []int // block producing file i, or -1 if it has no stream

	fileSize   []uint64
	fileHasCRC []bool
	fileCRC    []uint32
}

// buildStreamMap derives a streamMap from a parsed Header. It enforces
// spec.md §8's quantified invariant 7: sum(num_unpack_sub_streams) ==
// count(files with has_stream).
func buildStreamMap(h *header.Header) (*streamMap, error) {
	files := h.FilesInfo
	sm := &streamMap{
		fileBlockIndex: make([]int, len(files)),
		fileSize:       make([]uint64, len(files)),
		fileHasCRC:     make([]bool, len(files)),
		fileCRC:        make([]uint32, len(files)),
	}
	for i := range sm.fileBlockIndex {
		sm.fileBlockIndex[i] = -1
	}

	si := h.MainStreamsInfo
	if si == nil {
		return sm, nil
	}

	var offset int64
	sm.packStreamOffsets = make([]int64, len(si.PackInfo.PackSizes))
	for i, sz := range si.PackInfo.PackSizes {
		sm.packStreamOffsets[i] = offset
		offset += int64(sz)
	}

	folders := si.UnpackInfo.Folders
	sm.blockFirstPackStreamIndex = make([]int, len(folders))
	sm.blockFirstFileIndex = make([]int, len(folders))

	var subSizes []uint64
	var subCRCs []uint32
	var numSub []int
	if si.SubStreamsInfo != nil {
		subSizes = si.SubStreamsInfo.UnpackSizes
		subCRCs = si.SubStreamsInfo.Digests
		numSub = si.SubStreamsInfo.NumUnpackStreamsInFolders
	}

	fileIdx := 0
	nextStreamFile := func() int {
		for fileIdx < len(files) {
			i := fileIdx
			fileIdx++
			if !files[i].IsEmptyStream {
				return i
			}
		}
		return -1
	}

	packIdx := 0
	subPos := 0  // cursor into subSizes
	digestIdx := 0 // cursor into subCRCs (not 1:1 with substreams, see header.ReadSubStreamsInfo)

	for b, folder := range folders {
		sm.blockFirstPackStreamIndex[b] = packIdx
		numPacked := len(folder.PackedIndices)
		if numPacked == 0 {
			numPacked = 1
		}
		packIdx += numPacked

		n := 1
		if numSub != nil {
			n = numSub[b]
		}
		needsDigests := n > 1 || folder.UnpackCRC == 0

		sm.blockFirstFileIndex[b] = -1
		for k := 0; k < n; k++ {
			fi := nextStreamFile()
			if fi < 0 {
				return nil, errOther("substream count exceeds the number of files with a stream")
			}
			if sm.blockFirstFileIndex[b] < 0 {
				sm.blockFirstFileIndex[b] = fi
			}
			sm.fileBlockIndex[fi] = b

			if subSizes != nil {
				sm.fileSize[fi] = subSizes[subPos]
				subPos++
			} else {
				sm.fileSize[fi] = folder.UnpackSize()
			}

			if needsDigests {
				if subCRCs != nil && digestIdx < len(subCRCs) && subCRCs[digestIdx] != 0 {
					sm.fileHasCRC[fi] = true
					sm.fileCRC[fi] = subCRCs[digestIdx]
				}
				digestIdx++
			} else if folder.UnpackCRC != 0 {
				sm.fileHasCRC[fi] = true
				sm.fileCRC[fi] = folder.UnpackCRC
			}
		}
	}
	if nextStreamFile() >= 0 {
		return nil, errOther("fewer substreams than files with a stream")
	}

	return sm, nil
}
