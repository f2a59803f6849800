// Package sevenzip implements a 7z container reader and writer: the
// header codec, coder-graph pipeline builder, and PPMd7 entropy coder
// spec.md describes are in the header, blockgraph, ppmd7, filters, and
// coder subpackages; this root package is the archive-level API a caller
// actually uses (spec.md §4.9, §4.10), mirroring the teacher's go7z
// package's OpenReader/NewReader surface.
package sevenzip

import (
	"bufio"
	"bytes"
	"hash/crc32"
	"io"
	"os"

	"github.com/go7zip/sevenzip/blockgraph"
	"github.com/go7zip/sevenzip/coder"
	"github.com/go7zip/sevenzip/header"
)

// headerScanWindow is how far back from EOF the recovery scan (spec.md
// §4.7 Recovery) looks for a Header/EncodedHeader tag.
const headerScanWindow = 1 << 20

// Reader is a 7z archive opened for random-access reading.
type Reader struct {
	ra   io.ReaderAt
	size int64
	opts *ReaderOptions

	header *header.Header
	sm     *streamMap

	byName map[string]int
}

// ReadCloser adds a Close method for archives opened from a file.
type ReadCloser struct {
	f *os.File
	Reader
}

// Close closes the underlying file.
func (rc *ReadCloser) Close() error {
	return rc.f.Close()
}

// OpenReader opens the 7z file named name.
func OpenReader(name string, opts ...ReaderOption) (*ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errIo(name, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errIo(name, err)
	}

	rc := &ReadCloser{f: f}
	if err := rc.Reader.init(f, fi.Size(), opts); err != nil {
		f.Close()
		return nil, err
	}
	return rc, nil
}

// NewReader opens a 7z archive read from r, which must have the given
// total size in bytes.
func NewReader(r io.ReaderAt, size int64, opts ...ReaderOption) (*Reader, error) {
	sz := &Reader{}
	if err := sz.init(r, size, opts); err != nil {
		return nil, err
	}
	return sz, nil
}

func (sz *Reader) init(r io.ReaderAt, size int64, opts []ReaderOption) error {
	sz.ra = r
	sz.size = size
	sz.opts = newReaderOptions(opts)

	sig, err := header.ReadSignatureHeader(io.NewSectionReader(r, 0, size))
	if err != nil {
		if err == header.ErrInvalidSignatureHeader {
			return &Error{Kind: KindBadSignature}
		}
		if err == header.ErrChecksumMismatch {
			return &Error{Kind: KindChecksumMismatch, Section: "signature header"}
		}
		return errIo("signature header", err)
	}
	if sig.ArchiveVersion.Major != 0 {
		return &Error{Kind: KindUnsupportedVersion, Major: sig.ArchiveVersion.Major, Minor: sig.ArchiveVersion.Minor}
	}

	hdrOffset := header.SignatureHeaderSize + sig.StartHeader.NextHeaderOffset
	hdrSize := sig.StartHeader.NextHeaderSize
	hdrCRCKnown := sig.StartHeader.NextHeaderCRC != 0

	if hdrSize == 0 {
		// No header at all: an archive with no entries (spec.md §8
		// boundary 10).
		sz.header = &header.Header{}
		sm, err := buildStreamMap(sz.header)
		if err != nil {
			return err
		}
		sz.sm = sm
		sz.indexByName()
		return nil
	}

	var h *header.Header
	if !hdrCRCKnown {
		h, err = sz.recoverHeader()
		if err != nil {
			return err
		}
	} else {
		h, err = sz.readHeaderAt(hdrOffset, hdrSize, sig.StartHeader.NextHeaderCRC)
		if err != nil {
			return err
		}
	}

	sz.header = h
	sm, err := buildStreamMap(h)
	if err != nil {
		return err
	}
	sz.sm = sm
	sz.indexByName()
	return nil
}

// readHeaderAt reads and CRC-verifies next_header_size bytes at offset,
// unwrapping one level of EncodedHeader if present (spec.md §4.7).
func (sz *Reader) readHeaderAt(offset, size int64, wantCRC uint32) (*header.Header, error) {
	section := io.NewSectionReader(sz.ra, offset, size)
	crc := crc32.NewIEEE()
	tee := io.TeeReader(bufio.NewReader(section), crc)
	lr := &io.LimitedReader{R: tee, N: size}

	h, encoded, err := header.ReadPackedStreamsForHeaders(lr)
	if err != nil {
		return nil, errIo("header", err)
	}
	if crc.Sum32() != wantCRC {
		return nil, &Error{Kind: KindChecksumMismatch, Section: "header"}
	}

	if encoded == nil {
		if h == nil {
			return nil, errUnsupported("empty header")
		}
		return h, nil
	}

	decoded, err := sz.decodeEncodedHeader(encoded)
	if err != nil {
		return nil, err
	}
	inner, _, err := header.ReadPackedStreamsForHeaders(&io.LimitedReader{R: bytes.NewReader(decoded), N: int64(len(decoded))})
	if err != nil {
		return nil, errIo("encoded header", err)
	}
	if inner == nil {
		return nil, errUnsupported("encoded header did not contain a Header")
	}
	return inner, nil
}

// decodeEncodedHeader decodes the single block an EncodedHeader's
// StreamsInfo describes (spec.md §4.7).
func (sz *Reader) decodeEncodedHeader(si *header.StreamsInfo) ([]byte, error) {
	if len(si.UnpackInfo.Folders) != 1 {
		return nil, errUnsupported("encoded header with more than one block")
	}
	folder := si.UnpackInfo.Folders[0]

	packed, err := packedReadersForFolder(sz.ra, si, 0)
	if err != nil {
		return nil, err
	}

	decOpts := &coder.DecodeOptions{Password: sz.opts.Password(), MaxMemKiB: sz.opts.maxMemKiB}
	r, err := blockgraph.BuildDecoder(folder, packed, decOpts)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// recoverHeader implements spec.md §4.7's end-of-file scan: when the start
// header's CRC slot is zero, search backward from EOF (up to
// headerScanWindow bytes) for a Header or EncodedHeader tag and try
// parsing from there.
func (sz *Reader) recoverHeader() (*header.Header, error) {
	start := sz.size - headerScanWindow
	if start < header.SignatureHeaderSize {
		start = header.SignatureHeaderSize
	}

	window := sz.size - start
	buf := make([]byte, window)
	if _, err := sz.ra.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, errIo("header scan", err)
	}

	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] != 0x01 && buf[i] != 0x17 {
			continue
		}

		offset := start + int64(i)
		size := sz.size - offset
		lr := &io.LimitedReader{R: io.NewSectionReader(sz.ra, offset, size), N: size}

		h, encoded, err := header.ReadPackedStreamsForHeaders(lr)
		if err != nil {
			continue
		}
		if encoded != nil {
			decoded, derr := sz.decodeEncodedHeader(encoded)
			if derr != nil {
				continue
			}
			inner, _, ierr := header.ReadPackedStreamsForHeaders(&io.LimitedReader{R: bytes.NewReader(decoded), N: int64(len(decoded))})
			if ierr != nil || inner == nil {
				continue
			}
			return inner, nil
		}
		if h != nil {
			return h, nil
		}
	}

	return nil, errUnsupported("no recoverable header found")
}

func (sz *Reader) indexByName() {
	sz.byName = make(map[string]int, len(sz.header.FilesInfo))
	for i, fi := range sz.header.FilesInfo {
		sz.byName[fi.Name] = i
	}
}

// packedReaders builds one bounded io.Reader per folder.PackedIndices
// entry for block blockIndex, each an independent io.SectionReader over
// the shared archive ReaderAt (spec.md §9's "shared interior-mutable
// cursor", which Go's io.SectionReader gives us for free since each
// section keeps its own cursor). It uses the precomputed streamMap, so it
// must only be called once sz.sm has been built.
func (sz *Reader) packedReaders(si *header.StreamsInfo, blockIndex int, folder *header.Folder) ([]io.Reader, error) {
	first := sz.sm.blockFirstPackStreamIndex[blockIndex]
	numPacked := len(folder.PackedIndices)
	if numPacked == 0 {
		numPacked = 1
	}

	base := header.SignatureHeaderSize + int64(si.PackInfo.PackPos)
	readers := make([]io.Reader, numPacked)
	for j := 0; j < numPacked; j++ {
		idx := first + j
		off := base + sz.sm.packStreamOffsets[idx]
		readers[j] = io.NewSectionReader(sz.ra, off, int64(si.PackInfo.PackSizes[idx]))
	}
	return readers, nil
}

// packedReadersForFolder is packedReaders' streamMap-free counterpart,
// used while decoding the EncodedHeader itself (before sz.sm exists): it
// derives each pack-stream's offset by summing the pack-stream counts and
// sizes of every folder before folderIndex in si, directly from si.
func packedReadersForFolder(ra io.ReaderAt, si *header.StreamsInfo, folderIndex int) ([]io.Reader, error) {
	packIdx := 0
	for _, f := range si.UnpackInfo.Folders[:folderIndex] {
		n := len(f.PackedIndices)
		if n == 0 {
			n = 1
		}
		packIdx += n
	}

	folder := si.UnpackInfo.Folders[folderIndex]
	numPacked := len(folder.PackedIndices)
	if numPacked == 0 {
		numPacked = 1
	}

	var offset int64
	for i := 0; i < packIdx; i++ {
		offset += int64(si.PackInfo.PackSizes[i])
	}

	base := header.SignatureHeaderSize + int64(si.PackInfo.PackPos)
	readers := make([]io.Reader, numPacked)
	for j := 0; j < numPacked; j++ {
		idx := packIdx + j
		readers[j] = io.NewSectionReader(ra, base+offset, int64(si.PackInfo.PackSizes[idx]))
		offset += int64(si.PackInfo.PackSizes[idx])
	}
	return readers, nil
}
