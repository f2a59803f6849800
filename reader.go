package sevenzip

import (
	"bytes"
	"hash/crc32"
	"io"
	"time"

	"github.com/go7zip/sevenzip/blockgraph"
	"github.com/go7zip/sevenzip/coder"
	"github.com/go7zip/sevenzip/header"
)

func newCRC32() crc32Writer { return crc32.NewIEEE() }

// Entry describes one archived file or directory, the FileInfo plus the
// derived size/CRC spec.md's Archive model exposes per entry.
type Entry struct {
	Name       string
	Attributes uint32
	IsDir      bool
	IsAnti     bool
	ModifiedAt time.Time
	Size       uint64
	HasCRC     bool
	CRC        uint32
}

func (sz *Reader) entryAt(i int) *Entry {
	fi := sz.header.FilesInfo[i]
	isDir := fi.IsEmptyStream && !fi.IsEmptyFile
	return &Entry{
		Name:       fi.Name,
		Attributes: fi.Attrib,
		IsDir:      isDir,
		IsAnti:     fi.IsAntiFile,
		ModifiedAt: fi.ModifiedAt,
		Size:       sz.sm.fileSize[i],
		HasCRC:     sz.sm.fileHasCRC[i],
		CRC:        sz.sm.fileCRC[i],
	}
}

// Entries returns every entry in archive order.
func (sz *Reader) Entries() []*Entry {
	entries := make([]*Entry, len(sz.header.FilesInfo))
	for i := range entries {
		entries[i] = sz.entryAt(i)
	}
	return entries
}

// ForEachEntry calls cb once per file entry in archive order, with an
// io.Reader over its decompressed content (nil for directories and
// zero-length files). Solid blocks are decoded once and streamed through in
// order, so a callback that only wants entry N still pays for decoding
// entries before it in the same block — callers wanting random access to a
// single file should use ReadFile instead.
func (sz *Reader) ForEachEntry(cb func(*Entry, io.Reader) error) error {
	blockReaders := make(map[int]io.Reader)

	for i, fi := range sz.header.FilesInfo {
		entry := sz.entryAt(i)

		if fi.IsEmptyStream {
			if err := cb(entry, nil); err != nil {
				return err
			}
			continue
		}

		b := sz.sm.fileBlockIndex[i]
		br, ok := blockReaders[b]
		if !ok {
			r, err := sz.openBlock(b)
			if err != nil {
				return err
			}
			blockReaders[b] = r
			br = r
		}

		lr := io.LimitReader(br, int64(entry.Size))
		crc := &crcVerifyReader{r: lr, want: entry.CRC, check: entry.HasCRC}
		if err := cb(entry, crc); err != nil {
			return err
		}
		// Drain whatever the callback didn't read so the block cursor
		// lands at the next file's start.
		if _, err := io.Copy(io.Discard, crc); err != nil && err != crc.err {
			return err
		}
		if crc.err != nil {
			return crc.err
		}
	}

	return nil
}

// ReadFile decodes and returns the named entry's content in full.
// Non-solid blocks decode only that entry's block; solid blocks decode from
// the start of the block through the target entry, discarding the rest.
func (sz *Reader) ReadFile(name string) (io.Reader, error) {
	i, ok := sz.byName[name]
	if !ok {
		return nil, &Error{Kind: KindFileNotFound, Detail: name}
	}

	fi := sz.header.FilesInfo[i]
	if fi.IsEmptyStream {
		return bytes.NewReader(nil), nil
	}

	b := sz.sm.fileBlockIndex[i]
	br, err := sz.openBlock(b)
	if err != nil {
		return nil, err
	}

	// Skip every file that precedes i within the same block.
	for j := sz.sm.blockFirstFileIndex[b]; j < i; j++ {
		if sz.header.FilesInfo[j].IsEmptyStream {
			continue
		}
		if _, err := io.CopyN(io.Discard, br, int64(sz.sm.fileSize[j])); err != nil {
			return nil, errIo(sz.header.FilesInfo[j].Name, err)
		}
	}

	entry := sz.entryAt(i)
	lr := io.LimitReader(br, int64(entry.Size))
	data, err := io.ReadAll(&crcVerifyReader{r: lr, want: entry.CRC, check: entry.HasCRC})
	if err != nil {
		return nil, sz.taggedErr(err)
	}
	return bytes.NewReader(data), nil
}

// openBlock builds the decode pipeline for block b's coder graph, from its
// packed streams straight through to the main output reader.
func (sz *Reader) openBlock(b int) (io.Reader, error) {
	si := sz.header.MainStreamsInfo
	folder := si.UnpackInfo.Folders[b]

	packed, err := sz.packedReaders(si, b, folder)
	if err != nil {
		return nil, err
	}

	decOpts := &coder.DecodeOptions{Password: sz.opts.Password(), MaxMemKiB: sz.opts.maxMemKiB}
	if requiresPassword(folder) && decOpts.Password == "" {
		return nil, &Error{Kind: KindPasswordRequired}
	}

	r, err := blockgraph.BuildDecoder(folder, packed, decOpts)
	if err != nil {
		return nil, sz.taggedErr(err)
	}
	return r, nil
}

// requiresPassword reports whether folder contains an AES-256/SHA-256
// coder, i.e. whether decoding it needs a password at all.
func requiresPassword(folder *header.Folder) bool {
	for _, ci := range folder.CoderInfo {
		if uint64(ci.CodecID) == coder.Aes256Sha256 {
			return true
		}
	}
	return false
}

// taggedErr re-tags an I/O error as MaybeBadPassword when a non-empty
// password was used and the error carries no more specific context
// (spec.md §7's MaybeBadPassword rule).
func (sz *Reader) taggedErr(err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	if err == coder.ErrMaxMemoryExceeded {
		return &Error{Kind: KindMaxMemoryExceeded, Err: err}
	}
	if err == coder.ErrPasswordRequired {
		return &Error{Kind: KindPasswordRequired, Err: err}
	}
	if sz.opts.Password() == "" {
		return errIo("", err)
	}
	return &Error{Kind: KindMaybeBadPassword, Err: err}
}

// FileCompressionMethods returns the method IDs applied to name's content,
// in pipeline order (outermost filter first, final compressor last) —
// spec.md's supplemented per-entry compression-method reporting.
func (sz *Reader) FileCompressionMethods(name string) ([]uint64, error) {
	i, ok := sz.byName[name]
	if !ok {
		return nil, &Error{Kind: KindFileNotFound, Detail: name}
	}
	if sz.header.FilesInfo[i].IsEmptyStream {
		return nil, nil
	}

	b := sz.sm.fileBlockIndex[i]
	folder := sz.header.MainStreamsInfo.UnpackInfo.Folders[b]
	return pipelineMethods(folder), nil
}

// pipelineMethods walks folder's bind-pair chain from the main (unbound)
// output back to the packed input, returning coder method IDs from the
// stage nearest the plaintext (first) to the stage nearest the packed data
// (last).
func pipelineMethods(folder *header.Folder) []uint64 {
	total := folder.NumOutStreamsTotal()
	mainOut := 0
	for i := 0; i < total; i++ {
		if folder.FindBindPairForOutStream(i) < 0 {
			mainOut = i
			break
		}
	}

	var methods []uint64
	outIdx := mainOut
	for {
		coderIdx, acc := 0, 0
		for idx, ci := range folder.CoderInfo {
			if outIdx < acc+ci.NumOutStreams {
				coderIdx = idx
				break
			}
			acc += ci.NumOutStreams
		}
		methods = append(methods, uint64(folder.CoderInfo[coderIdx].CodecID))

		firstIn := 0
		for i := 0; i < coderIdx; i++ {
			firstIn += folder.CoderInfo[i].NumInStreams
		}
		ci := folder.CoderInfo[coderIdx]
		if ci.NumInStreams != 1 {
			// BCJ2 or another multi-input coder sits closest to the
			// packed data; it's always the pipeline's final stage.
			break
		}

		bp := folder.FindBindPairForInStream(firstIn)
		if bp < 0 {
			break
		}
		outIdx = folder.BindPairsInfo[bp].OutIndex
	}

	return methods
}

// crcVerifyReader checks a CRC32 over exactly the bytes it streams out,
// surfacing a ChecksumMismatch *Error instead of io.EOF once the wrapped
// reader is exhausted and check is true.
type crcVerifyReader struct {
	r     io.Reader
	crcw  crc32Writer
	want  uint32
	check bool
	done  bool
	err   error
}

func (c *crcVerifyReader) Read(p []byte) (int, error) {
	if c.crcw == nil {
		c.crcw = newCRC32()
	}
	n, err := c.r.Read(p)
	if n > 0 {
		c.crcw.Write(p[:n])
	}
	if err == io.EOF && !c.done {
		c.done = true
		if c.check && c.crcw.Sum32() != c.want {
			c.err = &Error{Kind: KindChecksumMismatch, Section: "file content"}
			return n, c.err
		}
	}
	return n, err
}

type crc32Writer interface {
	Write(p []byte) (int, error)
	Sum32() uint32
}
