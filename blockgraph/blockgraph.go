// Package blockgraph composes a block's coder DAG into a single decode (or
// encode) pipeline, per spec.md §4.6 and §9 "Multi-input coder graph". A
// block ("folder" on the wire) wires coder output streams to coder input
// streams via bind pairs; this package walks that wiring to build a chain
// of io.Readers for the scalar case, or a tree of them for the BCJ2
// multi-input case, without needing a dedicated binder type: Go's
// recursion plus io.SectionReader's independent read cursors over a shared
// io.ReaderAt already give us what the original implementation needed
// Rc<RefCell<>> for.
package blockgraph

import (
	"errors"
	"hash/crc32"
	"io"

	"github.com/go7zip/sevenzip/coder"
	"github.com/go7zip/sevenzip/header"
)

var (
	// ErrUnsupported is returned when a folder's coder graph shape isn't
	// one blockgraph knows how to resolve (more outputs than one per
	// coder, a cycle, or a dangling bind pair).
	ErrUnsupported = errors.New("blockgraph: unsupported coder graph")

	// ErrChecksumMismatch is returned by the decoded reader's final Read
	// when the block declares a CRC and the decoded bytes don't match it.
	ErrChecksumMismatch = errors.New("blockgraph: checksum mismatch")
)

// BuildDecoder resolves folder's coder graph into a single io.Reader
// producing its main (unbound) output stream, decompressed in full. packed
// supplies one reader per folder.PackedIndices entry, in that order,
// already bounded to each pack stream's compressed size.
func BuildDecoder(folder *header.Folder, packed []io.Reader, opts *coder.DecodeOptions) (io.Reader, error) {
	if len(folder.PackedIndices) != len(packed) {
		return nil, ErrUnsupported
	}

	b := &decodeBuilder{folder: folder, opts: opts}
	b.packedByInIndex = make(map[int]io.Reader, len(packed))
	for i, idx := range folder.PackedIndices {
		b.packedByInIndex[idx] = packed[i]
	}

	mainOut, err := b.mainOutputIndex()
	if err != nil {
		return nil, err
	}

	r, err := b.resolveOutput(mainOut)
	if err != nil {
		return nil, err
	}

	r = io.LimitReader(r, int64(folder.UnpackSize()))
	if folder.UnpackCRC != 0 {
		r = &crcReader{r: r, want: folder.UnpackCRC, crc: crc32.NewIEEE()}
	}
	return r, nil
}

type decodeBuilder struct {
	folder          *header.Folder
	opts            *coder.DecodeOptions
	packedByInIndex map[int]io.Reader

	// outputs caches a resolved coder's output reader by its global
	// output-stream index, so a coder with multiple consumers (not used
	// by any coder in spec.md's table today, but cheap to support) is
	// only ever decoded once.
	outputs map[int]io.Reader
}

// coderRange returns the [firstIn, firstOut) global stream index ranges a
// coder occupies, by summing the stream counts of every coder before it.
func (b *decodeBuilder) coderRange(coderIndex int) (firstIn, firstOut int) {
	for i := 0; i < coderIndex; i++ {
		firstIn += b.folder.CoderInfo[i].NumInStreams
		firstOut += b.folder.CoderInfo[i].NumOutStreams
	}
	return firstIn, firstOut
}

// mainOutputIndex returns the global output-stream index with no outgoing
// bind pair — the block's primary output (spec.md §3 invariant).
func (b *decodeBuilder) mainOutputIndex() (int, error) {
	total := b.folder.NumOutStreamsTotal()
	for i := 0; i < total; i++ {
		if b.folder.FindBindPairForOutStream(i) < 0 {
			return i, nil
		}
	}
	return 0, ErrUnsupported
}

// coderForOutput finds which coder (and local output offset) owns a global
// output-stream index.
func (b *decodeBuilder) coderForOutput(outIndex int) (coderIdx int, err error) {
	acc := 0
	for i, ci := range b.folder.CoderInfo {
		if outIndex < acc+ci.NumOutStreams {
			return i, nil
		}
		acc += ci.NumOutStreams
	}
	return 0, ErrUnsupported
}

// resolveOutput builds (or returns the cached) decoded reader for the
// coder producing global output-stream index outIndex.
func (b *decodeBuilder) resolveOutput(outIndex int) (io.Reader, error) {
	if b.outputs == nil {
		b.outputs = make(map[int]io.Reader)
	}
	if r, ok := b.outputs[outIndex]; ok {
		if r == nil {
			// Still being resolved further up the call chain: a cycle.
			return nil, ErrUnsupported
		}
		return r, nil
	}
	b.outputs[outIndex] = nil

	coderIdx, err := b.coderForOutput(outIndex)
	if err != nil {
		return nil, err
	}
	ci := b.folder.CoderInfo[coderIdx]
	if ci.NumOutStreams != 1 {
		return nil, ErrUnsupported
	}

	firstIn, _ := b.coderRange(coderIdx)
	inputs := make([]io.Reader, ci.NumInStreams)
	for i := 0; i < ci.NumInStreams; i++ {
		in, err := b.resolveInput(firstIn + i)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}

	dec := coder.LookupDecompressor(uint64(ci.CodecID))
	if dec == nil {
		return nil, ErrUnsupported
	}

	r, err := dec(inputs, ci.Properties, b.folder.UnpackSizes[outIndex], b.opts)
	if err != nil {
		return nil, err
	}

	b.outputs[outIndex] = r
	return r, nil
}

// resolveInput resolves global input-stream index inIndex: either a leaf
// (a packed stream read straight from the archive) or the output of
// another coder reached by following a bind pair.
func (b *decodeBuilder) resolveInput(inIndex int) (io.Reader, error) {
	if r, ok := b.packedByInIndex[inIndex]; ok {
		return r, nil
	}

	bp := b.folder.FindBindPairForInStream(inIndex)
	if bp < 0 {
		return nil, ErrUnsupported
	}

	return b.resolveOutput(b.folder.BindPairsInfo[bp].OutIndex)
}

// crcReader verifies a CRC32 over everything read once the wrapped reader
// is exhausted, surfacing ErrChecksumMismatch instead of io.EOF on mismatch.
type crcReader struct {
	r    io.Reader
	crc  crc32Hash
	want uint32
	done bool
}

type crc32Hash interface {
	Write(p []byte) (int, error)
	Sum32() uint32
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc.Write(p[:n])
	}
	if err == io.EOF && !c.done {
		c.done = true
		if c.crc.Sum32() != c.want {
			return n, ErrChecksumMismatch
		}
	}
	return n, err
}
