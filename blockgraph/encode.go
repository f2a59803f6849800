package blockgraph

import (
	"hash/crc32"
	"io"

	"github.com/go7zip/sevenzip/coder"
	"github.com/go7zip/sevenzip/header"
)

// ChainStage describes one coder in an encode chain, outermost (applied to
// the original bytes) first. A typical content-methods list is a single
// Lzma2 stage, or [Delta, Lzma2] / [BcjX86, Lzma2] when a reversible byte
// filter precedes compression.
type ChainStage struct {
	Method uint64
	Config coder.CoderConfig
}

// EncodedChain is a live scalar encode pipeline built by BuildEncoderChain.
// Callers write the original (pre-filter, pre-compression) bytes to
// Writer, then call Close, then Folder to retrieve the wire metadata.
type EncodedChain struct {
	Writer  io.Writer
	writers []io.WriteCloser
	counts  []*countingWriter
	stages  []ChainStage
	props   [][]byte
}

// BuildEncoderChain builds a scalar (non-BCJ2) encode pipeline for stages,
// writing the final compressed bytes to sink. Only Compressor factories
// registered for each stage's Method are used; a stage whose method has no
// registered compressor (Brotli, BCJ2 — spec.md §9) fails with
// ErrUnsupported before any bytes are written.
func BuildEncoderChain(sink io.Writer, stages []ChainStage) (*EncodedChain, error) {
	n := len(stages)
	if n == 0 {
		return nil, ErrUnsupported
	}

	props := make([][]byte, n)
	for i, st := range stages {
		p, err := coder.Properties(st.Method, st.Config)
		if err != nil {
			return nil, err
		}
		props[i] = p
	}

	writers := make([]io.WriteCloser, n)
	counts := make([]*countingWriter, n)

	var downstream io.Writer = sink
	for i := n - 1; i >= 0; i-- {
		enc := coder.LookupCompressor(stages[i].Method)
		if enc == nil {
			return nil, ErrUnsupported
		}
		wc, err := enc(downstream, stages[i].Config)
		if err != nil {
			return nil, err
		}
		writers[i] = wc

		cw := &countingWriter{w: wc}
		counts[i] = cw
		downstream = cw
	}

	return &EncodedChain{
		Writer:  downstream,
		writers: writers,
		counts:  counts,
		stages:  stages,
		props:   props,
	}, nil
}

// Close flushes every stage in data-flow order (outermost/filter stages
// first, so their trailing bytes reach the compressor before it flushes
// its own trailer).
func (ec *EncodedChain) Close() error {
	for _, w := range ec.writers {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Folder builds the wire-format Folder describing this chain, after Close
// has been called. unpackCRC is the CRC32 of the bytes written to Writer
// (the caller computes it, e.g. via an io.MultiWriter(chain.Writer, crc)).
func (ec *EncodedChain) Folder(unpackCRC uint32) *header.Folder {
	n := len(ec.stages)
	folder := &header.Folder{
		CoderInfo:     make([]*header.CoderInfo, n),
		BindPairsInfo: make([]*header.BindPairsInfo, 0, n-1),
		PackedIndices: []int{n - 1},
		UnpackSizes:   make([]uint64, n),
		UnpackCRC:     unpackCRC,
	}

	for i := 0; i < n; i++ {
		folder.CoderInfo[i] = &header.CoderInfo{
			CodecID:       uint32(ec.stages[i].Method),
			Properties:    ec.props[i],
			NumInStreams:  1,
			NumOutStreams: 1,
		}
		folder.UnpackSizes[i] = uint64(ec.counts[i].n)
	}

	for i := 1; i < n; i++ {
		folder.BindPairsInfo = append(folder.BindPairsInfo, &header.BindPairsInfo{
			InIndex:  i - 1,
			OutIndex: i,
		})
	}

	return folder
}

// countingWriter counts bytes written through it and forwards them
// unmodified downstream.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// CRC32Writer is a convenience io.Writer that forwards to W while updating
// a running CRC32, for callers computing a block's UnpackCRC as they feed
// an EncodedChain.
type CRC32Writer struct {
	W   io.Writer
	crc uint32hasher
}

// NewCRC32Writer wraps w with a running CRC32-IEEE accumulator.
func NewCRC32Writer(w io.Writer) *CRC32Writer {
	return &CRC32Writer{W: w, crc: crc32.NewIEEE()}
}

func (c *CRC32Writer) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.crc.Write(p[:n])
	return n, err
}

// Sum32 returns the CRC32 of every byte written so far.
func (c *CRC32Writer) Sum32() uint32 { return c.crc.Sum32() }

type uint32hasher interface {
	Write(p []byte) (int, error)
	Sum32() uint32
}
