// Package coder maps 7z coder method IDs to decoder/encoder factories. It is
// the registry named in spec.md §4.5/§6.3: every compression method,
// reversible byte filter, and the AES-256/SHA-256 cipher lives behind the
// same two factory shapes here, so the block pipeline builder (package
// blockgraph) never needs to know the concrete codec it is wiring up.
package coder

import (
	"errors"
	"io"
)

// Method IDs, matching spec.md §6.1's byte sequences packed big-endian into
// a uint32 (the same packing header.CoderInfo.CodecID uses).
const (
	Copy    = 0x00
	Delta   = 0x03
	Lzma    = 0x030101
	Lzma2   = 0x21
	Ppmd    = 0x030401
	Bcj2    = 0x0303011B
	BcjX86  = 0x03030103
	BcjArm  = 0x03030501
	BcjArm64 = 0x0A
	// BcjRiscV follows the single-byte BCJ-Arm64 allocation scheme 7-Zip
	// adopted for its post-24.xx architectures; not in spec.md's explicit
	// byte table.
	BcjRiscV      = 0x0B
	BcjThumb      = 0x03030701
	BcjPpc        = 0x03030205
	BcjIa64       = 0x03030401
	BcjSparc      = 0x03030805
	Bzip2         = 0x040202
	Deflate       = 0x040108
	Zstd          = 0x04F71101
	Brotli        = 0x04F71102
	Lz4           = 0x04F71104
	Aes256Sha256  = 0x06F10701
)

var (
	// ErrNotSupported is returned when a coder is invoked with a stream
	// shape it doesn't understand (wrong input/output count).
	ErrNotSupported = errors.New("coder: not supported")

	// ErrMethodNotFound names the case of a method ID with no registered
	// decompressor/compressor. No function in this module returns it:
	// LookupDecompressor and LookupCompressor report that case as nil, and
	// blockgraph turns a nil lookup into blockgraph.ErrUnsupported.
	ErrMethodNotFound = errors.New("coder: method not registered")

	// ErrPasswordRequired is returned by AES when no password was supplied.
	ErrPasswordRequired = errors.New("coder: password required")

	// ErrMaxMemoryExceeded is returned when a coder's declared properties
	// would need more memory than the caller's budget allows.
	ErrMaxMemoryExceeded = errors.New("coder: memory limit exceeded")
)

// DecodeOptions carries the out-of-band parameters a decoder factory needs
// beyond the stream and its properties (spec.md §6.3).
type DecodeOptions struct {
	// Password, if non-empty, is used by AES-256/SHA-256.
	Password string

	// MaxMemKiB bounds the memory a single coder instance may allocate.
	// Zero means unlimited. Enforced by Ppmd and Lzma2 (spec.md's
	// MaxMemLimited supplement).
	MaxMemKiB uint64

	// ThreadHint suggests a worker-thread count to multi-threaded
	// delegated codecs (0 or 1 mean single-threaded). No decoder in this
	// package reads it: the LZMA2 wiring is single-threaded because the
	// vendored decoder has no MT mode.
	ThreadHint int
}

// Decompressor builds a decoder for one coder instance. inputs holds one
// io.Reader per input stream, in coder input-stream order (BCJ2 supplies
// four; everything else supplies one).
type Decompressor func(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error)

// CoderConfig carries per-coder encode-time options (spec.md's supplemented
// "separate encode options per coder"). Only the fields relevant to a given
// method are read; the rest are ignored.
type CoderConfig struct {
	// Delta distance, 1..256.
	DeltaDistance int

	// Lzma2/Lzma dictionary size in bytes. Zero selects the codec's default.
	DictSize uint32

	// Ppmd order and memory size in bytes.
	PpmdOrder   int
	PpmdMemSize uint32

	// Deflate/Bzip2/Zstd/Lz4 compression level. Zero selects the
	// codec's default.
	Level int

	// AES-256/SHA-256.
	Password        string
	NumCyclesPower  int
	Salt, IV         []byte
}

// Compressor builds an encoder for one coder instance, writing its encoded
// output to w. The returned io.WriteCloser's Close must flush any internal
// buffers and emit trailer bytes (spec.md §6.3's "flush+finish contract");
// it must not close w.
type Compressor func(w io.Writer, cfg CoderConfig) (io.WriteCloser, error)

// Properties returns the wire-format property bytes (spec.md §4.5) for cfg
// under method id.
func Properties(method uint64, cfg CoderConfig) ([]byte, error) {
	switch method {
	case Delta:
		return deltaProperties(cfg), nil
	case Lzma:
		return lzmaProperties(cfg), nil
	case Lzma2:
		return lzma2Properties(cfg), nil
	case Ppmd:
		return ppmdProperties(cfg), nil
	case Aes256Sha256:
		return aesProperties(cfg), nil
	default:
		return nil, nil
	}
}
