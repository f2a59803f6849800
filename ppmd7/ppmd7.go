// Package ppmd7 implements the PPMd variant H (PPMd7) order-N statistical
// compressor used by 7z's 0x030401 coder, including the 7z-flavour range
// coder it is specified against. Unlike LZMA's byte-oriented window, PPMd7
// predicts each byte from an adaptive context-tree model built over
// previously seen bytes, escaping to shorter contexts when a symbol hasn't
// been seen at the current order.
//
// The model and its arena allocator are unexported; Decoder and Encoder are
// the package's only public surface, matching how 7z coders are normally
// consumed as plain io.Reader/io.Writer values.
package ppmd7

import "errors"

var (
	errInvalidOrder   = errors.New("ppmd7: order out of range")
	errInvalidMemSize = errors.New("ppmd7: memory size out of range")

	// ErrDecodeData is returned when the range-coded stream is inconsistent
	// with the model state it was decoded against (corrupt input, or a
	// stream produced with different order/memory parameters).
	ErrDecodeData = errors.New("ppmd7: decode data error")

	// ErrEncodeSymbol is returned if the model's suffix chain is exhausted
	// without finding an escape target, which should not happen for any
	// byte value 0-255 since the root context always holds all 256
	// symbols; its presence here guards against a corrupted model rather
	// than signalling an expected runtime condition.
	ErrEncodeSymbol = errors.New("ppmd7: no context found for symbol")
)
