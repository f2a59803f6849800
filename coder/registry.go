package coder

import "sync"

var (
	decompressors sync.Map // map[uint64]Decompressor
	compressors   sync.Map // map[uint64]Compressor
)

// RegisterDecompressor registers a decoder factory for method. It panics on
// a duplicate registration, matching the teacher's register.go.
func RegisterDecompressor(method uint64, d Decompressor) {
	if _, dup := decompressors.LoadOrStore(method, d); dup {
		panic("coder: decompressor already registered")
	}
}

// RegisterCompressor registers an encoder factory for method.
func RegisterCompressor(method uint64, c Compressor) {
	if _, dup := compressors.LoadOrStore(method, c); dup {
		panic("coder: compressor already registered")
	}
}

// LookupDecompressor returns the decoder factory registered for method, or
// nil if none was registered.
func LookupDecompressor(method uint64) Decompressor {
	v, ok := decompressors.Load(method)
	if !ok {
		return nil
	}
	return v.(Decompressor)
}

// LookupCompressor returns the encoder factory registered for method, or
// nil if none was registered.
func LookupCompressor(method uint64) Compressor {
	v, ok := compressors.Load(method)
	if !ok {
		return nil
	}
	return v.(Compressor)
}
