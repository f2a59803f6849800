package coder

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"encoding/binary"
	"io"

	"github.com/dsnet/compress/brotli"
	dsnetbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"

	"github.com/go7zip/sevenzip/filters"
	"github.com/go7zip/sevenzip/ppmd7"
)

func init() {
	RegisterDecompressor(Copy, copyDecoder)
	RegisterCompressor(Copy, copyEncoder)

	RegisterDecompressor(Delta, deltaDecoder)
	RegisterCompressor(Delta, deltaEncoder)

	RegisterDecompressor(Lzma, lzmaDecoder)
	RegisterCompressor(Lzma, lzmaEncoder)

	RegisterDecompressor(Lzma2, lzma2Decoder)
	RegisterCompressor(Lzma2, lzma2Encoder)

	RegisterDecompressor(Ppmd, ppmdDecoder)
	RegisterCompressor(Ppmd, ppmdEncoder)

	RegisterDecompressor(Deflate, deflateDecoder)
	RegisterCompressor(Deflate, deflateEncoder)

	RegisterDecompressor(Bzip2, bzip2Decoder)
	RegisterCompressor(Bzip2, bzip2Encoder)

	RegisterDecompressor(Zstd, zstdDecoder)
	RegisterCompressor(Zstd, zstdEncoder)

	// Brotli: decode only. github.com/dsnet/compress/brotli (the only
	// Brotli implementation in the retrieval pack) ships a decoder but no
	// encoder; no other pack library brings one either, so the write side
	// is left unregistered (Writer push of a Brotli-configured entry fails
	// with blockgraph.ErrUnsupported, which BuildEncoderChain returns when
	// LookupCompressor finds no compressor).
	RegisterDecompressor(Brotli, brotliDecoder)

	RegisterDecompressor(Lz4, lz4Decoder)
	RegisterCompressor(Lz4, lz4Encoder)

	RegisterDecompressor(Aes256Sha256, aesDecoder)
	RegisterCompressor(Aes256Sha256, aesEncoder)

	// BCJ2 decoding only (spec.md §9: "BCJ2 encoding is not implemented").
	RegisterDecompressor(Bcj2, bcj2Decoder)

	registerBCJ(BcjX86, filters.NewBCJX86Reader, filters.NewBCJX86Writer)
	registerBCJ(BcjArm, filters.NewBCJARMReader, filters.NewBCJARMWriter)
	registerBCJ(BcjArm64, filters.NewBCJARM64Reader, filters.NewBCJARM64Writer)
	registerBCJ(BcjRiscV, filters.NewBCJRISCVReader, filters.NewBCJRISCVWriter)
	registerBCJ(BcjThumb, filters.NewBCJARMThumbReader, filters.NewBCJARMThumbWriter)
	registerBCJ(BcjPpc, filters.NewBCJPPCReader, filters.NewBCJPPCWriter)
	registerBCJ(BcjIa64, filters.NewBCJIA64Reader, filters.NewBCJIA64Writer)
	registerBCJ(BcjSparc, filters.NewBCJSPARCReader, filters.NewBCJSPARCWriter)
}

func registerBCJ(method uint64, newReader func(io.Reader) io.Reader, newWriter func(io.Writer) io.WriteCloser) {
	RegisterDecompressor(method, func(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
		if len(inputs) != 1 {
			return nil, ErrNotSupported
		}
		return newReader(inputs[0]), nil
	})
	RegisterCompressor(method, func(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
		return newWriter(w), nil
	})
}

func copyDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	return inputs[0], nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func copyEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func deltaDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	distance, err := deltaDistance(properties)
	if err != nil {
		return nil, err
	}
	return filters.NewDeltaDecoder(inputs[0], uint(distance), int64(unpackSize))
}

func deltaEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	distance := cfg.DeltaDistance
	if distance <= 0 {
		distance = 1
	}
	return &nopCloseWriter{w: filters.NewDeltaEncoder(w, uint(distance))}, nil
}

// nopCloseWriter adapts an io.Writer without its own Close into the
// io.WriteCloser shape Compressor requires, matching the teacher's
// AESEncrypter/DeltaEncoder split between buffering writers (which need
// Close) and stateless ones (which don't).
type nopCloseWriter struct{ w interface{ Write([]byte) (int, error) } }

func (n *nopCloseWriter) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n *nopCloseWriter) Close() error                { return nil }

func lzmaDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	// ulikunitz/xz/lzma's classic Reader expects the 13-byte .lzma header
	// (5 property bytes + 8-byte uncompressed size); 7z carries the first
	// 5 out of band in the coder's properties and the size in UnpackSizes,
	// so we splice a synthetic header in front of the packed stream,
	// exactly as the teacher's register.go does.
	header := bytes.NewBuffer(append([]byte{}, properties...))
	binary.Write(header, binary.LittleEndian, unpackSize)
	return lzma.NewReader(io.MultiReader(header, inputs[0]))
}

func lzmaEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	// lzma.Writer always emits the 13-byte header itself (5 property bytes
	// plus an 8-byte size); 7z keeps the 5 property bytes in the folder's
	// coder properties and takes the size from UnpackSizes, so the encoder
	// drops all 13 header bytes from the wire by writing through a
	// header-stripping shim.
	var cfgw lzma.WriterConfig
	if cfg.DictSize != 0 {
		cfgw.DictCap = int(cfg.DictSize)
	}
	lw, err := cfgw.NewWriter(&headerStripWriter{w: w, strip: 13})
	if err != nil {
		return nil, err
	}
	return lw, nil
}

// headerStripWriter discards the first n bytes written to it (the
// classic-LZMA header ulikunitz/xz always emits), forwarding the rest to w.
// 7z stores the 5-byte coder properties separately and has no room for the
// library's extra 8-byte uncompressed-size field, so the properties are
// regenerated by Properties() instead of round-tripped through the stream.
type headerStripWriter struct {
	w     io.Writer
	strip int
}

func (h *headerStripWriter) Write(p []byte) (int, error) {
	total := len(p)
	if h.strip > 0 {
		if h.strip >= len(p) {
			h.strip -= len(p)
			return total, nil
		}
		p = p[h.strip:]
		h.strip = 0
	}
	_, err := h.w.Write(p)
	return total, err
}

func lzma2Decoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	if len(properties) > 0 && opts != nil && opts.MaxMemKiB > 0 {
		dict := lzma2DictSize(properties[0])
		if needed := uint64(dict)/1024 + 1; needed > opts.MaxMemKiB {
			return nil, ErrMaxMemoryExceeded
		}
	}

	var config lzma.Reader2Config
	if len(properties) > 0 {
		config.DictCap = int(2 | (properties[0] & 1))
		config.DictCap <<= (properties[0] >> 1) + 11
	}
	return config.NewReader2(inputs[0])
}

func lzma2Encoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	var config lzma.Writer2Config
	if cfg.DictSize != 0 {
		config.DictCap = int(cfg.DictSize)
	}
	return config.NewWriter2(w)
}

func ppmdDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	order, memSize, err := ppmdOrderAndMemSize(properties)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.MaxMemKiB > 0 && uint64(memSize)/1024 > opts.MaxMemKiB {
		return nil, ErrMaxMemoryExceeded
	}
	return ppmd7.NewDecoder(inputs[0], order, memSize)
}

func ppmdEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	order := cfg.PpmdOrder
	if order == 0 {
		order = 6
	}
	memSize := cfg.PpmdMemSize
	if memSize == 0 {
		memSize = 16 << 20
	}
	return ppmd7.NewEncoder(w, order, memSize)
}

func deflateDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	return flate.NewReader(inputs[0]), nil
}

func deflateEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	level := cfg.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(w, level)
}

func bzip2Decoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	return bzip2.NewReader(inputs[0]), nil
}

func bzip2Encoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	level := cfg.Level
	if level == 0 {
		level = dsnetbzip2.DefaultCompression
	}
	return dsnetbzip2.NewWriterLevel(w, level)
}

func zstdDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	dec, err := zstd.NewReader(inputs[0])
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func zstdEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	var opts []zstd.EOption
	if cfg.Level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)))
	}
	return zstd.NewWriter(w, opts...)
}

func brotliDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	return brotli.NewReader(inputs[0]), nil
}

func lz4Decoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	return lz4.NewReader(inputs[0]), nil
}

func lz4Encoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if cfg.Level != 0 {
		zw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(cfg.Level)))
	}
	return zw, nil
}

func aesDecoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 1 {
		return nil, ErrNotSupported
	}
	power, salt, iv, err := aesSaltAndIV(properties)
	if err != nil {
		return nil, err
	}
	var password string
	if opts != nil {
		password = opts.Password
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	return filters.NewAESDecrypter(inputs[0], power, salt, iv, password)
}

func aesEncoder(w io.Writer, cfg CoderConfig) (io.WriteCloser, error) {
	return filters.NewAESEncrypter(w, cfg.NumCyclesPower, cfg.Salt, cfg.IV, cfg.Password)
}

func bcj2Decoder(inputs []io.Reader, properties []byte, unpackSize uint64, opts *DecodeOptions) (io.Reader, error) {
	if len(inputs) != 4 {
		return nil, ErrNotSupported
	}
	return filters.NewBCJ2Decoder(inputs[0], inputs[1], inputs[2], inputs[3], int64(unpackSize))
}
