package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	// SignatureHeader size is the size of the signature header.
	SignatureHeaderSize = 32

	// MaxHeaderSize is the maximum header size.
	MaxHeaderSize = int64(1 << 62) // 4 exbibyte
)

var (
	// MagicBytes is the magic bytes used in the 7z signature.
	MagicBytes = [6]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}

	// ErrInvalidSignatureHeader is returned when signature header is invalid.
	ErrInvalidSignatureHeader = errors.New("invalid signature header")
)

// SignatureHeader is the structure found at the top of 7z files.
type SignatureHeader struct {
	Signature [6]byte

	ArchiveVersion struct {
		Major byte
		Minor byte
	}

	StartHeaderCRC uint32

	StartHeader struct {
		NextHeaderOffset int64
		NextHeaderSize   int64
		NextHeaderCRC    uint32
	}
}

// ReadSignatureHeader reads the signature header.
func ReadSignatureHeader(r io.Reader) (*SignatureHeader, error) {
	var raw [SignatureHeaderSize]byte
	_, err := r.Read(raw[:])
	if err != nil {
		return nil, err
	}

	var header SignatureHeader
	copy(header.Signature[:], raw[:6])
	if bytes.Compare(header.Signature[:], MagicBytes[:]) != 0 {
		return nil, ErrInvalidSignatureHeader
	}

	header.ArchiveVersion.Major = raw[6]
	header.ArchiveVersion.Minor = raw[7]
	header.StartHeaderCRC = binary.LittleEndian.Uint32(raw[8:])
	header.StartHeader.NextHeaderOffset = int64(binary.LittleEndian.Uint64(raw[12:]))
	header.StartHeader.NextHeaderSize = int64(binary.LittleEndian.Uint64(raw[20:]))
	header.StartHeader.NextHeaderCRC = binary.LittleEndian.Uint32(raw[28:])

	if header.StartHeader.NextHeaderSize < 0 || header.StartHeader.NextHeaderSize > MaxHeaderSize {
		return &header, ErrInvalidSignatureHeader
	}
	if crc32.ChecksumIEEE(raw[12:]) != header.StartHeaderCRC {
		err = ErrChecksumMismatch
	}
	return &header, err
}

// Header is structure containing file and stream information.
type Header struct {
	MainStreamsInfo *StreamsInfo
	FilesInfo       []*FileInfo
}

// WriteSignatureHeader writes the signature header. The caller fills in
// StartHeader.NextHeaderOffset/Size/CRC beforehand — NextHeaderCRC is the
// CRC32 of the next-header bytes themselves, not recomputed here.
// StartHeaderCRC (the outer CRC protecting the three StartHeader fields) is
// computed and filled in by this function.
func WriteSignatureHeader(w io.Writer, h *SignatureHeader) error {
	var raw [SignatureHeaderSize]byte
	copy(raw[:6], MagicBytes[:])
	raw[6] = h.ArchiveVersion.Major
	raw[7] = h.ArchiveVersion.Minor
	binary.LittleEndian.PutUint64(raw[12:], uint64(h.StartHeader.NextHeaderOffset))
	binary.LittleEndian.PutUint64(raw[20:], uint64(h.StartHeader.NextHeaderSize))
	binary.LittleEndian.PutUint32(raw[28:], h.StartHeader.NextHeaderCRC)
	h.StartHeaderCRC = crc32.ChecksumIEEE(raw[12:32])
	binary.LittleEndian.PutUint32(raw[8:], h.StartHeaderCRC)

	_, err := w.Write(raw[:])
	return err
}

// WriteHeader writes a header structure (the k7zHeader variant, never the
// encoded-header variant — callers that want a compressed header encode the
// bytes produced by this function themselves and wrap them in a
// k7zEncodedHeader StreamsInfo).
func WriteHeader(w io.Writer, h *Header) error {
	if err := WriteByte(w, k7zHeader); err != nil {
		return err
	}

	if h.MainStreamsInfo != nil {
		if err := WriteByte(w, k7zMainStreamsInfo); err != nil {
			return err
		}
		if err := WriteStreamsInfo(w, h.MainStreamsInfo); err != nil {
			return err
		}
	}

	if len(h.FilesInfo) > 0 {
		if err := WriteByte(w, k7zFilesInfo); err != nil {
			return err
		}
		if err := WriteFilesInfo(w, h.FilesInfo); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}

// WriteEncodedHeader writes the k7zEncodedHeader variant of the next-header
// record: a tag byte followed by si, with no outer wrapping (ReadStreamsInfo
// consumes through its own k7zEnd, so nothing else terminates the record).
func WriteEncodedHeader(w io.Writer, si *StreamsInfo) error {
	if err := WriteByte(w, k7zEncodedHeader); err != nil {
		return err
	}
	return WriteStreamsInfo(w, si)
}

// ReadPackedStreamsForHeaders reads either a header or encoded header structure.
func ReadPackedStreamsForHeaders(r *io.LimitedReader) (header *Header, encodedHeader *StreamsInfo, err error) {
	id, err := ReadByte(r)
	if err != nil {
		return nil, nil, err
	}

	switch id {
	case k7zHeader:
		if header, err = ReadHeader(r); err != nil && err != io.EOF {
			return nil, nil, err
		}

	case k7zEncodedHeader:
		if encodedHeader, err = ReadStreamsInfo(r); err != nil {
			return nil, nil, err
		}

	case k7zEnd:
		if header == nil && encodedHeader == nil {
			return nil, nil, ErrUnexpectedPropertyID
		}
		break

	default:
		return nil, nil, ErrUnexpectedPropertyID
	}

	return header, encodedHeader, nil
}

// skipArchiveProperties consumes a sequence of (type, size, data) records
// terminated by a zero type byte, without interpreting any of them.
func skipArchiveProperties(r io.Reader) error {
	for {
		id, err := ReadByte(r)
		if err != nil {
			return err
		}
		if id == k7zEnd {
			return nil
		}

		size, err := ReadNumber(r)
		if err != nil {
			return err
		}
		if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
			return err
		}
	}
}

// ReadHeader reads a header structure.
func ReadHeader(r *io.LimitedReader) (*Header, error) {
	header := &Header{}

	for {
		id, err := ReadByte(r)
		if err != nil {
			return nil, err
		}

		switch id {
		case k7zArchiveProperties:
			// Parsed but never acted upon (spec.md §9): 7-Zip has never
			// shipped a version that populates these, but the structure
			// is still well-defined, so we skip each property's payload
			// rather than treating its mere presence as an error.
			if err := skipArchiveProperties(r); err != nil {
				return nil, err
			}

		case k7zAdditionalStreamsInfo:
			return nil, ErrAdditionalStreamsNotImplemented

		case k7zMainStreamsInfo:
			if header.MainStreamsInfo, err = ReadStreamsInfo(r); err != nil {
				return nil, err
			}

		case k7zFilesInfo:
			// Limit the maximum amount of FileInfos that get allocated to size
			// of the remaining header / 3
			if header.FilesInfo, err = ReadFilesInfo(r, int(r.N)/3); err != nil {
				return nil, err
			}

		case k7zEnd:
			// A header without MainStreamsInfo is valid only when no
			// file carries a stream (an archive of directories and
			// empty files).
			if header.MainStreamsInfo == nil {
				for _, fi := range header.FilesInfo {
					if !fi.IsEmptyStream {
						return nil, ErrUnexpectedPropertyID
					}
				}
			}
			return header, nil

		default:
			return nil, ErrUnexpectedPropertyID
		}
	}
}
