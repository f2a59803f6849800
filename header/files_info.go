package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
	"unicode/utf16"
)

// ErrInvalidFileCount is returned when the file count read from the stream
// exceeds the caller supplied maxFileCount.
var ErrInvalidFileCount = errors.New("invalid file count")

// FileInfo is a structure containing the information of an archived file.
type FileInfo struct {
	Name   string
	Attrib uint32

	IsEmptyStream bool
	IsEmptyFile   bool

	// Flag indicating a file should be removed upon extraction.
	IsAntiFile bool

	CreatedAt  time.Time
	AccessedAt time.Time
	ModifiedAt time.Time
}

// ReadFilesInfo reads the files info structure.
func ReadFilesInfo(r io.Reader, maxFileCount int) ([]*FileInfo, error) {
	numFiles, err := ReadNumberInt(r)
	if err != nil {
		return nil, err
	}
	if numFiles > maxFileCount {
		return nil, ErrInvalidFileCount
	}

	fileInfo := make([]*FileInfo, numFiles)
	for i := range fileInfo {
		fileInfo[i] = &FileInfo{}
	}

	var numEmptyStreams int
	for {
		id, err := ReadByte(r)
		if err != nil {
			return nil, err
		}

		if id == k7zEnd {
			return fileInfo, nil
		}

		size, err := ReadNumber(r)
		if err != nil {
			return nil, err
		}

		switch id {
		case k7zEmptyStream:
			var emptyStreams []bool
			emptyStreams, numEmptyStreams, err = ReadBoolVector(r, numFiles)
			if err != nil {
				return nil, err
			}
			for i, fi := range fileInfo {
				fi.IsEmptyStream = emptyStreams[i]
			}

		case k7zEmptyFile, k7zAnti:
			files, _, err := ReadBoolVector(r, numEmptyStreams)
			if err != nil {
				return nil, err
			}

			idx := 0
			for _, fi := range fileInfo {
				if fi.IsEmptyStream {
					switch id {
					case k7zEmptyFile:
						fi.IsEmptyFile = files[idx]
					case k7zAnti:
						fi.IsAntiFile = files[idx]
					}
					idx++
				}
			}

		case k7zStartPos:
			return nil, ErrUnexpectedPropertyID

		case k7zCTime, k7zATime, k7zMTime:
			times, err := ReadDateTimeVector(r, numFiles)
			if err != nil {
				return nil, err
			}
			for i, fi := range fileInfo {
				switch id {
				case k7zCTime:
					fi.CreatedAt = times[i]
				case k7zATime:
					fi.AccessedAt = times[i]
				case k7zMTime:
					fi.ModifiedAt = times[i]
				}
			}

		case k7zName:
			external, err := ReadByte(r)
			if err != nil {
				return nil, err
			}

			switch external {
			case 0:
				for _, fi := range fileInfo {
					var rune uint16
					var name []uint16
					for {
						if err = binary.Read(r, binary.LittleEndian, &rune); err != nil {
							return nil, err
						}

						if rune == 0 {
							break
						}
						name = append(name, rune)
					}
					fi.Name = string(utf16.Decode(name))
				}

			default:
				return nil, ErrAdditionalStreamsNotImplemented
			}

		case k7zWinAttributes:
			attributes, err := ReadAttributeVector(r, numFiles)
			if err != nil {
				return nil, err
			}
			for i, fi := range fileInfo {
				fi.Attrib = attributes[i]
			}

		case k7zDummy, k7zComment:
			// Comment (spec.md §9) is parsed but never acted upon, same
			// as Dummy padding: both are opaque payloads of a known size.
			for i := uint64(0); i < size; i++ {
				if _, err = ReadByte(r); err != nil {
					return nil, err
				}
			}

		default:
			return nil, ErrUnexpectedPropertyID
		}
	}
}

// WriteFilesInfo writes the files info structure.
func WriteFilesInfo(w io.Writer, files []*FileInfo) error {
	numFiles := len(files)
	if err := WriteNumber(w, uint64(numFiles)); err != nil {
		return err
	}

	emptyStreams := make([]bool, numFiles)
	numEmptyStreams := 0
	for i, fi := range files {
		emptyStreams[i] = fi.IsEmptyStream
		if fi.IsEmptyStream {
			numEmptyStreams++
		}
	}

	if numEmptyStreams > 0 {
		if err := writeFilesInfoProp(w, k7zEmptyStream, func(buf io.Writer) error {
			return WriteBoolVector(buf, emptyStreams)
		}); err != nil {
			return err
		}

		emptyFiles := make([]bool, 0, numEmptyStreams)
		antiFiles := make([]bool, 0, numEmptyStreams)
		anyEmptyFile, anyAntiFile := false, false
		for _, fi := range files {
			if !fi.IsEmptyStream {
				continue
			}
			emptyFiles = append(emptyFiles, fi.IsEmptyFile)
			antiFiles = append(antiFiles, fi.IsAntiFile)
			anyEmptyFile = anyEmptyFile || fi.IsEmptyFile
			anyAntiFile = anyAntiFile || fi.IsAntiFile
		}
		if anyEmptyFile {
			if err := writeFilesInfoProp(w, k7zEmptyFile, func(buf io.Writer) error {
				return WriteBoolVector(buf, emptyFiles)
			}); err != nil {
				return err
			}
		}
		if anyAntiFile {
			if err := writeFilesInfoProp(w, k7zAnti, func(buf io.Writer) error {
				return WriteBoolVector(buf, antiFiles)
			}); err != nil {
				return err
			}
		}
	}

	times := make([]time.Time, numFiles)
	hasMTime := false
	for i, fi := range files {
		times[i] = fi.ModifiedAt
		if !fi.ModifiedAt.IsZero() {
			hasMTime = true
		}
	}
	if hasMTime {
		if err := writeFilesInfoProp(w, k7zMTime, func(buf io.Writer) error {
			return WriteDateTimeVector(buf, times)
		}); err != nil {
			return err
		}
	}

	if err := writeFilesInfoProp(w, k7zName, func(buf io.Writer) error {
		if err := WriteByte(buf, 0); err != nil { // external = 0
			return err
		}
		for _, fi := range files {
			for _, r := range utf16.Encode([]rune(fi.Name)) {
				if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
					return err
				}
			}
			if err := binary.Write(buf, binary.LittleEndian, uint16(0)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	attrs := make([]uint32, numFiles)
	hasAttrs := false
	for i, fi := range files {
		attrs[i] = fi.Attrib
		if fi.Attrib != 0 {
			hasAttrs = true
		}
	}
	if hasAttrs {
		if err := writeFilesInfoProp(w, k7zWinAttributes, func(buf io.Writer) error {
			return WriteAttributeVector(buf, attrs)
		}); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}

// writeFilesInfoProp buffers a property's payload so its size prefix can be
// written before the payload itself, matching the k7zDummy padding shape
// every FilesInfo property uses.
func writeFilesInfoProp(w io.Writer, id byte, fn func(io.Writer) error) error {
	if err := WriteByte(w, id); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}

	if err := WriteNumber(w, uint64(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
