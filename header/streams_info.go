package header

import (
	"io"
)

// StreamsInfo is a top-level structure of the 7z format.
type StreamsInfo struct {
	PackInfo       *PackInfo
	UnpackInfo     *UnpackInfo
	SubStreamsInfo *SubStreamsInfo
}

// ReadStreamsInfo reads the streams info structure.
func ReadStreamsInfo(r io.Reader) (*StreamsInfo, error) {
	streamsInfo := &StreamsInfo{}

	for {
		id, err := ReadByte(r)
		if err != nil {
			return nil, err
		}

		switch id {
		case k7zPackInfo:
			if streamsInfo.PackInfo, err = ReadPackInfo(r); err != nil {
				return nil, err
			}

		case k7zUnpackInfo:
			if streamsInfo.UnpackInfo, err = ReadUnpackInfo(r); err != nil {
				return nil, err
			}

		case k7zSubStreamsInfo:
			if streamsInfo.UnpackInfo == nil {
				return nil, ErrUnexpectedPropertyID
			}

			if streamsInfo.SubStreamsInfo, err = ReadSubStreamsInfo(r, streamsInfo.UnpackInfo); err != nil {
				return nil, err
			}

		case k7zEnd:
			if streamsInfo.PackInfo == nil || streamsInfo.UnpackInfo == nil {
				return nil, ErrUnexpectedPropertyID
			}

			return streamsInfo, nil

		default:
			return nil, ErrUnexpectedPropertyID
		}
	}
}

// WriteStreamsInfo writes the streams info structure.
func WriteStreamsInfo(w io.Writer, si *StreamsInfo) error {
	if si.PackInfo != nil {
		if err := WriteByte(w, k7zPackInfo); err != nil {
			return err
		}
		if err := WritePackInfo(w, si.PackInfo); err != nil {
			return err
		}
	}

	if si.UnpackInfo != nil {
		if err := WriteByte(w, k7zUnpackInfo); err != nil {
			return err
		}
		if err := WriteUnpackInfo(w, si.UnpackInfo); err != nil {
			return err
		}
	}

	if si.SubStreamsInfo != nil {
		if err := WriteByte(w, k7zSubStreamsInfo); err != nil {
			return err
		}
		if err := WriteSubStreamsInfo(w, si.SubStreamsInfo, si.UnpackInfo); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}

// SubStreamsInfo is a structure found within the StreamsInfo structure.
type SubStreamsInfo struct {
	NumUnpackStreamsInFolders []int
	UnpackSizes               []uint64
	Digests                   []uint32
}

// ReadSubStreamsInfo reads the substreams info structure.
func ReadSubStreamsInfo(r io.Reader, unpackInfo *UnpackInfo) (*SubStreamsInfo, error) {
	id, err := ReadByte(r)
	if err != nil {
		return nil, err
	}

	subStreamInfo := &SubStreamsInfo{}
	subStreamInfo.NumUnpackStreamsInFolders = make([]int, len(unpackInfo.Folders))
	for i := range subStreamInfo.NumUnpackStreamsInFolders {
		subStreamInfo.NumUnpackStreamsInFolders[i] = 1
	}

	if id == k7zNumUnpackStream {
		for i := range subStreamInfo.NumUnpackStreamsInFolders {
			if subStreamInfo.NumUnpackStreamsInFolders[i], err = ReadNumberInt(r); err != nil {
				return nil, err
			}
		}

		id, err = ReadByte(r)
		if err != nil {
			return nil, err
		}
	}

	for i := range unpackInfo.Folders {
		if subStreamInfo.NumUnpackStreamsInFolders[i] == 0 {
			continue
		}

		var sum uint64
		if id == k7zSize {
			for j := 1; j < subStreamInfo.NumUnpackStreamsInFolders[i]; j++ {
				size, err := ReadNumber(r)
				if err != nil {
					return nil, err
				}

				sum += size
				subStreamInfo.UnpackSizes = append(subStreamInfo.UnpackSizes, size)
			}
		}

		subStreamInfo.UnpackSizes = append(subStreamInfo.UnpackSizes, unpackInfo.Folders[i].UnpackSize()-uint64(sum))
	}

	if id == k7zSize {
		id, err = ReadByte(r)
		if err != nil {
			return nil, err
		}
	}

	numDigests := 0
	for i := range unpackInfo.Folders {
		numSubStreams := subStreamInfo.NumUnpackStreamsInFolders[i]
		if numSubStreams > 1 || unpackInfo.Folders[i].UnpackCRC == 0 {
			numDigests += int(numSubStreams)
		}
	}

	if id == k7zCRC {
		subStreamInfo.Digests, err = ReadDigests(r, numDigests)
		if err != nil {
			return nil, err
		}

		id, err = ReadByte(r)
		if err != nil {
			return nil, err
		}
	}

	if id != k7zEnd {
		return nil, ErrUnexpectedPropertyID
	}

	return subStreamInfo, nil
}

// WriteSubStreamsInfo writes the substreams info structure.
func WriteSubStreamsInfo(w io.Writer, ssi *SubStreamsInfo, ui *UnpackInfo) error {
	allOne := true
	for _, n := range ssi.NumUnpackStreamsInFolders {
		if n != 1 {
			allOne = false
			break
		}
	}

	if !allOne {
		if err := WriteByte(w, k7zNumUnpackStream); err != nil {
			return err
		}
		for _, n := range ssi.NumUnpackStreamsInFolders {
			if err := WriteNumber(w, uint64(n)); err != nil {
				return err
			}
		}
	}

	if len(ssi.UnpackSizes) > 0 {
		if err := WriteByte(w, k7zSize); err != nil {
			return err
		}
		sizes := ssi.UnpackSizes
		for i, folder := range ui.Folders {
			n := ssi.NumUnpackStreamsInFolders[i]
			if n == 0 {
				continue
			}
			var sum uint64
			for j := 0; j < n-1; j++ {
				if err := WriteNumber(w, sizes[0]); err != nil {
					return err
				}
				sum += sizes[0]
				sizes = sizes[1:]
			}
			_ = folder
			sizes = sizes[1:] // skip the derived final substream size, it's implicit
		}
	}

	numDigests := 0
	for i, folder := range ui.Folders {
		n := ssi.NumUnpackStreamsInFolders[i]
		if n > 1 || folder.UnpackCRC == 0 {
			numDigests += n
		}
	}

	if numDigests > 0 && len(ssi.Digests) > 0 {
		if err := WriteByte(w, k7zCRC); err != nil {
			return err
		}
		if err := WriteDigests(w, ssi.Digests); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}
