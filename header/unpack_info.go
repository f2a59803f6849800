package header

import "io"

// UnpackInfo is a structure containing folders.
type UnpackInfo struct {
	Folders []*Folder
}

// ReadUnpackInfo reads unpack info structures.
func ReadUnpackInfo(r io.Reader) (*UnpackInfo, error) {
	err := ReadByteExpect(r, k7zFolder)
	if err != nil {
		return nil, err
	}

	numFolders, err := ReadNumberInt(r)
	if err != nil {
		return nil, err
	}

	unpackInfo := &UnpackInfo{}
	external, err := ReadByte(r)
	if err != nil {
		return nil, err
	}

	switch external {
	case 0:
		unpackInfo.Folders = make([]*Folder, numFolders)
		for i := range unpackInfo.Folders {
			if unpackInfo.Folders[i], err = ReadFolder(r); err != nil {
				return nil, err
			}
		}

	default:
		return nil, ErrAdditionalStreamsNotImplemented
	}

	if err = ReadByteExpect(r, k7zCodersUnpackSize); err != nil {
		return nil, err
	}
	for _, folder := range unpackInfo.Folders {
		folder.UnpackSizes = make([]uint64, folder.NumOutStreamsTotal())
		for i := range folder.UnpackSizes {
			if folder.UnpackSizes[i], err = ReadNumber(r); err != nil {
				return nil, err
			}
		}
	}

	id, err := ReadByte(r)
	if err != nil {
		return nil, err
	}
	if id == k7zCRC {
		crcs, err := ReadDigests(r, len(unpackInfo.Folders))
		if err != nil {
			return nil, err
		}
		for i := range unpackInfo.Folders {
			unpackInfo.Folders[i].UnpackCRC = crcs[i]
		}

		id, err = ReadByte(r)
		if err != nil {
			return nil, err
		}
	}

	if id != k7zEnd {
		return nil, ErrUnexpectedPropertyID
	}

	return unpackInfo, nil
}

// WriteUnpackInfo writes unpack info structures.
func WriteUnpackInfo(w io.Writer, ui *UnpackInfo) error {
	if err := WriteByte(w, k7zFolder); err != nil {
		return err
	}
	if err := WriteNumber(w, uint64(len(ui.Folders))); err != nil {
		return err
	}
	if err := WriteByte(w, 0); err != nil { // external = 0
		return err
	}
	for _, folder := range ui.Folders {
		if err := WriteFolder(w, folder); err != nil {
			return err
		}
	}

	if err := WriteByte(w, k7zCodersUnpackSize); err != nil {
		return err
	}
	for _, folder := range ui.Folders {
		for _, size := range folder.UnpackSizes {
			if err := WriteNumber(w, size); err != nil {
				return err
			}
		}
	}

	hasCRC := false
	for _, folder := range ui.Folders {
		if folder.UnpackCRC != 0 {
			hasCRC = true
			break
		}
	}
	if hasCRC {
		crcs := make([]uint32, len(ui.Folders))
		for i, folder := range ui.Folders {
			crcs[i] = folder.UnpackCRC
		}
		if err := WriteByte(w, k7zCRC); err != nil {
			return err
		}
		if err := WriteDigests(w, crcs); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}
