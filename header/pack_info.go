package header

import "io"

// PackInfo contains the pack stream sizes of the folders, and optionally a
// CRC32 for any subset of them (spec.md §3 "pack_crcs_defined").
type PackInfo struct {
	PackPos       uint64
	PackSizes     []uint64
	PackCRCs      []uint32
	PackCRCsDefined []bool
}

// ReadPackInfo reads a pack info structure.
func ReadPackInfo(r io.Reader) (*PackInfo, error) {
	packInfo := &PackInfo{}

	var err error
	if packInfo.PackPos, err = ReadNumber(r); err != nil {
		return nil, err
	}

	numPackStreams, err := ReadNumberInt(r)
	if err != nil {
		return nil, err
	}

	for {
		id, err := ReadByte(r)
		if err != nil {
			return nil, err
		}

		switch id {
		case k7zSize:
			packInfo.PackSizes = make([]uint64, numPackStreams)
			for i := 0; i < numPackStreams; i++ {
				packInfo.PackSizes[i], err = ReadNumber(r)
				if err != nil {
					return nil, err
				}
			}

		case k7zCRC:
			crcs, err := ReadDigests(r, numPackStreams)
			if err != nil {
				return nil, err
			}
			packInfo.PackCRCs = crcs
			packInfo.PackCRCsDefined = make([]bool, numPackStreams)
			for i, c := range crcs {
				packInfo.PackCRCsDefined[i] = c != 0
			}

		case k7zEnd:
			return packInfo, nil

		default:
			return nil, ErrUnexpectedPropertyID
		}
	}
}

// WritePackInfo writes a pack info structure.
func WritePackInfo(w io.Writer, pi *PackInfo) error {
	if err := WriteNumber(w, pi.PackPos); err != nil {
		return err
	}
	if err := WriteNumber(w, uint64(len(pi.PackSizes))); err != nil {
		return err
	}

	if len(pi.PackSizes) > 0 {
		if err := WriteByte(w, k7zSize); err != nil {
			return err
		}
		for _, size := range pi.PackSizes {
			if err := WriteNumber(w, size); err != nil {
				return err
			}
		}
	}

	if len(pi.PackCRCs) > 0 {
		if err := WriteByte(w, k7zCRC); err != nil {
			return err
		}
		if err := WriteDigests(w, pi.PackCRCs); err != nil {
			return err
		}
	}

	return WriteByte(w, k7zEnd)
}
