package header

import (
	"encoding/binary"
	"io"
)

// ReadDigests reads an array of uint32 CRCs.
func ReadDigests(r io.Reader, length int) ([]uint32, error) {
	defined, _, err := ReadOptionalBoolVector(r, length)
	if err != nil {
		return nil, err
	}

	crcs := make([]uint32, length)
	for i := range defined {
		if defined[i] {
			if err := binary.Read(r, binary.LittleEndian, &crcs[i]); err != nil {
				return nil, err
			}
		}
	}

	return crcs, nil
}

// WriteDigests writes an array of uint32 CRCs. A CRC of zero is treated as
// "not defined" on the wire, matching what ReadDigests produces for an
// undefined slot.
func WriteDigests(w io.Writer, crcs []uint32) error {
	defined := make([]bool, len(crcs))
	for i, c := range crcs {
		defined[i] = c != 0
	}
	if err := WriteOptionalBoolVector(w, defined); err != nil {
		return err
	}
	for i, c := range crcs {
		if !defined[i] {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, c); err != nil {
			return err
		}
	}
	return nil
}
