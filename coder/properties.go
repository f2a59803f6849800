package coder

import (
	"encoding/binary"
)

// deltaProperties returns the 1-byte Delta properties (distance-1).
func deltaProperties(cfg CoderConfig) []byte {
	d := cfg.DeltaDistance
	if d <= 0 {
		d = 1
	}
	return []byte{byte(d - 1)}
}

// deltaDistance parses Delta's 1-byte properties into a distance in 1..256.
func deltaDistance(properties []byte) (int, error) {
	if len(properties) != 1 {
		return 0, ErrNotSupported
	}
	return int(properties[0]) + 1, nil
}

// dictSizeToLzma2Byte packs a dictionary size into LZMA2's single
// dictionary-size property byte, matching 7-Zip's own packing: value i
// stands for (2|(i&1)) << (i/2+11) bytes, and the smallest i whose size is
// at least dictSize is returned (0 up to 4 KiB, 40 above 3 GiB). ulikunitz/xz only consumes the raw
// dictionary size we smuggle in via its reader config, so this is used only
// when producing on-wire properties for interop with other readers.
func dictSizeToLzma2Byte(dictSize uint32) byte {
	if dictSize <= (1 << 12) {
		return 0
	}
	for i := byte(0); i < 40; i++ {
		sz := (uint32(2) | uint32(i&1)) << (i/2 + 11)
		if dictSize <= sz {
			return i
		}
	}
	return 40
}

func lzmaProperties(cfg CoderConfig) []byte {
	dict := cfg.DictSize
	if dict == 0 {
		dict = 1 << 24
	}
	props := make([]byte, 5)
	// lc=3, lp=0, pb=2 -> single byte (pb*5+lp)*9+lc = 0x5D, 7-Zip's default.
	props[0] = 0x5D
	binary.LittleEndian.PutUint32(props[1:], dict)
	return props
}

func lzma2Properties(cfg CoderConfig) []byte {
	dict := cfg.DictSize
	if dict == 0 {
		dict = 1 << 24
	}
	return []byte{dictSizeToLzma2Byte(dict)}
}

// lzma2DictSize reverses dictSizeToLzma2Byte, used by the MaxMemLimited
// check (spec.md's supplemented decoders.rs::get_lzma2_dic_size).
func lzma2DictSize(b byte) uint32 {
	if b > 40 {
		b = 40
	}
	if b == 40 {
		return 0xFFFFFFFF
	}
	return (uint32(2) | uint32(b&1)) << (uint32(b)/2 + 11)
}

func ppmdProperties(cfg CoderConfig) []byte {
	order := cfg.PpmdOrder
	if order == 0 {
		order = 6
	}
	memSize := cfg.PpmdMemSize
	if memSize == 0 {
		memSize = 16 << 20
	}
	props := make([]byte, 5)
	props[0] = byte(order)
	binary.LittleEndian.PutUint32(props[1:], memSize)
	return props
}

// ppmdOrderAndMemSize parses PPMd7's 5-byte properties (spec.md §4.5).
func ppmdOrderAndMemSize(properties []byte) (order int, memSize uint32, err error) {
	if len(properties) != 5 {
		return 0, 0, ErrNotSupported
	}
	return int(properties[0]), binary.LittleEndian.Uint32(properties[1:]), nil
}

// aesProperties returns the AES-256/SHA-256 properties per spec.md §4.5: a
// byte of 0xC0|numCyclesPower, a byte packing (saltSize-1) in its high
// nibble and (ivSize-1) in its low nibble, the salt, then the IV — for the
// spec's fixed 16-byte salt and IV this second byte is always 0xFF.
func aesProperties(cfg CoderConfig) []byte {
	power := cfg.NumCyclesPower
	b0 := byte(0xC0 | (power & 0x3F))

	saltSize := len(cfg.Salt)
	ivSize := len(cfg.IV)
	b1 := byte(((saltSize-1)&0x0F)<<4 | ((ivSize - 1) & 0x0F))

	props := make([]byte, 0, 2+saltSize+ivSize)
	props = append(props, b0, b1)
	props = append(props, cfg.Salt...)
	props = append(props, cfg.IV...)
	return props
}

// aesSaltAndIV parses the AES-256/SHA-256 properties (spec.md §4.5), the
// same unpacking the teacher's register.go performs.
func aesSaltAndIV(properties []byte) (power int, salt, iv []byte, err error) {
	if len(properties) < 2 {
		return 0, nil, nil, ErrNotSupported
	}

	saltSize := int(properties[1]>>4) + 1
	ivSize := int(properties[1]&0x0F) + 1
	power = int(properties[0]) & 0x3F

	rest := properties[2:]
	if len(rest) < saltSize+ivSize {
		return 0, nil, nil, ErrNotSupported
	}

	return power, rest[:saltSize], rest[saltSize : saltSize+ivSize], nil
}
