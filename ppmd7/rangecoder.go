package ppmd7

import (
	"errors"
	"io"
)

// ErrRangeDecoderInit is returned when the first five bytes of a PPMd7
// stream don't satisfy the 7z range coder's initialization invariant (a
// discarded zero byte followed by a code that isn't all-ones).
var ErrRangeDecoderInit = errors.New("ppmd7: range decoder initialization failed")

const kTopValue = uint32(1) << 24

// rangeDecoder is the 7z-flavour range decoder PPMd7 is specified against.
type rangeDecoder struct {
	r     io.Reader
	nrang uint32
	code  uint32
}

func newRangeDecoder(r io.Reader) (*rangeDecoder, error) {
	rd := &rangeDecoder{r: r, nrang: 0xFFFFFFFF}

	b, err := rd.readByte()
	if err != nil {
		return nil, err
	}
	if b != 0 {
		return nil, ErrRangeDecoderInit
	}

	for i := 0; i < 4; i++ {
		b, err := rd.readByte()
		if err != nil {
			return nil, err
		}
		rd.code = (rd.code << 8) | uint32(b)
	}

	if rd.code == 0xFFFFFFFF {
		return nil, ErrRangeDecoderInit
	}

	return rd, nil
}

func (rd *rangeDecoder) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(rd.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (rd *rangeDecoder) normalize() error {
	for rd.nrang < kTopValue {
		b, err := rd.readByte()
		if err != nil {
			return err
		}
		rd.code = (rd.code << 8) | uint32(b)
		rd.nrang <<= 8
	}
	return nil
}

// threshold returns code/(nrange/total).
func (rd *rangeDecoder) threshold(total uint32) uint32 {
	rd.nrang /= total
	return rd.code / rd.nrang
}

func (rd *rangeDecoder) decode(start, size uint32) error {
	rd.code -= start * rd.nrang
	rd.nrang *= size
	return rd.normalize()
}

func (rd *rangeDecoder) decodeFinal(start, size uint32) error {
	return rd.decode(start, size)
}

const numMoveBits = 5

func (rd *rangeDecoder) decodeBit(size0 uint32) (uint32, error) {
	newBound := (rd.nrang >> totalBits) * size0
	if rd.code < newBound {
		rd.nrang = newBound
		if err := rd.normalize(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	rd.code -= newBound
	rd.nrang -= newBound
	if err := rd.normalize(); err != nil {
		return 0, err
	}
	return 1, nil
}

// rangeEncoder is the 7z-flavour range encoder.
type rangeEncoder struct {
	w         io.Writer
	low       uint64
	nrang     uint32
	cache     byte
	cacheSize int64
}

func newRangeEncoder(w io.Writer) *rangeEncoder {
	return &rangeEncoder{w: w, nrang: 0xFFFFFFFF, cache: 0, cacheSize: 1}
}

func (re *rangeEncoder) shiftLow() error {
	if uint32(re.low>>32) != 0 || re.low < 0xFF000000 {
		temp := re.cache
		for {
			if err := writeByte(re.w, temp+byte(re.low>>32)); err != nil {
				return err
			}
			temp = 0xFF
			re.cacheSize--
			if re.cacheSize == 0 {
				break
			}
		}
		re.cache = byte(re.low >> 24)
	}
	re.cacheSize++
	re.low = (re.low << 8) & 0xFFFFFFFF
	return nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func (re *rangeEncoder) normalize() error {
	for re.nrang < kTopValue {
		re.nrang <<= 8
		if err := re.shiftLow(); err != nil {
			return err
		}
	}
	return nil
}

func (re *rangeEncoder) encode(start, size, total uint32) error {
	r := re.nrang / total
	re.low += uint64(r) * uint64(start)
	re.nrang = r * size
	return re.normalize()
}

func (re *rangeEncoder) encodeFinal(start, size, total uint32) error {
	return re.encode(start, size, total)
}

func (re *rangeEncoder) encodeBit(size0 uint32, bit uint32) error {
	newBound := (re.nrang >> totalBits) * size0
	if bit == 0 {
		re.nrang = newBound
	} else {
		re.low += uint64(newBound)
		re.nrang -= newBound
	}
	return re.normalize()
}

func (re *rangeEncoder) flush() error {
	for i := 0; i < 5; i++ {
		if err := re.shiftLow(); err != nil {
			return err
		}
	}
	return nil
}
