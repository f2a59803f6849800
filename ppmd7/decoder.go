package ppmd7

import "io"

// Decoder decompresses a PPMd7-encoded stream. It implements io.Reader.
type Decoder struct {
	m   *model
	rc  *rangeDecoder
	err error
}

// NewDecoder returns a Decoder reading a PPMd7 stream from r, using the
// given model order and memory size exactly as they were supplied to the
// encoder that produced the stream (PPMd7 has no in-band header recording
// them; 7z carries them in the coder's properties instead).
func NewDecoder(r io.Reader, order int, memSize uint32) (*Decoder, error) {
	if order < MinOrder || order > MaxOrder {
		return nil, errInvalidOrder
	}
	if memSize < MinMemSize || memSize > MaxMemSize {
		return nil, errInvalidMemSize
	}
	rc, err := newRangeDecoder(r)
	if err != nil {
		return nil, err
	}
	return &Decoder{m: newModel(memSize, order), rc: rc}, nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n := 0
	for n < len(p) {
		sym, err := d.decodeSymbol()
		if err != nil {
			d.err = err
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = byte(sym)
		n++
	}
	return n, nil
}

func (m *model) resetMask() {
	for i := range m.mask {
		m.mask[i] = 0
	}
}

func (m *model) maskSymbol(sym byte) {
	m.mask[sym] = 1
}

// decodeSymbol decodes one symbol. A stream inconsistent with the model is
// reported as ErrDecodeData; a read error from the underlying reader is
// returned as is.
func (d *Decoder) decodeSymbol() (int, error) {
	m := d.m
	a := m.a
	rc := d.rc

	if a.ctxNumStats(m.minContext) != 1 {
		s := a.ctxStats(m.minContext)
		count := rc.threshold(a.ctxSummFreq(m.minContext))
		hiCnt := a.stFreq(s)

		if count < hiCnt {
			if err := rc.decode(0, hiCnt); err != nil {
				return 0, err
			}
			m.update1_0(s)
			sym := int(a.stSymbol(m.foundState))
			m.nextContext()
			return sym, nil
		}

		m.prevSuccess = 0
		i := a.ctxNumStats(m.minContext) - 1
		for {
			s += 6
			hiCnt += a.stFreq(s)
			if hiCnt > count {
				if err := rc.decode(hiCnt-a.stFreq(s), a.stFreq(s)); err != nil {
					return 0, err
				}
				m.update1(s)
				sym := int(a.stSymbol(m.foundState))
				m.nextContext()
				return sym, nil
			}
			i--
			if i == 0 {
				break
			}
		}

		if count >= a.ctxSummFreq(m.minContext) {
			return 0, ErrDecodeData
		}
		m.hiBitsFlag = m.hb2Flag[a.stSymbol(m.foundState)]
		if err := rc.decode(hiCnt, a.ctxSummFreq(m.minContext)-hiCnt); err != nil {
			return 0, err
		}
		m.resetMask()
		m.maskSymbol(a.stSymbol(s))
		i = a.ctxNumStats(m.minContext) - 1
		for i > 0 {
			s -= 6
			m.maskSymbol(a.stSymbol(s))
			i--
		}
	} else {
		s := a.ctxOneState(m.minContext)
		prob, _ := m.getBinSumm(s)
		bit, err := rc.decodeBit(uint32(*prob))
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			*prob = updateProb0(*prob)
			m.updateBin(s)
			sym := int(a.stSymbol(m.foundState))
			m.nextContext()
			return sym, nil
		}
		*prob = updateProb1(*prob)
		m.initEsc = int(kExpEscape[*prob>>10])
		m.resetMask()
		m.maskSymbol(a.stSymbol(s))
		m.prevSuccess = 0
	}

	return d.decodeEscape()
}

// decodeEscape runs the masked-symbol escape loop shared by both the
// multi-state and binary-context paths above.
func (d *Decoder) decodeEscape() (int, error) {
	m := d.m
	a := m.a
	rc := d.rc

	for {
		var ps [256]uint32
		numMasked := a.ctxNumStats(m.minContext)

		for {
			m.orderFall++
			suf := a.ctxSuffix(m.minContext)
			if suf == 0 {
				return 0, ErrDecodeData
			}
			m.minContext = suf
			if a.ctxNumStats(m.minContext) != numMasked {
				break
			}
		}

		hiCnt := uint32(0)
		s := a.ctxStats(m.minContext)
		num := a.ctxNumStats(m.minContext) - numMasked
		i := 0
		for i != num {
			if m.mask[a.stSymbol(s)] == 0 {
				hiCnt += a.stFreq(s)
				ps[i] = s
				i++
			}
			s += 6
		}

		m.numMasked = numMasked
		seeP, freqSum := m.makeEscFreq(numMasked)
		freqSum += hiCnt
		count := rc.threshold(freqSum)

		if count < hiCnt {
			acc := uint32(0)
			idx := 0
			for {
				acc += a.stFreq(ps[idx])
				if acc > count {
					break
				}
				idx++
			}
			sFound := ps[idx]
			if err := rc.decode(acc-a.stFreq(sFound), a.stFreq(sFound)); err != nil {
				return 0, err
			}
			seeP.update()
			m.update2(sFound)
			return int(a.stSymbol(m.foundState)), nil
		}

		if count >= freqSum {
			return 0, ErrDecodeData
		}
		if err := rc.decode(hiCnt, freqSum-hiCnt); err != nil {
			return 0, err
		}
		seeP.summ = uint16(uint32(seeP.summ) + freqSum)
		for j := 0; j < i; j++ {
			m.maskSymbol(a.stSymbol(ps[j]))
		}
	}
}

func updateProb0(prob uint16) uint16 {
	return uint16(uint32(prob) + (1 << intBits) - getMean(uint32(prob)))
}

func updateProb1(prob uint16) uint16 {
	return uint16(uint32(prob) - getMean(uint32(prob)))
}
