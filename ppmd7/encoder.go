package ppmd7

import "io"

// Encoder compresses a stream with PPMd7. It implements io.WriteCloser;
// Close must be called to flush the range coder's final bytes.
type Encoder struct {
	m  *model
	rc *rangeEncoder
}

// NewEncoder returns an Encoder writing a PPMd7 stream to w with the given
// model order and memory size. Both parameters must be recorded out of band
// (in the 7z coder's properties) since the PPMd7 wire format carries no
// in-stream header.
func NewEncoder(w io.Writer, order int, memSize uint32) (*Encoder, error) {
	if order < MinOrder || order > MaxOrder {
		return nil, errInvalidOrder
	}
	if memSize < MinMemSize || memSize > MaxMemSize {
		return nil, errInvalidMemSize
	}
	return &Encoder{m: newModel(memSize, order), rc: newRangeEncoder(w)}, nil
}

func (e *Encoder) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := e.encodeSymbol(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Close flushes the range encoder. It does not close the underlying writer.
func (e *Encoder) Close() error {
	return e.rc.flush()
}

func (e *Encoder) encodeSymbol(symbol byte) error {
	m := e.m
	a := m.a
	rc := e.rc

	if a.ctxNumStats(m.minContext) != 1 {
		s := a.ctxStats(m.minContext)
		if a.stSymbol(s) == symbol {
			if err := rc.encode(0, a.stFreq(s), a.ctxSummFreq(m.minContext)); err != nil {
				return err
			}
			m.update1_0(s)
			m.nextContext()
			return nil
		}

		m.prevSuccess = 0
		sum := a.stFreq(s)
		i := a.ctxNumStats(m.minContext) - 1
		for {
			s += 6
			if a.stSymbol(s) == symbol {
				if err := rc.encode(sum, a.stFreq(s), a.ctxSummFreq(m.minContext)); err != nil {
					return err
				}
				m.update1(s)
				m.nextContext()
				return nil
			}
			sum += a.stFreq(s)
			i--
			if i == 0 {
				break
			}
		}

		m.hiBitsFlag = m.hb2Flag[a.stSymbol(m.foundState)]
		if err := rc.encode(sum, a.ctxSummFreq(m.minContext)-sum, a.ctxSummFreq(m.minContext)); err != nil {
			return err
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
		if a.stSymbol(s) == symbol {
			if err := rc.encodeBit(uint32(*prob), 0); err != nil {
				return err
			}
			*prob = updateProb0(*prob)
			m.updateBin(s)
			m.nextContext()
			return nil
		}
		if err := rc.encodeBit(uint32(*prob), 1); err != nil {
			return err
		}
		*prob = updateProb1(*prob)
		m.initEsc = int(kExpEscape[*prob>>10])
		m.resetMask()
		m.maskSymbol(a.stSymbol(s))
		m.prevSuccess = 0
	}

	return e.encodeEscape(symbol)
}

func (e *Encoder) encodeEscape(symbol byte) error {
	m := e.m
	a := m.a
	rc := e.rc

	for {
		var ps [256]uint32
		numMasked := a.ctxNumStats(m.minContext)

		for {
			m.orderFall++
			suf := a.ctxSuffix(m.minContext)
			if suf == 0 {
				return ErrEncodeSymbol
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

		found := -1
		acc := uint32(0)
		for j := 0; j < i; j++ {
			if a.stSymbol(ps[j]) == symbol {
				found = j
				break
			}
			acc += a.stFreq(ps[j])
		}

		if found >= 0 {
			sFound := ps[found]
			if err := rc.encode(acc, a.stFreq(sFound), freqSum); err != nil {
				return err
			}
			seeP.update()
			m.update2(sFound)
			return nil
		}

		if err := rc.encode(hiCnt, freqSum-hiCnt, freqSum); err != nil {
			return err
		}
		seeP.summ = uint16(uint32(seeP.summ) + freqSum)
		for j := 0; j < i; j++ {
			m.maskSymbol(a.stSymbol(ps[j]))
		}
	}
}
