package ppmd7

// model implements the PPMd7 (PPMdH) statistical model: the context trie
// held in the arena, the SEE (Secondary Escape Estimation) tables, and the
// update/rescale/escape machinery shared by both the encoder and the
// decoder. Only the side that drives the range coder differs between the
// two; the model transitions themselves are identical, which is why both
// Decoder and Encoder embed a *model and call into it after each symbol.
type model struct {
	a *arena

	minContext uint32
	maxContext uint32
	foundState uint32

	orderFall  int
	initEsc    int
	prevSuccess int
	runLength  int32
	initRL     int32
	numMasked  int
	hiBitsFlag byte

	maxOrder int

	ns2bsIndx [256]byte
	ns2Indx   [256]byte
	hb2Flag   [256]byte

	see       [25][16]see
	dummySee  see
	binSumm   [128][64]uint16

	mask [256]byte
}

type see struct {
	summ  uint16
	shift byte
	count byte
}

func (s *see) mean() uint32 {
	r := uint32(s.summ) >> s.shift
	s.summ -= uint16(r)
	if r == 0 {
		return 1
	}
	return r
}

func (s *see) update() {
	if s.shift < periodBits {
		s.count--
		if s.count == 0 {
			s.summ += s.summ
			s.count = 3 << s.shift
			s.shift++
		}
	}
}

func newModel(memSize uint32, order int) *model {
	m := &model{a: newArena(memSize), maxOrder: order}
	_, _, m.ns2bsIndx, m.ns2Indx = buildUnitTables()
	for i := range m.hb2Flag {
		if i >= 0x40 {
			m.hb2Flag[i] = 8
		}
	}
	m.restartModel()
	return m
}

func (m *model) restartModel() {
	a := m.a
	a.reset()

	m.orderFall = m.maxOrder
	if m.maxOrder < 12 {
		m.initRL = -int32(m.maxOrder) - 1
	} else {
		m.initRL = -12 - 1
	}
	m.runLength = m.initRL
	m.prevSuccess = 0

	a.hiUnit -= unitSize
	mc := a.hiUnit
	m.minContext = mc
	m.maxContext = mc

	a.setCtxSuffix(mc, 0)
	a.setCtxNumStats(mc, 256)
	a.setCtxSummFreq(mc, 256+1)

	statsRef := a.loUnit
	a.setCtxStats(mc, statsRef)
	a.loUnit += a.u2b(256 / 2)
	m.foundState = statsRef
	for i := 0; i < 256; i++ {
		s := statsRef + uint32(i)*6
		a.setStSymbol(s, byte(i))
		a.setStFreq(s, 1)
		a.setStSuccessor(s, 0)
	}

	for i := 0; i < 25; i++ {
		for k := 0; k < 16; k++ {
			m.see[i][k] = see{
				summ:  uint16((5*i + 10) << (periodBits - 4)),
				shift: periodBits - 4,
				count: 4,
			}
		}
	}
	m.dummySee = see{shift: periodBits, summ: 0, count: 64}

	for i := 0; i < 128; i++ {
		for k := 0; k < 8; k++ {
			val := binScale - uint32(kInitBinEsc[k])/uint32(i+2)
			for m2 := 0; m2 < 64; m2 += 8 {
				m.binSumm[i][k+m2] = uint16(val)
			}
		}
	}
}

// createSuccessors builds (or finds) the context chain implied by the
// current MinContext/MaxContext suffix links and FoundState successor,
// returning its address, or 0 if the arena is exhausted (caller must
// restart the model).
func (m *model) createSuccessors(skip bool) uint32 {
	a := m.a
	c := m.minContext

	upBranch := a.stSuccessor(m.foundState)

	var ps [64]uint32
	numPs := 0

	if !skip {
		ps[numPs] = m.foundState
		numPs++
	}

	for a.ctxSuffix(c) != 0 {
		c = a.ctxSuffix(c)
		var s uint32
		if a.ctxNumStats(c) != 1 {
			s = a.ctxStats(c)
			for a.stSymbol(s) != a.stSymbol(m.foundState) {
				s += 6
			}
		} else {
			s = a.ctxOneState(c)
		}
		if a.stSuccessor(s) != upBranch {
			c = a.stSuccessor(s)
			break
		}
		ps[numPs] = s
		numPs++
	}

	if numPs == 0 {
		return c
	}

	var upState struct {
		symbol    byte
		freq      uint32
		successor uint32
	}
	upState.symbol = a.base[upBranch]
	upState.successor = upBranch + 1

	if a.ctxNumStats(c) != 1 {
		s := a.ctxStats(c)
		for a.stSymbol(s) != upState.symbol {
			s += 6
		}
		cf := a.stFreq(s) - 1
		s0 := a.ctxSummFreq(c) - uint32(a.ctxNumStats(c)) - cf
		if 2*cf <= s0 {
			if 5*cf > s0 {
				upState.freq = 2
			} else {
				upState.freq = 1
			}
		} else {
			upState.freq = 1 + (2*cf+3*s0-1)/(2*s0)
		}
	} else {
		upState.freq = a.stFreq(a.ctxOneState(c))
	}

	for numPs > 0 {
		numPs--
		nc := a.allocContext()
		if nc == 0 {
			return 0
		}
		a.setCtxNumStats(nc, 1)
		one := a.ctxOneState(nc)
		a.setStSymbol(one, upState.symbol)
		a.setStFreq(one, upState.freq)
		a.setStSuccessor(one, upState.successor)
		a.setCtxSuffix(nc, c)
		a.setStSuccessor(ps[numPs], nc)
		c = nc
	}

	return c
}

func (m *model) swapStates(s1, s2 uint32) {
	a := m.a
	var tmp [6]byte
	copy(tmp[:], a.base[s1:s1+6])
	copy(a.base[s1:s1+6], a.base[s2:s2+6])
	copy(a.base[s2:s2+6], tmp[:])
}

// rescale halves every frequency in MinContext's stats array (dropping
// symbols that fall to zero) after SummFreq exceeds maxFreq*NumStats; the
// standard PPM technique for bounding frequency growth.
func (m *model) rescale() {
	a := m.a
	c := m.minContext
	stats := a.ctxStats(c)

	// bubble the found state to the front
	s := m.foundState
	for s != stats {
		m.swapStates(s, s-6)
		s -= 6
	}

	escFreq := a.ctxSummFreq(c) - a.stFreq(stats)
	a.setStFreq(stats, a.stFreq(stats)+4)

	adder := uint32(0)
	if m.orderFall != 0 {
		adder = 1
	}
	a.setStFreq(stats, (a.stFreq(stats)+adder)>>1)
	sumFreq := a.stFreq(stats)

	numStats := a.ctxNumStats(c)
	s = stats
	for i := 1; i < numStats; i++ {
		s2 := s + 6
		escFreq -= a.stFreq(s2)
		a.setStFreq(s2, (a.stFreq(s2)+adder)>>1)
		sumFreq += a.stFreq(s2)

		// keep stats sorted by freq descending
		s1 := s2
		for s1 != stats && a.stFreq(s1) > a.stFreq(s1-6) {
			m.swapStates(s1, s1-6)
			s1 -= 6
		}
		s = s2
	}

	last := stats + uint32(numStats-1)*6
	if a.stFreq(last) == 0 {
		i := numStats
		for i > 0 && a.stFreq(stats+uint32(i-1)*6) == 0 {
			i--
		}
		escFreq += uint32(numStats - i)
		numStats = i
		if numStats == 1 {
			freq := a.stFreq(stats)
			for freq > 1 {
				freq -= freq >> 1
				escFreq >>= 1
			}
			oldNU := uint32((numStatsOld(m, c) + 1) >> 1)
			_ = oldNU
			a.freeUnits(stats, uint32((a.ctxNumStats(c)+1)>>1))
			a.setCtxNumStats(c, 1)
			one := a.ctxOneState(c)
			a.copyState(one, stats)
			a.setStFreq(one, freq)
			m.foundState = one
			return
		}
	}

	n0 := uint32((a.ctxNumStats(c) + 1) >> 1)
	n1 := uint32((numStats + 1) >> 1)
	if n0 != n1 {
		stats = a.shrinkUnits(stats, n0, n1)
		a.setCtxStats(c, stats)
	}

	a.setCtxNumStats(c, numStats)
	a.setCtxSummFreq(c, sumFreq+escFreq-(escFreq>>1))
	m.foundState = stats
}

func numStatsOld(m *model, c uint32) int { return m.a.ctxNumStats(c) }

// makeEscFreq computes the SEE context used to estimate the escape
// probability out of MinContext, returning the See slot and scale.
func (m *model) makeEscFreq(numMasked int) (*see, uint32) {
	a := m.a
	c := m.minContext
	numStats := a.ctxNumStats(c)

	if numStats != 256 {
		nonMasked := numStats - numMasked
		idx := m.ns2Indx[nonMasked-1]
		row := 0
		if nonMasked < int(a.ctxNumStats(a.ctxSuffix(c)))-numStats {
			row++
		}
		if a.ctxSummFreq(c) < 11*uint32(numStats) {
			row += 2
		}
		if numMasked > nonMasked {
			row += 4
		}
		row += int(m.hiBitsFlag)
		s := &m.see[idx][row]
		r := s.mean()
		return s, r
	}
	return &m.dummySee, 1
}

func (m *model) nextContext() {
	a := m.a
	c := a.stSuccessor(m.foundState)
	if m.orderFall == 0 && c > a.text {
		m.minContext = c
		m.maxContext = c
	} else {
		m.updateModel()
	}
}

// updateModel is the core PPM update step, executed after every decoded or
// encoded symbol: it walks the suffix chain, grows contexts, and attaches
// new successors following the found state.
func (m *model) updateModel() {
	a := m.a
	fSuccessor := a.stSuccessor(m.foundState)
	c := uint32(0)

	var fSymbol = a.stSymbol(m.foundState)
	var fFreq = a.stFreq(m.foundState)

	if fFreq < maxFreq/4 && a.ctxSuffix(m.minContext) != 0 {
		cc := a.ctxSuffix(m.minContext)
		if a.ctxNumStats(cc) == 1 {
			s := a.ctxOneState(cc)
			if a.stFreq(s) < 32 {
				a.setStFreq(s, a.stFreq(s)+1)
			}
		} else {
			s := a.ctxStats(cc)
			if a.stSymbol(s) != fSymbol {
				for a.stSymbol(s) != fSymbol {
					s += 6
				}
				if a.stFreq(s) >= a.stFreq(s-6) {
					m.swapStates(s, s-6)
					s -= 6
				}
			}
			if a.stFreq(s) < maxFreq-9 {
				a.setStFreq(s, a.stFreq(s)+2)
				a.setCtxSummFreq(cc, a.ctxSummFreq(cc)+2)
			}
		}
	}

	if m.orderFall == 0 {
		nc := m.createSuccessors(true)
		if nc == 0 {
			m.restartModel()
			return
		}
		m.minContext = nc
		m.maxContext = nc
		a.setStSuccessor(m.foundState, nc)
		return
	}

	a.base[a.text] = fSymbol
	a.text++
	successorText := a.text

	if a.text >= a.unitsStart {
		m.restartModel()
		return
	}

	if fSuccessor != 0 {
		if fSuccessor <= a.unitsStart {
			// successor still points into the text area rather than a
			// materialized context: build the missing context chain.
			fSuccessor = m.createSuccessors(false)
			if fSuccessor == 0 {
				m.restartModel()
				return
			}
		}
		m.orderFall--
		if m.orderFall == 0 {
			successorText = fSuccessor
			if m.maxContext != m.minContext {
				a.text--
			}
		}
	} else {
		a.setStSuccessor(m.foundState, successorText)
		fSuccessor = m.minContext
	}

	ns := a.ctxNumStats(m.minContext)
	s0 := a.ctxSummFreq(m.minContext) - uint32(ns) - (fFreq - 1)

	for c = m.maxContext; c != m.minContext; c = a.ctxSuffix(c) {
		ns1 := a.ctxNumStats(c)
		if ns1 != 1 {
			if ns1&1 == 0 {
				oldNU := uint32(ns1 >> 1)
				newStats := a.expandUnits(a.ctxStats(c), oldNU)
				if newStats == 0 {
					m.restartModel()
					return
				}
				a.setCtxStats(c, newStats)
			}
			add := boolToU32(2*ns1 < ns) + 2*boolToU32(4*ns1 <= ns && a.ctxSummFreq(c) <= uint32(8*ns1))
			a.setCtxSummFreq(c, a.ctxSummFreq(c)+add)
		} else {
			newStats := a.allocUnits(0)
			if newStats == 0 {
				m.restartModel()
				return
			}
			a.copyState(newStats, a.ctxOneState(c))
			a.setCtxStats(c, newStats)
			f := a.stFreq(newStats)
			if f < maxFreq/4-1 {
				f += f
			} else {
				f = maxFreq - 4
			}
			a.setStFreq(newStats, f)
			a.setCtxSummFreq(c, f+uint32(m.initEsc)+boolToU32(ns > 3))
		}

		cf := 2 * fFreq * (a.ctxSummFreq(c) + 6)
		sf := s0 + a.ctxSummFreq(c)
		var freq uint32
		if cf < 6*sf {
			freq = 1 + boolToU32(cf > sf) + boolToU32(cf >= 4*sf)
			a.setCtxSummFreq(c, a.ctxSummFreq(c)+3)
		} else {
			freq = 4 + boolToU32(cf >= 9*sf) + boolToU32(cf >= 12*sf) + boolToU32(cf >= 15*sf)
			a.setCtxSummFreq(c, a.ctxSummFreq(c)+freq)
		}

		stats := a.ctxStats(c)
		newState := stats + uint32(ns1)*6
		a.setStSuccessor(newState, successorText)
		a.setStSymbol(newState, fSymbol)
		a.setStFreq(newState, freq)
		a.setCtxNumStats(c, ns1+1)
	}

	m.maxContext = fSuccessor
	m.minContext = fSuccessor
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (m *model) update1(s uint32) {
	a := m.a
	m.foundState = s
	a.setStFreq(s, a.stFreq(s)+4)
	a.setCtxSummFreq(m.minContext, a.ctxSummFreq(m.minContext)+4)
	if a.stFreq(s) > a.stFreq(s-6) {
		m.swapStates(s, s-6)
		m.foundState = s - 6
		if a.stFreq(s-6) > maxFreq {
			m.rescale()
		}
	}
}

func (m *model) update1_0(s uint32) {
	a := m.a
	m.prevSuccess = boolToInt(2*a.stFreq(s) > a.ctxSummFreq(m.minContext))
	m.runLength += int32(m.prevSuccess)
	a.setCtxSummFreq(m.minContext, a.ctxSummFreq(m.minContext)+4)
	a.setStFreq(s, a.stFreq(s)+4)
	m.foundState = s
	if a.stFreq(s) > maxFreq {
		m.rescale()
	}
}

func (m *model) updateBin(s uint32) {
	a := m.a
	m.foundState = s
	m.prevSuccess = 1
	m.runLength++
	if a.stFreq(s) < 128 {
		a.setStFreq(s, a.stFreq(s)+1)
	}
}

func (m *model) update2(s uint32) {
	a := m.a
	m.foundState = s
	a.setStFreq(s, a.stFreq(s)+4)
	a.setCtxSummFreq(m.minContext, a.ctxSummFreq(m.minContext)+4)
	if a.stFreq(s) > maxFreq {
		m.rescale()
	}
	m.runLength = m.initRL
	m.updateModel()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getBinSumm returns the bin-summ table slot for the current single-state
// context, keyed by frequency, previous-success streak, run length sign and
// the escape-count histogram index.
func (m *model) getBinSumm(s uint32) (*uint16, byte) {
	a := m.a
	freq := a.stFreq(s)
	suffixNS := a.ctxNumStats(a.ctxSuffix(m.minContext))
	indx := m.ns2bsIndx[suffixNS-1]

	r0 := m.prevSuccess
	r1 := boolToInt(m.runLength>>26&0x20 != 0)
	col := byte(indx) + byte(r0) + byte(r1)*2 + m.hb2Flag[a.stSymbol(s)] + byte(boolToInt(m.numMasked != 0))*4

	row := int(freq) - 1
	return &m.binSumm[row][col], byte(1 << numMoveBits)
}
