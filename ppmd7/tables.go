package ppmd7

// Fixed model constants shared by the encoder and decoder. These mirror the
// PPMdH (PPMd variant H, "PPMd7") parameters as originally specified by
// Dmitry Shkarin and implemented by 7-Zip.
const (
	MinOrder = 2
	MaxOrder = 64

	MinMemSize = 2048
	MaxMemSize = 0xFFFFFFFF - 12*3 // 4294967259, matches PPMD7_MAX_MEM_SIZE

	symEnd   = -1
	symError = -2

	unitSize = 12
	maxFreq  = 124

	intBits    = 7
	periodBits = 7
	totalBits  = intBits + periodBits
	binScale   = 1 << totalBits

	n1 = 4
	n2 = 4
	n3 = 4
	n4 = (128 + 3 - n1*1 - n2*2 - n3*3) / 4

	numIndexes = n1 + n2 + n3 + n4 // 38

	maxPropSize = 5
)

var kExpEscape = [16]byte{25, 14, 9, 7, 5, 5, 4, 4, 4, 3, 3, 3, 2, 2, 2, 2}

var kInitBinEsc = [8]uint16{0x3CDD, 0x1F3F, 0x59BF, 0x48F3, 0x64A1, 0x5ABC, 0x6632, 0x6051}

func getMeanSpec(summ uint32, shift, round uint32) uint32 {
	return (summ + (1 << (shift - round))) >> shift
}

func getMean(summ uint32) uint32 {
	return getMeanSpec(summ, periodBits, 2)
}

// buildUnitTables constructs the units2index / index2units translation
// tables used by the allocator, and the ns2bsIndx / ns2Indx tables used to
// pick SEE / bin-summ contexts from a symbol count.
func buildUnitTables() (indx2units [numIndexes]uint32, units2indx [128]uint32, ns2bsIndx [256]byte, ns2Indx [256]byte) {
	k := uint32(0)
	for i := 0; i < n1; i++ {
		indx2units[k] = uint32(1 + i)
		k++
	}
	for i := 0; i < n2; i++ {
		indx2units[k] = indx2units[k-1] + 2
		k++
	}
	for i := 0; i < n3; i++ {
		indx2units[k] = indx2units[k-1] + 3
		k++
	}
	for i := 0; i < n4; i++ {
		indx2units[k] = indx2units[k-1] + 4
		k++
	}

	k = 0
	for i := 0; i < 128; i++ {
		if indx2units[k] < uint32(i+1) {
			k++
		}
		units2indx[i] = k
	}

	ns2bsIndx[0] = 2 * 0
	ns2bsIndx[1] = 2 * 1
	for i := 2; i < 11; i++ {
		ns2bsIndx[i] = 2 * 2
	}
	for i := 11; i < 256; i++ {
		ns2bsIndx[i] = 2 * 3
	}

	for i := 0; i < 3; i++ {
		ns2Indx[i] = byte(i)
	}
	m := 3
	kk := 1
	for i := 3; i < 256; i++ {
		ns2Indx[i] = byte(m)
		kk--
		if kk == 0 {
			m++
			kk = m - 2
		}
	}

	return
}
