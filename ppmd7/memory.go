package ppmd7

import "encoding/binary"

// arena is the fixed-size byte-addressed memory pool PPMd7 allocates its
// context/state graph inside of. Every pointer in the model (successors,
// suffix links, stats arrays) is really a uint32 byte offset into base,
// which keeps the whole graph relocatable and lets it live in a plain Go
// slice instead of requiring unsafe.Pointer arithmetic.
//
// The allocation strategy mirrors 7-Zip's Ppmd7 allocator: a top-down bump
// allocator for "fast" unit allocations, a bottom-up bump allocator for
// rare/small ones, 38 free lists bucketed by unit count, and glueFreeBlocks
// to coalesce adjacent free blocks when a rare allocation can't otherwise be
// satisfied. Both this module's PPMd7 encoder and decoder share the same
// allocator, so they restart in lockstep with each other even if the exact
// fragmentation pattern ever diverged.
type arena struct {
	base []byte

	size        uint32
	alignOffset uint32

	text       uint32
	hiUnit     uint32
	loUnit     uint32
	unitsStart uint32

	glueCount uint32

	freeList [numIndexes]uint32

	indx2units [numIndexes]uint32
	units2indx [128]uint32
}

func newArena(size uint32) *arena {
	alignOffset := uint32(4 - (size & 3))
	a := &arena{
		size:        size,
		alignOffset: alignOffset,
		base:        make([]byte, alignOffset+size),
	}
	a.indx2units, a.units2indx, _, _ = buildUnitTables()
	a.reset()
	return a
}

func (a *arena) reset() {
	a.text = a.alignOffset
	a.hiUnit = a.text + a.size
	a.loUnit = a.hiUnit - a.size/8/unitSize*7*unitSize
	a.unitsStart = a.loUnit
	a.glueCount = 0
	for i := range a.freeList {
		a.freeList[i] = 0
	}
}

func (a *arena) i2u(indx int) uint32   { return a.indx2units[indx] }
func (a *arena) u2b(nu uint32) uint32  { return nu * unitSize }
func (a *arena) u2i(nu uint32) int     { return int(a.units2indx[nu-1]) }

func (a *arena) insertNode(node uint32, indx int) {
	binary.LittleEndian.PutUint32(a.base[node:], a.freeList[indx])
	a.freeList[indx] = node
}

func (a *arena) removeNode(indx int) uint32 {
	node := a.freeList[indx]
	a.freeList[indx] = binary.LittleEndian.Uint32(a.base[node:])
	return node
}

func (a *arena) splitBlock(ptr uint32, oldIndx, newIndx int) {
	nu := a.i2u(oldIndx) - a.i2u(newIndx)
	ptr += a.u2b(a.i2u(newIndx))

	i := a.u2i(nu)
	if a.i2u(i) != nu {
		i--
		k := a.i2u(i)
		a.insertNode(ptr+a.u2b(k), int(nu-k-1))
	}
	a.insertNode(ptr, i)
}

// glueFreeBlocks coalesces adjacent free blocks to fight fragmentation,
// throttled by glueCount: after a run it runs again only once 255 rare
// allocations have found no larger free block to split.
// Every free-list entry is first stamped with its unit count and linked
// into one list (the first 4 bytes of a free block normally hold the
// singly-linked free-list pointer; here they're briefly reinterpreted as a
// 2-byte stamp, 2-byte unit count, and a list link starts at byte 4). A
// guard stamp is planted at loUnit so a coalescing walk never wanders past
// the boundary into not-yet-allocated memory. Mirrors Ppmd7's
// GlueFreeBlocks.
func (a *arena) glueFreeBlocks() {
	var n uint32

	if a.loUnit != a.hiUnit {
		binary.LittleEndian.PutUint16(a.base[a.loUnit:], 1)
	}

	for i := 0; i < numIndexes; i++ {
		nu := uint16(a.indx2units[i])
		next := a.freeList[i]
		a.freeList[i] = 0
		for next != 0 {
			node := next
			next = binary.LittleEndian.Uint32(a.base[node:])
			binary.LittleEndian.PutUint16(a.base[node:], 0) // stamp = free
			binary.LittleEndian.PutUint16(a.base[node+2:], nu)
			binary.LittleEndian.PutUint32(a.base[node+4:], n)
			n = node
		}
	}

	head := n
	a.glueBlocks(n, &head)
	a.fillFreeList(head)
}

// glueBlocks walks the stamped free-block list built by glueFreeBlocks,
// merging each block into every immediately-following block that is also
// free (stamp == 0) and whose combined unit count stays under 0x10000.
// prevHead/prevOffset track where to patch out a block that glues away to
// nothing (nu == 0), mirroring the Rust port's `prev: &mut u32` that
// aliases either the list head or a kept node's next field.
func (a *arena) glueBlocks(n uint32, head *uint32) {
	prevIsHead := true
	var prevOffset uint32

	for n != 0 {
		node := n
		nu := uint32(binary.LittleEndian.Uint16(a.base[node+2:]))
		n = binary.LittleEndian.Uint32(a.base[node+4:])

		if nu == 0 {
			if prevIsHead {
				*head = n
			} else {
				binary.LittleEndian.PutUint32(a.base[prevOffset:], n)
			}
			continue
		}

		prevIsHead = false
		prevOffset = node + 4

		for {
			node2 := node + nu*unitSize
			nu2 := uint32(binary.LittleEndian.Uint16(a.base[node2+2:]))
			stamp2 := binary.LittleEndian.Uint16(a.base[node2:])
			newNU := nu + nu2
			if stamp2 != 0 || newNU >= 0x10000 {
				break
			}
			binary.LittleEndian.PutUint16(a.base[node+2:], uint16(newNU))
			binary.LittleEndian.PutUint16(a.base[node2+2:], 0)
			nu = newNU
		}
	}
}

// fillFreeList refiles the glued blocks back into the bucketed free lists,
// splitting anything over 128 units (the largest bucket) into repeated
// max-size chunks plus a remainder, the same way splitBlock divides a
// single oversized block.
func (a *arena) fillFreeList(head uint32) {
	n := head
	for n != 0 {
		node := n
		nu := uint32(binary.LittleEndian.Uint16(a.base[node+2:]))
		n = binary.LittleEndian.Uint32(a.base[node+4:])
		if nu == 0 {
			continue
		}

		for nu > 128 {
			a.insertNode(node, numIndexes-1)
			nu -= 128
			node += 128 * unitSize
		}

		i := a.u2i(nu)
		if a.i2u(i) != nu {
			i--
			k := a.i2u(i)
			a.insertNode(node+a.u2b(k), int(nu-k-1))
		}
		a.insertNode(node, i)
	}
}

func (a *arena) allocUnitsRare(indx int) uint32 {
	if a.glueCount == 0 {
		a.glueCount = 255
		a.glueFreeBlocks()
		if a.freeList[indx] != 0 {
			return a.removeNode(indx)
		}
	}

	i := indx
	for {
		i++
		if i == numIndexes {
			numBytes := a.u2b(a.i2u(indx))
			a.glueCount--
			if a.unitsStart-a.text > numBytes {
				a.unitsStart -= numBytes
				return a.unitsStart
			}
			return 0
		}
		if a.freeList[i] != 0 {
			break
		}
	}

	retVal := a.removeNode(i)
	a.splitBlock(retVal, i, indx)
	return retVal
}

func (a *arena) allocUnits(indx int) uint32 {
	if a.freeList[indx] != 0 {
		return a.removeNode(indx)
	}
	numBytes := a.u2b(a.i2u(indx))
	if numBytes <= a.hiUnit-a.loUnit {
		a.hiUnit -= numBytes
		return a.hiUnit
	}
	return a.allocUnitsRare(indx)
}

func (a *arena) allocContext() uint32 {
	if a.hiUnit != a.loUnit {
		a.hiUnit -= unitSize
		return a.hiUnit
	}
	if a.freeList[0] != 0 {
		return a.removeNode(0)
	}
	return a.allocUnitsRare(0)
}

func (a *arena) shrinkUnits(oldPtr uint32, oldNU, newNU uint32) uint32 {
	i0 := a.u2i(oldNU)
	i1 := a.u2i(newNU)
	if i0 == i1 {
		return oldPtr
	}
	if a.freeList[i1] != 0 {
		ptr := a.removeNode(i1)
		copy(a.base[ptr:ptr+a.u2b(newNU)], a.base[oldPtr:oldPtr+a.u2b(newNU)])
		a.insertNode(oldPtr, i0)
		return ptr
	}
	a.splitBlock(oldPtr, i0, i1)
	return oldPtr
}

func (a *arena) expandUnits(oldPtr uint32, oldNU uint32) uint32 {
	i0 := a.u2i(oldNU)
	i1 := a.u2i(oldNU + 1)
	if i0 == i1 {
		return oldPtr
	}
	ptr := a.allocUnits(i1)
	if ptr != 0 {
		copy(a.base[ptr:ptr+a.u2b(oldNU)], a.base[oldPtr:oldPtr+a.u2b(oldNU)])
		a.insertNode(oldPtr, i0)
	}
	return ptr
}

func (a *arena) freeUnits(ptr uint32, nu uint32) {
	a.insertNode(ptr, a.u2i(nu))
}

// --- Context accessors. A context occupies exactly one unit (12 bytes):
// NumStats(2) SummFreq(2) Stats(4) Suffix(4). When NumStats==1 the
// SummFreq+Stats region (6 bytes) is reinterpreted as the context's single
// embedded State instead.

func (a *arena) ctxNumStats(c uint32) int {
	return int(binary.LittleEndian.Uint16(a.base[c:]))
}

func (a *arena) setCtxNumStats(c uint32, v int) {
	binary.LittleEndian.PutUint16(a.base[c:], uint16(v))
}

func (a *arena) ctxSummFreq(c uint32) uint32 {
	return uint32(binary.LittleEndian.Uint16(a.base[c+2:]))
}

func (a *arena) setCtxSummFreq(c uint32, v uint32) {
	binary.LittleEndian.PutUint16(a.base[c+2:], uint16(v))
}

func (a *arena) ctxStats(c uint32) uint32 {
	return binary.LittleEndian.Uint32(a.base[c+4:])
}

func (a *arena) setCtxStats(c uint32, v uint32) {
	binary.LittleEndian.PutUint32(a.base[c+4:], v)
}

func (a *arena) ctxSuffix(c uint32) uint32 {
	return binary.LittleEndian.Uint32(a.base[c+8:])
}

func (a *arena) setCtxSuffix(c uint32, v uint32) {
	binary.LittleEndian.PutUint32(a.base[c+8:], v)
}

// ctxOneState returns the state ref of the single-symbol state embedded
// directly in a 1-stat context.
func (a *arena) ctxOneState(c uint32) uint32 { return c + 2 }

// --- State accessors. A state is 6 bytes: Symbol(1) Freq(1)
// SuccessorLow(2) SuccessorHigh(2).

func (a *arena) stSymbol(s uint32) byte     { return a.base[s] }
func (a *arena) setStSymbol(s uint32, v byte) { a.base[s] = v }

func (a *arena) stFreq(s uint32) uint32     { return uint32(a.base[s+1]) }
func (a *arena) setStFreq(s uint32, v uint32) { a.base[s+1] = byte(v) }

func (a *arena) stSuccessor(s uint32) uint32 {
	lo := binary.LittleEndian.Uint16(a.base[s+2:])
	hi := binary.LittleEndian.Uint16(a.base[s+4:])
	return uint32(lo) | uint32(hi)<<16
}

func (a *arena) setStSuccessor(s uint32, v uint32) {
	binary.LittleEndian.PutUint16(a.base[s+2:], uint16(v))
	binary.LittleEndian.PutUint16(a.base[s+4:], uint16(v>>16))
}

func (a *arena) copyState(dst, src uint32) {
	copy(a.base[dst:dst+6], a.base[src:src+6])
}
