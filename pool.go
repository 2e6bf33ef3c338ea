package fetchq

import "github.com/Comanx/fetchq/internal/constants"

// Slot ids are a 32-bit composite: low 16 bits slot index, high 16 bits
// generation counter. Index 0 is reserved as the invalid sentinel, so a
// zero id never resolves.
func makeID(index, gen uint32) uint32 {
	return (gen << 16) | (index & 0xFFFF)
}

func slotIndex(slotID uint32) uint32 {
	return slotID & 0xFFFF
}

// pool is a fixed slab of request slots with a parallel generation-counter
// array and a LIFO free-stack. Only the engine's owning goroutine touches
// the pool; the I/O side merely dereferences slots whose ownership was
// transferred to it through a queue.
type pool struct {
	slots     []slot
	genCtrs   []uint32
	freeSlots []uint32
	freeTop   int
}

func (p *pool) init(numItems int) {
	// slot 0 is reserved for the invalid id
	p.slots = make([]slot, numItems+1)
	p.genCtrs = make([]uint32, numItems+1)
	p.freeSlots = make([]uint32, numItems)
	p.freeTop = 0
	for i := numItems; i >= 1; i-- {
		p.freeSlots[p.freeTop] = uint32(i)
		p.freeTop++
	}
}

// alloc pops a free slot, bumps its generation and initializes it from the
// request. Returns 0 when the pool is exhausted.
func (p *pool) alloc(req *Request) uint32 {
	if p.freeTop == 0 {
		return 0
	}
	p.freeTop--
	index := p.freeSlots[p.freeTop]
	p.genCtrs[index]++
	slotID := makeID(index, p.genCtrs[index])

	s := &p.slots[index]
	*s = slot{
		handleID: slotID,
		state:    StateAllocated,
		channel:  req.Channel,
		lane:     constants.InvalidLane,
		callback: req.Callback,
		buffer:   req.Buffer,
		path:     req.Path,
	}
	if len(req.UserData) > 0 {
		s.user.userDataSize = copy(s.user.userData[:], req.UserData)
	}
	return slotID
}

// free zeroes the slot and pushes its index back on the free-stack. The
// generation was already bumped at alloc time, so any handle still held by
// user code is stale from here on.
func (p *pool) free(slotID uint32) {
	index := slotIndex(slotID)
	s := &p.slots[index]
	if s.handleID != slotID {
		// double free or stale id, ignore
		return
	}
	*s = slot{}
	p.freeSlots[p.freeTop] = index
	p.freeTop++
}

// lookup resolves a slot id to its record, or nil when the id is zero, out
// of range, or stale (generation mismatch). Stale handles fail closed.
func (p *pool) lookup(slotID uint32) *slot {
	index := slotIndex(slotID)
	if index == 0 || int(index) >= len(p.slots) {
		return nil
	}
	s := &p.slots[index]
	if s.handleID != slotID {
		return nil
	}
	return s
}
