package fetchq

import "testing"

func testRequest() *Request {
	return &Request{
		Path:     "some/path",
		Callback: func(*Response) {},
	}
}

func TestPoolAllocFree(t *testing.T) {
	var p pool
	p.init(4)

	id := p.alloc(testRequest())
	if id == 0 {
		t.Fatal("alloc returned invalid id")
	}
	if slotIndex(id) == 0 {
		t.Error("slot 0 is reserved and must never be handed out")
	}
	s := p.lookup(id)
	if s == nil {
		t.Fatal("lookup of live id failed")
	}
	if s.state != StateAllocated {
		t.Errorf("state = %v, want allocated", s.state)
	}
	if s.lane != -1 {
		t.Errorf("lane = %d, want -1", s.lane)
	}

	p.free(id)
	if p.lookup(id) != nil {
		t.Error("lookup of freed id should fail")
	}
}

func TestPoolExhaustion(t *testing.T) {
	var p pool
	p.init(2)

	id1 := p.alloc(testRequest())
	id2 := p.alloc(testRequest())
	if id1 == 0 || id2 == 0 {
		t.Fatal("allocs within capacity failed")
	}
	if id3 := p.alloc(testRequest()); id3 != 0 {
		t.Errorf("alloc beyond capacity = %d, want 0", id3)
	}
	p.free(id1)
	if id4 := p.alloc(testRequest()); id4 == 0 {
		t.Error("alloc after free failed")
	}
}

func TestPoolStaleHandle(t *testing.T) {
	var p pool
	p.init(1)

	id1 := p.alloc(testRequest())
	p.free(id1)
	id2 := p.alloc(testRequest())

	if slotIndex(id1) != slotIndex(id2) {
		t.Fatal("expected slot reuse with a single-slot pool")
	}
	if id1 == id2 {
		t.Error("generation must differ after slot reuse")
	}
	if p.lookup(id1) != nil {
		t.Error("stale handle must not resolve to the reused slot")
	}
	if p.lookup(id2) == nil {
		t.Error("live handle must resolve")
	}
}

func TestPoolLookupBounds(t *testing.T) {
	var p pool
	p.init(2)

	if p.lookup(0) != nil {
		t.Error("zero id must not resolve")
	}
	if p.lookup(makeID(500, 1)) != nil {
		t.Error("out-of-range index must not resolve")
	}
}

func TestPoolDoubleFree(t *testing.T) {
	var p pool
	p.init(2)

	id := p.alloc(testRequest())
	p.free(id)
	// second free of the same id must be ignored, not corrupt the stack
	p.free(id)

	if got := p.alloc(testRequest()); got == 0 {
		t.Fatal("alloc after double free failed")
	}
	if got := p.alloc(testRequest()); got == 0 {
		t.Fatal("second alloc failed")
	}
	if got := p.alloc(testRequest()); got != 0 {
		t.Error("pool handed out more slots than its capacity")
	}
}

func TestMakeIDRoundTrip(t *testing.T) {
	id := makeID(0x1234, 0xABCD)
	if slotIndex(id) != 0x1234 {
		t.Errorf("slotIndex = %#x, want 0x1234", slotIndex(id))
	}
	if id>>16 != 0xABCD {
		t.Errorf("generation = %#x, want 0xABCD", id>>16)
	}
}
