package fetchq

import "testing"

func TestRingEmptyFull(t *testing.T) {
	r := newRing(3)
	if !r.empty() {
		t.Error("new ring should be empty")
	}
	if r.full() {
		t.Error("new ring should not be full")
	}
	for i := 1; i <= 3; i++ {
		r.enqueue(uint32(i))
	}
	if !r.full() {
		t.Error("ring with 3 items should be full")
	}
	if r.count() != 3 {
		t.Errorf("count = %d, want 3", r.count())
	}
}

func TestRingFIFO(t *testing.T) {
	r := newRing(4)
	for i := 1; i <= 4; i++ {
		r.enqueue(uint32(i))
	}
	for i := 1; i <= 4; i++ {
		if got := r.dequeue(); got != uint32(i) {
			t.Errorf("dequeue = %d, want %d", got, i)
		}
	}
	if !r.empty() {
		t.Error("drained ring should be empty")
	}
}

func TestRingWraparound(t *testing.T) {
	r := newRing(2)
	for round := 0; round < 10; round++ {
		r.enqueue(uint32(2 * round))
		r.enqueue(uint32(2*round + 1))
		if got := r.dequeue(); got != uint32(2*round) {
			t.Fatalf("round %d: dequeue = %d, want %d", round, got, 2*round)
		}
		if got := r.dequeue(); got != uint32(2*round+1) {
			t.Fatalf("round %d: dequeue = %d, want %d", round, got, 2*round+1)
		}
	}
}

func TestRingPeek(t *testing.T) {
	r := newRing(4)
	r.enqueue(7)
	r.enqueue(8)
	r.enqueue(9)
	// consume one so the peek window starts mid-buffer
	r.dequeue()
	if got := r.peek(0); got != 8 {
		t.Errorf("peek(0) = %d, want 8", got)
	}
	if got := r.peek(1); got != 9 {
		t.Errorf("peek(1) = %d, want 9", got)
	}
}
