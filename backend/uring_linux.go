//go:build linux

package backend

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/Comanx/fetchq"
)

// URingFile is a filesystem RequestHandler that performs chunk reads
// through io_uring instead of the plain read path. Steps from different
// channel workers are serialized on the ring.
type URingFile struct {
	mu   sync.Mutex
	ring *giouring.Ring
}

// NewURingFile creates an io_uring-backed filesystem handler with the
// given submission queue size.
func NewURingFile(entries uint32) (*URingFile, error) {
	if entries == 0 {
		entries = 8
	}
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create io_uring: %w", err)
	}
	return &URingFile{ring: ring}, nil
}

// Close releases the ring. Call after the engine is shut down.
func (u *URingFile) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ring != nil {
		u.ring.QueueExit()
		u.ring = nil
	}
	return nil
}

// RunStep implements fetchq.RequestHandler.
func (u *URingFile) RunStep(t *fetchq.Task) {
	if t.Failed {
		return
	}
	if t.State == fetchq.StateOpening {
		fh, err := os.Open(t.Path)
		if err != nil {
			t.Failed = true
			t.Finished = true
			return
		}
		st, err := fh.Stat()
		if err != nil {
			fh.Close()
			t.Failed = true
			t.Finished = true
			return
		}
		t.ContentSize = st.Size()
		t.File = fh
		if t.Buffer == nil {
			return
		}
		t.State = fetchq.StateFetching
	}
	if t.State == fetchq.StateFetching {
		u.fetchStep(t)
	}
}

func (u *URingFile) fetchStep(t *fetchq.Task) {
	fh, _ := t.File.(*os.File)
	if len(t.Buffer) == 0 {
		t.Failed = true
	} else {
		n := t.ContentSize - t.ContentOffset
		if avail := int64(len(t.Buffer)); n > avail {
			n = avail
		}
		if n > 0 {
			if err := u.pread(int(fh.Fd()), t.Buffer[:n], t.ContentOffset); err != nil {
				t.Failed = true
			}
		}
		if !t.Failed {
			t.FetchedSize = n
			t.ContentOffset += n
		}
	}
	if t.Failed || t.ContentOffset >= t.ContentSize {
		if fh != nil {
			fh.Close()
		}
		t.File = nil
		t.Finished = true
	}
}

// pread fills buf from the file at the given offset through the ring,
// retrying partial reads until buf is full.
func (u *URingFile) pread(fd int, buf []byte, off int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ring == nil {
		return fmt.Errorf("ring is closed")
	}
	for len(buf) > 0 {
		sqe := u.ring.GetSQE()
		if sqe == nil {
			return fmt.Errorf("submission queue full")
		}
		sqe.PrepareRead(fd, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), uint64(off))
		sqe.UserData = uint64(fd)
		if _, err := u.ring.SubmitAndWait(1); err != nil {
			return err
		}
		var cqes [1]*giouring.CompletionQueueEvent
		if peeked := u.ring.PeekBatchCQE(cqes[:]); peeked == 0 {
			return fmt.Errorf("no completion after submit")
		}
		res := cqes[0].Res
		u.ring.CQAdvance(1)
		if res < 0 {
			return syscall.Errno(-res)
		}
		if res == 0 {
			return fmt.Errorf("short read at offset %d", off)
		}
		buf = buf[res:]
		off += int64(res)
	}
	return nil
}
