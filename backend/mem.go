package backend

import (
	"sync"
	"time"

	"github.com/Comanx/fetchq"
)

// Memory is a RequestHandler serving resources from an in-memory map. It
// is the deterministic backend for tests and examples.
type Memory struct {
	mu        sync.RWMutex
	resources map[string][]byte

	// Delay is slept before every step, to simulate backend latency.
	Delay time.Duration
}

// NewMemory creates an empty in-memory handler.
func NewMemory() *Memory {
	return &Memory{resources: make(map[string][]byte)}
}

// Add registers a resource under the given path. Safe to call while the
// engine is running; in-flight requests keep the snapshot they opened.
func (m *Memory) Add(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = data
}

// Remove drops a resource.
func (m *Memory) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, path)
}

// RunStep implements fetchq.RequestHandler.
func (m *Memory) RunStep(t *fetchq.Task) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if t.Failed {
		return
	}
	if t.State == fetchq.StateOpening {
		m.mu.RLock()
		data, ok := m.resources[t.Path]
		m.mu.RUnlock()
		if !ok {
			t.Failed = true
			t.Finished = true
			return
		}
		t.ContentSize = int64(len(data))
		t.File = data
		if t.Buffer == nil {
			return
		}
		t.State = fetchq.StateFetching
	}
	if t.State == fetchq.StateFetching {
		data, _ := t.File.([]byte)
		if len(t.Buffer) == 0 {
			t.Failed = true
		} else {
			n := t.ContentSize - t.ContentOffset
			if avail := int64(len(t.Buffer)); n > avail {
				n = avail
			}
			copy(t.Buffer[:n], data[t.ContentOffset:t.ContentOffset+n])
			t.FetchedSize = n
			t.ContentOffset += n
		}
		if t.Failed || t.ContentOffset >= t.ContentSize {
			t.File = nil
			t.Finished = true
		}
	}
}
