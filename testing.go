package fetchq

import (
	"sync"
	"time"
)

// MockHandler is a scripted RequestHandler for testing code that embeds the
// engine. Resources live in memory, failures can be injected per path, and
// step counts are tracked for verification.
type MockHandler struct {
	mu        sync.Mutex
	resources map[string][]byte
	failOpen  map[string]bool
	failFetch map[string]bool

	openSteps  int
	fetchSteps int

	// StepDelay makes every step sleep, to simulate a slow backend.
	StepDelay time.Duration
}

// NewMockHandler creates an empty mock handler.
func NewMockHandler() *MockHandler {
	return &MockHandler{
		resources: make(map[string][]byte),
		failOpen:  make(map[string]bool),
		failFetch: make(map[string]bool),
	}
}

// Add registers a resource under the given path.
func (m *MockHandler) Add(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = data
}

// FailOpen makes the opening step fail for the given path.
func (m *MockHandler) FailOpen(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[path] = true
}

// FailFetch makes every fetching step fail for the given path.
func (m *MockHandler) FailFetch(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFetch[path] = true
}

// OpenSteps returns the number of opening steps performed.
func (m *MockHandler) OpenSteps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openSteps
}

// FetchSteps returns the number of fetching steps performed.
func (m *MockHandler) FetchSteps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchSteps
}

// RunStep implements RequestHandler.
func (m *MockHandler) RunStep(t *Task) {
	if m.StepDelay > 0 {
		time.Sleep(m.StepDelay)
	}
	if t.Failed {
		return
	}
	if t.State == StateOpening {
		m.mu.Lock()
		m.openSteps++
		data, ok := m.resources[t.Path]
		fail := m.failOpen[t.Path]
		m.mu.Unlock()
		if !ok || fail {
			t.Failed = true
			t.Finished = true
			return
		}
		t.ContentSize = int64(len(data))
		// the open handle is the data snapshot itself
		t.File = data
		if t.Buffer == nil {
			return
		}
		t.State = StateFetching
	}
	if t.State == StateFetching {
		m.mu.Lock()
		m.fetchSteps++
		fail := m.failFetch[t.Path]
		m.mu.Unlock()
		data, _ := t.File.([]byte)
		if fail || len(t.Buffer) == 0 {
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
