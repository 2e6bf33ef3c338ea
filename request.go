package fetchq

import (
	"github.com/Comanx/fetchq/internal/constants"
)

// Handle identifies an in-flight request. Handles are generation-stamped:
// once the request finishes and its pool slot is recycled, every copy of the
// old handle becomes stale and all lifecycle calls on it turn into no-ops.
// The zero Handle is never valid.
type Handle struct {
	id uint32
}

// IsValid reports whether the handle is not the never-valid zero handle. It
// cannot detect staleness; use Engine.HandleValid for a liveness check.
func (h Handle) IsValid() bool {
	return h.id != 0
}

// State is the lifecycle state of a request. Requests ping-pong between the
// user side and the I/O side, changing state at each hand-off.
type State uint8

const (
	// StateInitial marks a zeroed, unallocated slot.
	StateInitial State = iota
	// StateAllocated marks a request allocated from the pool but not yet
	// dispatched to its channel's I/O side.
	StateAllocated
	// StateOpening marks a request on the I/O side waiting to be opened.
	StateOpening
	// StateOpened is the user-side follow state of StateOpening when no
	// buffer was bound upfront; the response callback runs in this state
	// so user code can inspect ContentSize and bind a matching buffer.
	StateOpened
	// StateFetching marks a request on the I/O side waiting for a chunk.
	StateFetching
	// StateFetched is the user-side follow state of StateFetching; fetched
	// data is available in the bound buffer.
	StateFetched
	// StatePaused marks a request parked by Engine.Pause.
	StatePaused
	// StateFailed is the terminal follow state of StateOpening or
	// StateFetching when something went wrong, and of cancellation.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAllocated:
		return "allocated"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateFetching:
		return "fetching"
	case StateFetched:
		return "fetched"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback is invoked on the engine's owning goroutine during DoWork with
// the response for one request hand-off. The *Response is only valid for
// the duration of the call.
type Callback func(*Response)

// Request describes one fetch submission.
type Request struct {
	// Channel selects the channel the request runs on. Must be less than
	// the engine's NumChannels. Default 0.
	Channel int

	// Path names the resource to load. Required, must be shorter than
	// MaxPath bytes. Its interpretation is up to the channel's handler
	// (filesystem path, URL, ...).
	Path string

	// Callback receives all responses for this request. Required.
	Callback Callback

	// Buffer optionally pre-binds a chunk buffer. When set, the opened
	// state is skipped and data is fetched immediately.
	Buffer []byte

	// UserData is an optional blob copied into the request slot, at most
	// MaxUserdataBytes long. The copy is handed back through
	// Response.UserData on every callback.
	UserData []byte
}

// Response is passed to the request callback on each hand-off back to the
// user side. Exactly one of Opened, Fetched, Paused or Failed is set;
// Finished marks the terminal invocation.
type Response struct {
	Handle  Handle
	Channel int
	Lane    int

	// Opened: the resource was opened, ContentSize is known, no buffer is
	// bound yet. Bind one in the callback to start fetching.
	Opened bool
	// Fetched: a chunk of FetchedSize bytes starting at ContentOffset is
	// available in Buffer.
	Fetched bool
	// Paused: the request is parked; the callback fires each tick until
	// Continue or Cancel.
	Paused bool
	// Finished: terminal invocation; the handle is stale afterwards.
	Finished bool
	// Failed: the request failed (open error, read error, missing buffer,
	// or cancellation).
	Failed bool
	// Cancelled: the failure was caused by Engine.Cancel.
	Cancelled bool

	// Path is the request path. Only valid during the callback.
	Path string

	// UserData aliases the slot's user-data copy. It may be mutated and
	// stays alive until the terminal callback returns.
	UserData []byte

	// ContentSize is the total size of the resource in bytes.
	ContentSize int64
	// ContentOffset is the byte offset of the current chunk.
	ContentOffset int64
	// FetchedSize is the size of the current chunk in Buffer.
	FetchedSize int64

	// Buffer is the currently bound chunk buffer (nil if none).
	Buffer []byte
}

// Task is the I/O-side view of an in-flight request, handed to a
// RequestHandler. The handler owns the Task from the queue hand-off that
// delivered the slot until the hand-off that returns it; the engine does
// not touch these fields in between.
type Task struct {
	// State is the request state at dispatch time. Handlers act on
	// StateOpening and StateFetching and must ignore everything else.
	State State

	// Path is the resource path from the request.
	Path string

	// Buffer is the chunk buffer currently bound to the request, nil if
	// none is bound.
	Buffer []byte

	// ContentSize is the total resource size, written by the handler
	// during the opening step.
	ContentSize int64
	// ContentOffset is the running fetch position, advanced by the
	// handler after each chunk.
	ContentOffset int64
	// FetchedSize is the size of the chunk produced by the last step.
	FetchedSize int64

	// Failed is set by the handler on any terminal error.
	Failed bool
	// Finished is set by the handler when the resource is exhausted or
	// failed; the engine then reports the terminal response.
	Finished bool

	// File is handler-owned storage for an open resource handle. It is
	// opaque to the engine and survives across steps of one request.
	File any
}

// RequestHandler performs one backend-specific I/O step for a request:
// open the resource when the task is in StateOpening, fetch the next chunk
// when it is in StateFetching, and do nothing for any other state. RunStep
// may block; it runs on the channel's worker goroutine (or on the engine
// goroutine in inline mode).
type RequestHandler interface {
	RunStep(t *Task)
}

// AsyncRequestHandler is an optional capability for handlers whose I/O
// completes asynchronously. In inline mode the engine prefers StartStep
// over RunStep: the handler starts the step and calls done exactly once
// when it completes. done is safe to call from any goroutine.
type AsyncRequestHandler interface {
	RequestHandler
	StartStep(t *Task, done func())
}

// userState is the user-side sub-record of a slot. Only the engine's owning
// goroutine reads or writes it.
type userState struct {
	pause  bool
	cont   bool
	cancel bool

	// mirrored I/O progress, copied from the task at each hand-off back
	contentSize   int64
	contentOffset int64
	fetchedSize   int64

	finished bool

	userDataSize int
	userData     [constants.MaxUserdataBytes]byte
}

// slot is one request record in the pool. The user-side fields and the
// task sub-record are strictly partitioned; ownership of the whole slot
// moves with its id through the channel queues.
type slot struct {
	handleID uint32
	state    State
	channel  int
	lane     int
	callback Callback
	buffer   []byte
	path     string

	user userState

	// owned by the I/O side while the request is opening or fetching
	task Task
}
