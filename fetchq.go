// Package fetchq provides an asynchronous resource loading engine: many
// concurrent read requests against a slow I/O backend, without blocking the
// submitting goroutine and without allocating after setup. Responses are
// delivered as callbacks on the owning goroutine, advanced by explicit
// DoWork ticks.
//
// An engine is composed of a fixed-capacity request pool and a set of
// channels. Each channel owns a bounded number of lanes (the rate limiter)
// and, by default, a worker goroutine that performs the actual I/O through
// a pluggable RequestHandler. Requests ping-pong between the user side and
// the I/O side until the resource is exhausted, failed or cancelled.
//
// Example:
//
//	eng, err := fetchq.New(fetchq.DefaultConfig(backend.NewFile()), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Shutdown()
//
//	buf := make([]byte, 64*1024)
//	eng.Send(fetchq.Request{
//		Path:   "assets/level1.dat",
//		Buffer: buf,
//		Callback: func(r *fetchq.Response) {
//			if r.Fetched {
//				consume(buf[:r.FetchedSize])
//			}
//		},
//	})
//	for !done {
//		eng.DoWork() // once per frame
//	}
package fetchq

import (
	"fmt"

	"github.com/Comanx/fetchq/internal/constants"
	"github.com/Comanx/fetchq/internal/logging"
)

// Logger is the minimal logging interface accepted by the engine. The
// internal/logging package satisfies it; so does any logger with Printf and
// Debugf methods.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Config describes an engine. Zero fields take their documented defaults.
type Config struct {
	// MaxRequests is the request pool capacity (default 128, clamped to
	// MaxPoolSize).
	MaxRequests int

	// NumChannels is the number of independent channels (default 1,
	// clamped to MaxChannels).
	NumChannels int

	// NumLanes is the per-channel concurrency cap (default 1).
	NumLanes int

	// Handler is the RequestHandler used by every channel.
	Handler RequestHandler

	// Handlers optionally assigns one handler per channel; when set its
	// length must equal NumChannels and it takes precedence over Handler.
	Handlers []RequestHandler

	// Inline disables the channel workers: DoWork invokes the handlers
	// directly on the calling goroutine. Handlers implementing
	// AsyncRequestHandler then complete asynchronously through the
	// channel's outgoing queue. Intended for asynchronous backends and
	// deterministic tests.
	Inline bool
}

// DefaultConfig returns a config with default pool and channel sizing and
// the given handler on all channels.
func DefaultConfig(handler RequestHandler) Config {
	return Config{
		MaxRequests: constants.DefaultMaxRequests,
		NumChannels: constants.DefaultNumChannels,
		NumLanes:    constants.DefaultNumLanes,
		Handler:     handler,
	}
}

// Options contains optional engine knobs.
type Options struct {
	// Logger receives engine diagnostics. Nil disables them; setup
	// clamp warnings still go to the process default logger.
	Logger Logger

	// Observer collects I/O statistics. Nil selects a MetricsObserver
	// over the engine's own Metrics.
	Observer Observer

	// CPUAffinity pins channel workers to CPUs, round-robin over the
	// mask (Linux only; ignored elsewhere and in inline mode).
	CPUAffinity []int
}

// Engine is an asynchronous resource loading engine. An Engine is owned by
// the goroutine that created it: Send, DoWork, the lifecycle calls and the
// buffer calls must all come from that goroutine.
type Engine struct {
	valid    bool
	cfg      Config
	opts     Options
	pool     pool
	channels []*channel

	inCallback bool
	resp       Response

	logger   Logger
	observer Observer
	metrics  *Metrics
}

// New creates an engine. All queue and pool memory is allocated here; the
// engine does not allocate afterwards.
func New(cfg Config, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &Options{}
	}
	if cfg.MaxRequests < 0 || cfg.NumChannels < 0 || cfg.NumLanes < 0 {
		return nil, NewError("SETUP", ErrCodeInvalidParameters, "negative pool or channel sizing")
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = constants.DefaultMaxRequests
	}
	if cfg.NumChannels == 0 {
		cfg.NumChannels = constants.DefaultNumChannels
	}
	if cfg.NumLanes == 0 {
		cfg.NumLanes = constants.DefaultNumLanes
	}

	logger := opts.Logger
	if cfg.MaxRequests > constants.MaxRequests {
		cfg.MaxRequests = constants.MaxRequests
		logging.Default().Warn("clamping MaxRequests", "max", constants.MaxRequests)
	}
	if cfg.NumChannels > constants.MaxChannels {
		cfg.NumChannels = constants.MaxChannels
		logging.Default().Warn("clamping NumChannels", "max", constants.MaxChannels)
	}

	handlers := cfg.Handlers
	if len(handlers) == 0 {
		if cfg.Handler == nil {
			return nil, NewError("SETUP", ErrCodeInvalidParameters, "no request handler configured")
		}
		handlers = make([]RequestHandler, cfg.NumChannels)
		for i := range handlers {
			handlers[i] = cfg.Handler
		}
	} else if len(handlers) != cfg.NumChannels {
		return nil, NewError("SETUP", ErrCodeInvalidParameters,
			fmt.Sprintf("got %d handlers for %d channels", len(handlers), cfg.NumChannels))
	}
	for i, h := range handlers {
		if h == nil {
			return nil, NewError("SETUP", ErrCodeInvalidParameters, fmt.Sprintf("nil handler for channel %d", i))
		}
	}

	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	e := &Engine{
		valid:    true,
		cfg:      cfg,
		opts:     *opts,
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}
	e.pool.init(cfg.MaxRequests)
	e.channels = make([]*channel, cfg.NumChannels)
	for i := range e.channels {
		e.channels[i] = newChannel(e, i, cfg.MaxRequests, cfg.NumLanes, handlers[i], cfg.Inline)
		if !cfg.Inline {
			e.channels[i].start()
		}
	}

	if logger != nil {
		logger.Printf("engine ready: %d channels x %d lanes, %d request slots",
			cfg.NumChannels, cfg.NumLanes, cfg.MaxRequests)
	}
	return e, nil
}

// Shutdown stops the channel workers and invalidates the engine. Requests
// still in flight are dropped without further callbacks. Must be called
// from the owning goroutine; the engine cannot be reused afterwards.
func (e *Engine) Shutdown() {
	if !e.valid {
		return
	}
	e.valid = false
	for _, c := range e.channels {
		if !c.inline {
			c.join()
		}
	}
	e.metrics.Stop()
	if e.logger != nil {
		e.logger.Debugf("engine shut down")
	}
}

// Valid reports whether the engine is between a successful New and
// Shutdown.
func (e *Engine) Valid() bool {
	return e != nil && e.valid
}

// MaxRequests returns the resolved request pool capacity.
func (e *Engine) MaxRequests() int { return e.cfg.MaxRequests }

// NumChannels returns the resolved channel count.
func (e *Engine) NumChannels() int { return e.cfg.NumChannels }

// NumLanes returns the resolved per-channel lane count.
func (e *Engine) NumLanes() int { return e.cfg.NumLanes }

// Metrics returns the engine's metrics instance.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot { return e.metrics.Snapshot() }

func (e *Engine) validateRequest(req *Request) error {
	if req.Channel < 0 || req.Channel >= e.cfg.NumChannels {
		return NewError("SEND", ErrCodeInvalidParameters,
			fmt.Sprintf("channel %d out of range [0,%d)", req.Channel, e.cfg.NumChannels))
	}
	if req.Path == "" {
		return NewError("SEND", ErrCodeInvalidParameters, "empty path")
	}
	if len(req.Path) >= constants.MaxPath {
		return NewError("SEND", ErrCodeInvalidParameters, "path too long")
	}
	if req.Callback == nil {
		return NewError("SEND", ErrCodeInvalidParameters, "missing callback")
	}
	if len(req.UserData) > constants.MaxUserdataBytes {
		return NewError("SEND", ErrCodeInvalidParameters,
			fmt.Sprintf("user data too big (%d > %d bytes)", len(req.UserData), constants.MaxUserdataBytes))
	}
	return nil
}

// Send submits a request and returns its handle. The zero handle reports
// failure: invalid arguments, an exhausted request pool, or an overflowed
// channel queue. No callback is ever delivered for a failed submission.
func (e *Engine) Send(req Request) Handle {
	if !e.valid {
		return Handle{}
	}
	if err := e.validateRequest(&req); err != nil {
		if e.logger != nil {
			e.logger.Printf("send rejected: %v", err)
		}
		e.metrics.RecordSend(false)
		return Handle{}
	}
	slotID := e.pool.alloc(&req)
	if slotID == 0 {
		if e.logger != nil {
			e.logger.Printf("send rejected: request pool exhausted")
		}
		e.metrics.RecordSend(false)
		return Handle{}
	}
	if !e.channels[req.Channel].send(slotID) {
		// the channel's sent-queue overflowed; the slot generation was
		// already bumped at alloc, so freeing here keeps old handles stale
		e.pool.free(slotID)
		if e.logger != nil {
			e.logger.Printf("send rejected: channel %d queue overflow", req.Channel)
		}
		e.metrics.RecordSend(false)
		return Handle{}
	}
	e.metrics.RecordSend(true)
	return Handle{id: slotID}
}

// DoWork advances all in-flight requests and delivers pending response
// callbacks. Call it regularly (e.g. once per frame) from the owning
// goroutine. Each channel is pumped twice per call so that a request
// finishing its opening step can be dispatched to fetch data within the
// same tick.
func (e *Engine) DoWork() {
	if !e.valid {
		return
	}
	for pass := 0; pass < 2; pass++ {
		for _, c := range e.channels {
			c.doWork()
		}
	}
}

// HandleValid reports whether the handle refers to a live request.
func (e *Engine) HandleValid(h Handle) bool {
	if !e.valid || h.id == 0 {
		return false
	}
	return e.pool.lookup(h.id) != nil
}

// Pause parks an in-flight request: the callback keeps firing each tick
// with Paused set, but no further I/O happens until Continue. A pending
// continue is discarded. No-op on stale handles.
func (e *Engine) Pause(h Handle) {
	if !e.valid {
		return
	}
	if s := e.pool.lookup(h.id); s != nil {
		s.user.pause = true
		s.user.cont = false
	}
}

// Continue resumes a paused request. A pending pause is discarded. No-op
// on stale handles.
func (e *Engine) Continue(h Handle) {
	if !e.valid {
		return
	}
	if s := e.pool.lookup(h.id); s != nil {
		s.user.cont = true
		s.user.pause = false
	}
}

// Cancel terminates a request. The cancellation is observed at the next
// pump boundary; I/O already running on the worker completes first. The
// callback fires exactly once more with Cancelled, Failed and Finished
// set. Cancel dominates pending pause and continue flags. No-op on stale
// handles.
func (e *Engine) Cancel(h Handle) {
	if !e.valid {
		return
	}
	if s := e.pool.lookup(h.id); s != nil {
		s.user.pause = false
		s.user.cont = false
		s.user.cancel = true
	}
}

// BindBuffer binds a chunk buffer to a request. Only legal from inside a
// response callback, and only when no buffer is currently bound.
func (e *Engine) BindBuffer(h Handle, buf []byte) error {
	if !e.valid {
		return NewError("BIND_BUFFER", ErrCodeShutdown, "engine is shut down")
	}
	if !e.inCallback {
		return NewError("BIND_BUFFER", ErrCodeNotInCallback, "BindBuffer is only valid inside a response callback")
	}
	if len(buf) == 0 {
		return NewError("BIND_BUFFER", ErrCodeInvalidParameters, "empty buffer")
	}
	s := e.pool.lookup(h.id)
	if s == nil {
		return nil
	}
	if s.buffer != nil {
		return NewError("BIND_BUFFER", ErrCodeInvalidParameters, "a buffer is already bound")
	}
	s.buffer = buf
	return nil
}

// UnbindBuffer detaches and returns the currently bound buffer. Only legal
// from inside a response callback. Returns nil for stale handles or when
// no buffer is bound.
func (e *Engine) UnbindBuffer(h Handle) ([]byte, error) {
	if !e.valid {
		return nil, NewError("UNBIND_BUFFER", ErrCodeShutdown, "engine is shut down")
	}
	if !e.inCallback {
		return nil, NewError("UNBIND_BUFFER", ErrCodeNotInCallback, "UnbindBuffer is only valid inside a response callback")
	}
	s := e.pool.lookup(h.id)
	if s == nil {
		return nil, nil
	}
	prev := s.buffer
	s.buffer = nil
	return prev, nil
}
