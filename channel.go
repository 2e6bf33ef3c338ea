package fetchq

import (
	"sync"
	"time"
)

// channel is an independent lane group with its own queues and, unless the
// engine runs in inline mode, a dedicated worker goroutine.
//
// Four rings shuttle slot ids through the request lifecycle: free_lanes is
// the rate limiter, user_sent the backlog waiting for a lane, user_incoming
// the batch ready for the I/O side, user_outgoing the results coming back.
// With a worker, thread_incoming and thread_outgoing sit between the user
// side and the worker; they are the only rings accessed from two
// goroutines and are guarded by their side's lock while crossing.
type channel struct {
	eng     *Engine
	index   int
	handler RequestHandler
	inline  bool

	freeLanes    ring
	userSent     ring
	userIncoming ring
	userOutgoing ring

	threadIncoming ring
	threadOutgoing ring

	incomingMu   sync.Mutex
	incomingCond *sync.Cond
	outgoingMu   sync.Mutex

	// guarded by incomingMu
	stopRequested bool

	wg sync.WaitGroup
}

func newChannel(eng *Engine, index int, numItems, numLanes int, handler RequestHandler, inline bool) *channel {
	c := &channel{
		eng:            eng,
		index:          index,
		handler:        handler,
		inline:         inline,
		freeLanes:      newRing(numLanes),
		userSent:       newRing(numItems),
		userIncoming:   newRing(numLanes),
		userOutgoing:   newRing(numLanes),
		threadIncoming: newRing(numLanes),
		threadOutgoing: newRing(numLanes),
	}
	c.incomingCond = sync.NewCond(&c.incomingMu)
	for lane := 0; lane < numLanes; lane++ {
		c.freeLanes.enqueue(uint32(lane))
	}
	return c
}

// send puts a freshly allocated request into the channel's sent-queue,
// where it waits until a lane becomes free. Reports false when the queue
// is full.
func (c *channel) send(slotID uint32) bool {
	if c.userSent.full() {
		return false
	}
	c.userSent.enqueue(slotID)
	return true
}

// enqueueIncoming splices user_incoming into thread_incoming under the
// incoming lock and wakes the worker. User side only.
func (c *channel) enqueueIncoming() {
	if c.userIncoming.empty() {
		return
	}
	c.incomingMu.Lock()
	for !c.threadIncoming.full() && !c.userIncoming.empty() {
		c.threadIncoming.enqueue(c.userIncoming.dequeue())
	}
	c.incomingMu.Unlock()
	c.incomingCond.Signal()
}

// dequeueIncoming blocks until a slot id arrives or stop is requested.
// Worker side only.
func (c *channel) dequeueIncoming() (uint32, bool) {
	c.incomingMu.Lock()
	defer c.incomingMu.Unlock()
	for c.threadIncoming.empty() && !c.stopRequested {
		c.incomingCond.Wait()
	}
	if c.stopRequested {
		return 0, false
	}
	return c.threadIncoming.dequeue(), true
}

// enqueueOutgoing pushes a processed slot id onto thread_outgoing. Called
// from the worker, or from arbitrary goroutines via async completions.
func (c *channel) enqueueOutgoing(slotID uint32) {
	c.outgoingMu.Lock()
	if !c.threadOutgoing.full() {
		c.threadOutgoing.enqueue(slotID)
	}
	c.outgoingMu.Unlock()
}

// drainOutgoing splices thread_outgoing into user_outgoing under the
// outgoing lock. User side only.
func (c *channel) drainOutgoing() {
	c.outgoingMu.Lock()
	for !c.userOutgoing.full() && !c.threadOutgoing.empty() {
		c.userOutgoing.enqueue(c.threadOutgoing.dequeue())
	}
	c.outgoingMu.Unlock()
}

// runStep resolves the slot and lets the handler perform one I/O step,
// reporting the step to the observer.
func (c *channel) runStep(slotID uint32) {
	s := c.eng.pool.lookup(slotID)
	if s == nil {
		return
	}
	t := &s.task
	stateAtDispatch := t.State
	prevOffset := t.ContentOffset

	start := time.Now()
	c.handler.RunStep(t)
	c.observeStep(t, stateAtDispatch, prevOffset, uint64(time.Since(start).Nanoseconds()))
}

func (c *channel) observeStep(t *Task, stateAtDispatch State, prevOffset int64, latencyNs uint64) {
	obs := c.eng.observer
	if obs == nil {
		return
	}
	if stateAtDispatch == StateOpening {
		obs.ObserveOpen(latencyNs, !t.Failed)
	}
	if fetched := t.ContentOffset - prevOffset; fetched > 0 || stateAtDispatch == StateFetching {
		obs.ObserveFetch(uint64(fetched), latencyNs, !t.Failed)
	}
}

// dispatchInline drains user_incoming on the calling goroutine, invoking
// the handler directly. Asynchronous handlers get StartStep and complete
// through thread_outgoing whenever their I/O finishes; synchronous ones
// complete immediately.
func (c *channel) dispatchInline() {
	async, isAsync := c.handler.(AsyncRequestHandler)
	for !c.userIncoming.empty() {
		slotID := c.userIncoming.dequeue()
		s := c.eng.pool.lookup(slotID)
		if s == nil {
			continue
		}
		if isAsync {
			t := &s.task
			stateAtDispatch := t.State
			prevOffset := t.ContentOffset
			start := time.Now()
			async.StartStep(t, func() {
				c.observeStep(t, stateAtDispatch, prevOffset, uint64(time.Since(start).Nanoseconds()))
				c.enqueueOutgoing(slotID)
			})
		} else {
			c.runStep(slotID)
			c.enqueueOutgoing(slotID)
		}
	}
}

// start launches the channel worker.
func (c *channel) start() {
	c.wg.Add(1)
	go c.workerLoop()
}

// join requests the worker to stop, wakes it and waits for it to exit.
// Slot ids still queued on thread_incoming are dropped; shutdown does not
// deliver further callbacks.
func (c *channel) join() {
	c.incomingMu.Lock()
	c.stopRequested = true
	c.incomingMu.Unlock()
	c.incomingCond.Signal()
	c.wg.Wait()
}
