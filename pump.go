package fetchq

// doWork runs one pump pass for a channel: promote queued requests into
// free lanes, apply pending user-side control flags, cross slots to and
// from the I/O side, then drain results and deliver callbacks.
func (c *channel) doWork() {
	p := &c.eng.pool

	// move items from the sent- to the incoming-queue permitting free lanes
	numMove := c.userSent.count()
	if avail := c.freeLanes.count(); avail < numMove {
		numMove = avail
	}
	for i := 0; i < numMove; i++ {
		slotID := c.userSent.dequeue()
		s := p.lookup(slotID)
		if s == nil {
			continue
		}
		s.lane = int(c.freeLanes.dequeue())
		c.userIncoming.enqueue(slotID)
	}
	if obs := c.eng.observer; obs != nil {
		occupied := len(c.freeLanes.buf) - 1 - c.freeLanes.count()
		obs.ObserveLaneOccupancy(uint32(occupied))
	}

	// prepare incoming items for the hand-off to the I/O side
	numIncoming := c.userIncoming.count()
	for i := 0; i < numIncoming; i++ {
		slotID := c.userIncoming.peek(i)
		s := p.lookup(slotID)
		if s == nil {
			continue
		}
		// pending control flags; cancel dominates pause and continue
		if s.user.pause {
			s.state = StatePaused
			s.user.pause = false
		}
		if s.user.cont {
			if s.state == StatePaused {
				s.state = StateFetched
			}
			s.user.cont = false
		}
		if s.user.cancel {
			s.state = StateFailed
			s.user.finished = true
		}
		switch s.state {
		case StateAllocated:
			s.state = StateOpening
		case StateOpened, StateFetched:
			s.state = StateFetching
		}
		// hand-off copy: the task belongs to the I/O side from here until
		// the slot id comes back through the outgoing queue
		s.task.State = s.state
		s.task.Path = s.path
		s.task.Buffer = s.buffer
	}

	// cross to the I/O side and collect completed steps
	if c.inline {
		c.dispatchInline()
	} else {
		c.enqueueIncoming()
	}
	c.drainOutgoing()

	// drain the outgoing queue: mirror worker progress into the user side,
	// classify the follow state, invoke the response callback, then either
	// recycle the slot or feed it back into the incoming queue
	for !c.userOutgoing.empty() {
		slotID := c.userOutgoing.dequeue()
		s := p.lookup(slotID)
		if s == nil {
			continue
		}
		s.user.contentSize = s.task.ContentSize
		s.user.contentOffset = s.task.ContentOffset
		s.user.fetchedSize = s.task.FetchedSize
		if s.task.Finished {
			s.user.finished = true
		}
		if s.task.Failed {
			s.state = StateFailed
		} else {
			switch s.state {
			case StateOpening:
				// with a pre-bound buffer the opening step has already
				// fetched data, so shortcut straight to fetched
				if s.user.contentOffset > 0 {
					s.state = StateFetched
				} else {
					s.state = StateOpened
				}
			case StateFetching:
				s.state = StateFetched
			}
		}

		if s.state == StatePaused {
			c.eng.metrics.RecordPausedTick()
		}
		if s.user.finished && s.user.cancel {
			c.eng.metrics.RecordCancelled()
		}

		c.eng.invokeCallback(s)

		if s.user.finished {
			c.freeLanes.enqueue(uint32(s.lane))
			p.free(slotID)
		} else {
			c.userIncoming.enqueue(slotID)
		}
	}
}

// invokeCallback builds the response record in the engine's scratch space
// and calls the user callback with the in-callback guard set, which permits
// BindBuffer and UnbindBuffer for the duration of the call.
func (e *Engine) invokeCallback(s *slot) {
	r := &e.resp
	*r = Response{
		Handle:        Handle{id: s.handleID},
		Channel:       s.channel,
		Lane:          s.lane,
		Opened:        s.state == StateOpened,
		Fetched:       s.state == StateFetched,
		Paused:        s.state == StatePaused,
		Finished:      s.user.finished,
		Failed:        s.state == StateFailed,
		Cancelled:     s.user.cancel,
		Path:          s.path,
		ContentSize:   s.user.contentSize,
		ContentOffset: s.user.contentOffset - s.user.fetchedSize,
		FetchedSize:   s.user.fetchedSize,
		Buffer:        s.buffer,
	}
	if s.user.userDataSize > 0 {
		r.UserData = s.user.userData[:s.user.userDataSize]
	}
	e.inCallback = true
	s.callback(r)
	e.inCallback = false
}
