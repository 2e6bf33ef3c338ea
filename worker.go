package fetchq

import "runtime"

// workerLoop is the per-channel I/O goroutine: block until work arrives,
// run one handler step for the slot, push the slot onto the outgoing
// queue. The loop exits when join requests a stop.
func (c *channel) workerLoop() {
	defer c.wg.Done()

	// Pinning only matters when the caller asked for CPU affinity.
	if cpus := c.eng.opts.CPUAffinity; len(cpus) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		cpu := cpus[c.index%len(cpus)]
		if err := setCPUAffinity(cpu); err != nil && c.eng.logger != nil {
			c.eng.logger.Printf("channel %d: failed to set CPU affinity to %d: %v", c.index, cpu, err)
		}
	}

	if c.eng.logger != nil {
		c.eng.logger.Debugf("channel %d: worker started", c.index)
	}
	for {
		slotID, ok := c.dequeueIncoming()
		if !ok {
			if c.eng.logger != nil {
				c.eng.logger.Debugf("channel %d: worker stopping", c.index)
			}
			return
		}
		c.runStep(slotID)
		c.enqueueOutgoing(slotID)
	}
}
