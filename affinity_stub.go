//go:build !linux

package fetchq

import "errors"

// setCPUAffinity is only supported on Linux.
func setCPUAffinity(cpu int) error {
	return errors.New("CPU affinity not supported on this platform")
}
