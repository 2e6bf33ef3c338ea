//go:build linux

package fetchq

import "golang.org/x/sys/unix"

// setCPUAffinity pins the calling thread to a single CPU.
func setCPUAffinity(cpu int) error {
	var mask unix.CPUSet
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
