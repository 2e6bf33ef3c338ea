//go:build !linux

package backend

import (
	"fmt"

	"github.com/Comanx/fetchq"
)

// URingFile is only functional on Linux.
type URingFile struct{}

// NewURingFile reports that io_uring is unavailable on this platform.
func NewURingFile(entries uint32) (*URingFile, error) {
	return nil, fmt.Errorf("io_uring is only supported on Linux")
}

// Close implements the handler surface for cross-platform callers.
func (u *URingFile) Close() error { return nil }

// RunStep fails every task; the constructor never hands out a usable
// handler on this platform.
func (u *URingFile) RunStep(t *fetchq.Task) {
	t.Failed = true
	t.Finished = true
}
