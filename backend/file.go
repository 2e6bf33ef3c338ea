// Package backend provides standard fetchq request handlers.
package backend

import (
	"os"

	"github.com/Comanx/fetchq"
)

// File is a RequestHandler that loads resources from the local filesystem.
// It is stateless and safe to share across channels; the per-request open
// file travels in the task.
type File struct{}

// NewFile creates a filesystem handler.
func NewFile() *File {
	return &File{}
}

// RunStep implements fetchq.RequestHandler.
func (f *File) RunStep(t *fetchq.Task) {
	if t.Failed {
		return
	}
	if t.State == fetchq.StateOpening {
		fh, err := os.Open(t.Path)
		if err != nil {
			t.Failed = true
			t.Finished = true
			return
		}
		st, err := fh.Stat()
		if err != nil {
			fh.Close()
			t.Failed = true
			t.Finished = true
			return
		}
		t.ContentSize = st.Size()
		t.File = fh
		// with a buffer already bound, skip the opened state and start
		// fetching data in the same step
		if t.Buffer == nil {
			return
		}
		t.State = fetchq.StateFetching
	}
	if t.State == fetchq.StateFetching {
		f.fetchStep(t)
	}
	// paused or failed tasks pass through untouched
}

func (f *File) fetchStep(t *fetchq.Task) {
	fh, _ := t.File.(*os.File)
	if len(t.Buffer) == 0 {
		t.Failed = true
	} else {
		n := t.ContentSize - t.ContentOffset
		if avail := int64(len(t.Buffer)); n > avail {
			n = avail
		}
		if n > 0 {
			read, err := fh.ReadAt(t.Buffer[:n], t.ContentOffset)
			if err != nil || int64(read) != n {
				t.Failed = true
			}
		}
		if !t.Failed {
			t.FetchedSize = n
			t.ContentOffset += n
		}
	}
	if t.Failed || t.ContentOffset >= t.ContentSize {
		if fh != nil {
			fh.Close()
		}
		t.File = nil
		t.Finished = true
	}
}
