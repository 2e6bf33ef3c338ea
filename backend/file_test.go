package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comanx/fetchq"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func newFileEngine(t *testing.T) *fetchq.Engine {
	t.Helper()
	cfg := fetchq.DefaultConfig(NewFile())
	cfg.MaxRequests = 8
	cfg.Inline = true
	eng, err := fetchq.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(eng.Shutdown)
	return eng
}

func pump(eng *fetchq.Engine, done *bool) {
	for i := 0; i < 50 && !*done; i++ {
		eng.DoWork()
	}
}

func TestFileSmallPreBoundBuffer(t *testing.T) {
	path := writeTemp(t, "a.txt", []byte("hello"))
	eng := newFileEngine(t)

	var responses []fetchq.Response
	var chunk []byte
	done := false
	buf := make([]byte, 64)
	h := eng.Send(fetchq.Request{
		Path:   path,
		Buffer: buf,
		Callback: func(r *fetchq.Response) {
			responses = append(responses, *r)
			if r.Fetched {
				chunk = append([]byte(nil), r.Buffer[:r.FetchedSize]...)
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)

	require.Len(t, responses, 1)
	r := responses[0]
	assert.True(t, r.Fetched)
	assert.True(t, r.Finished)
	assert.Equal(t, int64(5), r.ContentSize)
	assert.Equal(t, int64(0), r.ContentOffset)
	assert.Equal(t, int64(5), r.FetchedSize)
	assert.Equal(t, "hello", string(chunk))
}

func TestFileChunkedRoundTrip(t *testing.T) {
	content := []byte("0123456789")
	path := writeTemp(t, "digits.txt", content)
	eng := newFileEngine(t)

	var got []byte
	var sizes []int64
	done := false
	h := eng.Send(fetchq.Request{
		Path:   path,
		Buffer: make([]byte, 4),
		Callback: func(r *fetchq.Response) {
			require.True(t, r.Fetched)
			assert.Equal(t, int64(len(got)), r.ContentOffset)
			got = append(got, r.Buffer[:r.FetchedSize]...)
			sizes = append(sizes, r.FetchedSize)
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)

	require.True(t, done)
	assert.Equal(t, content, got, "concatenated chunks must equal the file")
	assert.Equal(t, []int64{4, 4, 2}, sizes)
}

func TestFileOpenedThenBind(t *testing.T) {
	path := writeTemp(t, "a.txt", []byte("hello"))
	eng := newFileEngine(t)

	var states []string
	done := false
	h := eng.Send(fetchq.Request{
		Path: path,
		Callback: func(r *fetchq.Response) {
			switch {
			case r.Opened:
				states = append(states, "opened")
				require.Equal(t, int64(5), r.ContentSize)
				require.NoError(t, eng.BindBuffer(r.Handle, make([]byte, r.ContentSize)))
			case r.Fetched:
				states = append(states, "fetched")
				assert.Equal(t, int64(5), r.FetchedSize)
				assert.Equal(t, "hello", string(r.Buffer[:r.FetchedSize]))
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)
	assert.Equal(t, []string{"opened", "fetched"}, states)
}

func TestFileMissing(t *testing.T) {
	eng := newFileEngine(t)

	var responses []fetchq.Response
	done := false
	h := eng.Send(fetchq.Request{
		Path:   "/does/not/exist",
		Buffer: make([]byte, 16),
		Callback: func(r *fetchq.Response) {
			responses = append(responses, *r)
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)

	require.Len(t, responses, 1)
	assert.True(t, responses[0].Failed)
	assert.True(t, responses[0].Finished)
	assert.Equal(t, int64(0), responses[0].ContentSize)
}

func TestFileNoBufferFails(t *testing.T) {
	path := writeTemp(t, "a.txt", []byte("hello"))
	eng := newFileEngine(t)

	var last fetchq.Response
	done := false
	// opened callback deliberately binds nothing; the fetch attempt must
	// then fail terminally
	h := eng.Send(fetchq.Request{
		Path: path,
		Callback: func(r *fetchq.Response) {
			last = *r
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)

	assert.True(t, last.Failed)
	assert.True(t, last.Finished)
}

func TestFileEmpty(t *testing.T) {
	path := writeTemp(t, "empty", nil)
	eng := newFileEngine(t)

	var last fetchq.Response
	done := false
	h := eng.Send(fetchq.Request{
		Path:   path,
		Buffer: make([]byte, 8),
		Callback: func(r *fetchq.Response) {
			last = *r
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pump(eng, &done)

	assert.True(t, last.Finished)
	assert.False(t, last.Failed)
	assert.Equal(t, int64(0), last.ContentSize)
	assert.Equal(t, int64(0), last.FetchedSize)
}

func TestFileWorkerMode(t *testing.T) {
	content := make([]byte, 64*1024)
	for i := range content {
		content[i] = byte(i)
	}
	path := writeTemp(t, "big.bin", content)

	cfg := fetchq.DefaultConfig(NewFile())
	cfg.NumLanes = 2
	eng, err := fetchq.New(cfg, nil)
	require.NoError(t, err)
	defer eng.Shutdown()

	var got []byte
	done := false
	h := eng.Send(fetchq.Request{
		Path:   path,
		Buffer: make([]byte, 4096),
		Callback: func(r *fetchq.Response) {
			if r.Fetched {
				got = append(got, r.Buffer[:r.FetchedSize]...)
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	deadline := time.Now().Add(5 * time.Second)
	for !done && time.Now().Before(deadline) {
		eng.DoWork()
		time.Sleep(time.Millisecond)
	}
	require.True(t, done)
	assert.Equal(t, content, got)
}
