package backend

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comanx/fetchq"
)

// newRangeServer serves the given resources with HEAD and Range support.
func newRangeServer(t *testing.T, resources map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := resources[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPEngine(t *testing.T, inline bool) *fetchq.Engine {
	t.Helper()
	cfg := fetchq.DefaultConfig(NewHTTP(nil))
	cfg.MaxRequests = 8
	cfg.Inline = inline
	eng, err := fetchq.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(eng.Shutdown)
	return eng
}

// pumpUntil ticks the engine until done flips or the deadline passes. HTTP
// completions are asynchronous even in inline mode, so this polls.
func pumpUntil(t *testing.T, eng *fetchq.Engine, done *bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !*done && time.Now().Before(deadline) {
		eng.DoWork()
		time.Sleep(time.Millisecond)
	}
	require.True(t, *done, "request did not finish before the deadline")
}

func TestHTTPPreBoundBuffer(t *testing.T) {
	srv := newRangeServer(t, map[string][]byte{"/a.txt": []byte("hello")})
	eng := newHTTPEngine(t, false)

	var responses []fetchq.Response
	var chunk []byte
	done := false
	h := eng.Send(fetchq.Request{
		Path:   srv.URL + "/a.txt",
		Buffer: make([]byte, 64),
		Callback: func(r *fetchq.Response) {
			responses = append(responses, *r)
			if r.Fetched {
				chunk = append([]byte(nil), r.Buffer[:r.FetchedSize]...)
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)

	require.Len(t, responses, 1)
	assert.True(t, responses[0].Fetched)
	assert.True(t, responses[0].Finished)
	assert.Equal(t, int64(5), responses[0].ContentSize)
	assert.Equal(t, "hello", string(chunk))
}

func TestHTTPChunked(t *testing.T) {
	content := []byte("0123456789")
	srv := newRangeServer(t, map[string][]byte{"/digits": content})
	eng := newHTTPEngine(t, false)

	var got []byte
	var offsets []int64
	done := false
	h := eng.Send(fetchq.Request{
		Path:   srv.URL + "/digits",
		Buffer: make([]byte, 4),
		Callback: func(r *fetchq.Response) {
			require.True(t, r.Fetched)
			offsets = append(offsets, r.ContentOffset)
			got = append(got, r.Buffer[:r.FetchedSize]...)
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)

	assert.Equal(t, content, got)
	assert.Equal(t, []int64{0, 4, 8}, offsets)
}

func TestHTTPOpenedThenBind(t *testing.T) {
	srv := newRangeServer(t, map[string][]byte{"/a": []byte("hello")})
	eng := newHTTPEngine(t, false)

	var states []string
	done := false
	h := eng.Send(fetchq.Request{
		Path: srv.URL + "/a",
		Callback: func(r *fetchq.Response) {
			switch {
			case r.Opened:
				states = append(states, "opened")
				require.NoError(t, eng.BindBuffer(r.Handle, make([]byte, r.ContentSize)))
			case r.Fetched:
				states = append(states, "fetched")
				assert.Equal(t, "hello", string(r.Buffer[:r.FetchedSize]))
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)
	assert.Equal(t, []string{"opened", "fetched"}, states)
}

func TestHTTPNotFound(t *testing.T) {
	srv := newRangeServer(t, nil)
	eng := newHTTPEngine(t, false)

	var last fetchq.Response
	done := false
	h := eng.Send(fetchq.Request{
		Path:   srv.URL + "/missing",
		Buffer: make([]byte, 16),
		Callback: func(r *fetchq.Response) {
			last = *r
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)
	assert.True(t, last.Failed)
	assert.Equal(t, int64(0), last.ContentSize)
}

func TestHTTPTransportError(t *testing.T) {
	srv := newRangeServer(t, map[string][]byte{"/a": []byte("hello")})
	url := srv.URL + "/a"
	srv.Close()
	eng := newHTTPEngine(t, false)

	var last fetchq.Response
	done := false
	h := eng.Send(fetchq.Request{
		Path:   url,
		Buffer: make([]byte, 16),
		Callback: func(r *fetchq.Response) {
			last = *r
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)
	assert.True(t, last.Failed)
	assert.True(t, last.Finished)
}

func TestHTTPInlineAsync(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	srv := newRangeServer(t, map[string][]byte{"/fox": content})
	eng := newHTTPEngine(t, true)

	var got []byte
	done := false
	h := eng.Send(fetchq.Request{
		Path:   srv.URL + "/fox",
		Buffer: make([]byte, 8),
		Callback: func(r *fetchq.Response) {
			if r.Fetched {
				got = append(got, r.Buffer[:r.FetchedSize]...)
			}
			done = r.Finished
		},
	})
	require.True(t, h.IsValid())

	pumpUntil(t, eng, &done)
	assert.Equal(t, content, got)
}
