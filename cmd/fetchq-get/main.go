// Command fetchq-get downloads one or more files or URLs through the
// fetchq engine and writes them to the current directory (or stdout).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Comanx/fetchq"
	"github.com/Comanx/fetchq/backend"
	"github.com/Comanx/fetchq/internal/logging"
)

func main() {
	var (
		bufStr   = flag.String("buffer", "64K", "Chunk buffer size per request (e.g. 64K, 1M)")
		lanes    = flag.Int("lanes", 4, "Concurrent requests per channel")
		useURing = flag.Bool("uring", false, "Read local files through io_uring (Linux only)")
		stdout   = flag.Bool("stdout", false, "Write fetched bytes to stdout instead of files")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: fetchq-get [flags] path|url ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	bufSize, err := parseSize(*bufStr)
	if err != nil {
		log.Fatalf("Invalid buffer size '%s': %v", *bufStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	// channel 0 serves the local filesystem, channel 1 serves HTTP
	var fileHandler fetchq.RequestHandler = backend.NewFile()
	if *useURing {
		uring, err := backend.NewURingFile(uint32(*lanes))
		if err != nil {
			log.Fatalf("io_uring unavailable: %v", err)
		}
		defer uring.Close()
		fileHandler = uring
	}
	cfg := fetchq.Config{
		MaxRequests: 2 * len(paths),
		NumChannels: 2,
		NumLanes:    *lanes,
		Handlers:    []fetchq.RequestHandler{fileHandler, backend.NewHTTP(nil)},
	}
	eng, err := fetchq.New(cfg, &fetchq.Options{Logger: logger})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Shutdown()

	remaining := 0
	failures := 0
	for _, path := range paths {
		out := os.Stdout
		if !*stdout {
			out, err = os.Create(filepath.Base(strings.TrimRight(path, "/")))
			if err != nil {
				log.Fatalf("Failed to create output file: %v", err)
			}
		}
		channel := 0
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			channel = 1
		}
		h := eng.Send(fetchq.Request{
			Channel: channel,
			Path:    path,
			Buffer:  make([]byte, bufSize),
			Callback: func(r *fetchq.Response) {
				if r.Fetched {
					out.Write(r.Buffer[:r.FetchedSize])
				}
				if !r.Finished {
					return
				}
				remaining--
				if !*stdout {
					out.Close()
				}
				if r.Failed {
					failures++
					logger.Error("fetch failed", "path", r.Path)
				} else if *verbose {
					logger.Info("fetched", "path", r.Path, "bytes", r.ContentSize)
				}
			},
		})
		if !h.IsValid() {
			log.Fatalf("Failed to submit %s", path)
		}
		remaining++
	}

	for remaining > 0 {
		eng.DoWork()
		time.Sleep(time.Millisecond)
	}

	if *verbose {
		snap := eng.MetricsSnapshot()
		logger.Info("done",
			"fetch_steps", snap.FetchOps,
			"bytes", snap.FetchedBytes,
			"avg_step_latency", time.Duration(snap.AvgStepLatencyNs))
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// parseSize parses a human-readable size like "64K" or "1M".
func parseSize(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return n * mult, nil
}
