package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	director "github.com/relistan/go-director"
	limiter "github.com/sethvargo/go-limiter"
	log "github.com/sirupsen/logrus"
)

// How long we wait for each writer to exit after the stop broadcast before
// abandoning it
const writerStopGrace = 5 * time.Second

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionStarting
	sessionRunning
	sessionStopping
	sessionDone
)

// A FileSummary is the final accounting for one output file.
type FileSummary struct {
	Path  string
	Lines uint64
	Bytes int64
}

// A Summary is the final accounting for the whole session. TotalLines is the
// exact sum of the per-file counts.
type Summary struct {
	Files      []FileSummary
	TotalLines uint64
	Elapsed    time.Duration
}

// A Session orchestrates one generation run: it creates the output files,
// fans out one FileWriter per file, reports aggregate progress once a second,
// and joins the writers on shutdown. Writers share nothing mutable beyond
// the throttle store; the session only reads their atomic counters.
type Session struct {
	Writers []*FileWriter
	Policy  RatePolicy

	outputDir string
	prefix    string
	fileCount int
	duration  time.Duration
	seed      int64
	limits    limiter.Store
	dropped   DropCounter

	startedAt     time.Time
	state         sessionState
	cancelWriters context.CancelFunc
	monitor       director.Looper
	progress      io.Writer
	stopGrace     time.Duration
	stopOnce      sync.Once
}

// NewSession wires up a session from already-validated configuration. A zero
// duration means the session runs until it is cancelled.
func NewSession(config Config, policy RatePolicy, limits limiter.Store, dropped DropCounter) *Session {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Session{
		Policy:    policy,
		outputDir: config.OutputDir,
		prefix:    config.Prefix,
		fileCount: config.FileCount,
		duration:  config.Duration,
		seed:      seed,
		limits:    limits,
		dropped:   dropped,
		monitor:   director.NewImmediateTimedLooper(director.FOREVER, 1*time.Second, make(chan error, 1)),
		progress:  os.Stdout,
		stopGrace: writerStopGrace,
		state:     sessionIdle,
	}
}

// Start creates the output directory and files and spawns the writers. Each
// file gets a fresh header, truncating anything left from a previous run.
func (s *Session) Start() error {
	s.state = sessionStarting

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", s.outputDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWriters = cancel

	for i := 1; i <= s.fileCount; i++ {
		path := filepath.Join(s.outputDir, fmt.Sprintf("%s_%d.log", s.prefix, i))

		if err := writeHeader(path, s.Policy); err != nil {
			s.Stop()
			return err
		}

		writer := NewFileWriter(path, s.Policy, s.seed+int64(i), s.limits, s.dropped)
		s.Writers = append(s.Writers, writer)

		if err := writer.Run(ctx); err != nil {
			// One writer down doesn't take out its siblings
			log.Errorf("Writer for %s failed to start: %s", path, err)
			continue
		}

		log.Infof("Created: %s", path)
	}

	s.startedAt = time.Now()
	s.state = sessionRunning
	return nil
}

// Wait blocks until the configured duration elapses or ctx is cancelled,
// refreshing a single-line progress status once a second. Both exits lead to
// the same Stop path.
func (s *Session) Wait(ctx context.Context) {
	s.monitor.Loop(func() error {
		select {
		case <-ctx.Done():
			return errStopRequested
		default:
		}

		elapsed := time.Since(s.startedAt)
		total := s.TotalLines()

		if s.duration > 0 {
			fmt.Fprintf(s.progress, "\r[%3ds / %ds] Lines written: %5d  ",
				int(elapsed.Seconds()), int(s.duration.Seconds()), total)
			if elapsed >= s.duration {
				return errStopRequested
			}
		} else {
			fmt.Fprintf(s.progress, "\r[%4ds] Lines written: %6d  ", int(elapsed.Seconds()), total)
		}

		return nil
	})

	// Drain the looper's exit notification
	_ = s.monitor.Wait()
}

// Stop broadcasts the stop signal and joins every writer. A writer that
// misses the grace period is logged as an anomaly and abandoned rather than
// hanging the shutdown. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state = sessionStopping
		log.Info("Stopping log generation")

		if s.cancelWriters != nil {
			s.cancelWriters()
		}

		// All writers share one grace deadline, so shutdown is bounded no
		// matter how many writers there are
		deadline := time.Now().Add(s.stopGrace)

		for _, writer := range s.Writers {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				remaining = time.Millisecond
			}

			select {
			case <-writer.Done():
			case <-time.After(remaining):
				log.Errorf("Writer for %s did not stop within %s, abandoning it",
					writer.Path, s.stopGrace)
			}
		}

		s.state = sessionDone
	})
}

// TotalLines sums the live per-writer counters.
func (s *Session) TotalLines() uint64 {
	var total uint64
	for _, writer := range s.Writers {
		total += writer.LinesWritten()
	}
	return total
}

// Summary reports the per-file and aggregate results.
func (s *Session) Summary() Summary {
	summary := Summary{Elapsed: time.Since(s.startedAt)}

	for _, writer := range s.Writers {
		lines := writer.LinesWritten()

		var size int64
		if info, err := os.Stat(writer.Path); err == nil {
			size = info.Size()
		}

		summary.Files = append(summary.Files, FileSummary{Path: writer.Path, Lines: lines, Bytes: size})
		summary.TotalLines += lines
	}

	return summary
}

// writeHeader truncates the file and writes the 3-line generation header, so
// re-running against an existing directory resets each file.
func writeHeader(path string, policy RatePolicy) error {
	header := fmt.Sprintf(
		"# Log file generated at %s\n# Rate: %s\n# ============================================\n",
		time.Now().Format(lineTimeFormat), policy,
	)

	if err := ioutil.WriteFile(path, []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}

	return nil
}
