package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	director "github.com/relistan/go-director"
	limiter "github.com/sethvargo/go-limiter"
	log "github.com/sirupsen/logrus"
)

const (
	burstProbability = 0.10
	burstMinLines    = 3
	burstMaxLines    = 10

	// All writers share one throttle bucket, so the cap is aggregate
	throttleKey = "logspammer"
)

var errStopRequested = errors.New("stop requested")

// A DropCounter absorbs the count of lines the throttle refused. In
// production this is the HTTP drop reporter.
type DropCounter interface {
	Incr()
}

// A FileWriter owns one output file and appends synthesized log lines to it
// on its own randomized schedule. The file is opened once for the writer's
// lifetime and nothing else writes to it. The line counter is updated
// atomically so the Session can read it while the writer runs.
type FileWriter struct {
	Path string

	policy  RatePolicy
	synth   *Synthesizer
	rng     *rand.Rand
	looper  director.Looper
	file    *os.File
	limits  limiter.Store
	dropped DropCounter

	linesWritten uint64
	err          error
	done         chan struct{}
}

// NewFileWriter returns a writer with its own seeded random source, so
// writers never share RNG state and a fixed seed reproduces a schedule.
func NewFileWriter(path string, policy RatePolicy, seed int64,
	limits limiter.Store, dropped DropCounter) *FileWriter {

	rng := rand.New(rand.NewSource(seed))

	return &FileWriter{
		Path:    path,
		policy:  policy,
		synth:   &Synthesizer{rng: rng, now: time.Now},
		rng:     rng,
		looper:  director.NewFreeLooper(director.FOREVER, make(chan error, 1)),
		limits:  limits,
		dropped: dropped,
		done:    make(chan struct{}),
	}
}

// Run opens the output file and starts the append loop in the background.
// The loop exits when ctx is cancelled or a write fails.
func (w *FileWriter) Run(ctx context.Context) error {
	file, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		close(w.done)
		return fmt.Errorf("failed to open %s for append: %w", w.Path, err)
	}
	w.file = file

	go func() {
		defer close(w.done)
		defer w.file.Close()

		w.looper.Loop(func() error {
			return w.generate(ctx)
		})

		// The loop only ends via an error, ours or a real one
		if err := w.looper.Wait(); err != nil && !errors.Is(err, errStopRequested) {
			w.err = err
			log.Errorf("Writer for %s stopped: %s", w.Path, err)
		}
	}()

	return nil
}

// Done is closed once the loop has exited and the file is closed.
func (w *FileWriter) Done() <-chan struct{} {
	return w.done
}

// Err reports the failure that stopped the writer, if any. Only valid after
// Done is closed.
func (w *FileWriter) Err() error {
	return w.err
}

// LinesWritten is safe to call while the writer is running.
func (w *FileWriter) LinesWritten() uint64 {
	return atomic.LoadUint64(&w.linesWritten)
}

// generate is one loop iteration: a randomized sleep, then either a burst or
// a single line. A stop request interrupts the sleep immediately and cuts a
// burst short between lines, never mid-line.
func (w *FileWriter) generate(ctx context.Context) error {
	timer := time.NewTimer(w.policy.Interval(w.rng))
	select {
	case <-ctx.Done():
		timer.Stop()
		return errStopRequested
	case <-timer.C:
	}

	if w.rng.Float64() < burstProbability {
		size := burstMinLines + w.rng.Intn(burstMaxLines-burstMinLines+1)
		for i := 0; i < size; i++ {
			if err := w.appendLine(); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return errStopRequested
			}
		}
		log.Debugf("[%s] burst: %d lines", filepath.Base(w.Path), size)
		return nil
	}

	return w.appendLine()
}

// appendLine writes one synthesized line and flushes it, so a crash mid-burst
// loses at most one unflushed line. When a throttle is configured and out of
// tokens the line is dropped and counted instead of written.
func (w *FileWriter) appendLine() error {
	if w.limits != nil && w.isThrottled() {
		if w.dropped != nil {
			w.dropped.Incr()
		}
		return nil
	}

	if _, err := w.file.WriteString(w.synth.Line()); err != nil {
		return fmt.Errorf("append to %s failed: %w", w.Path, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("flush of %s failed: %w", w.Path, err)
	}

	atomic.AddUint64(&w.linesWritten, 1)
	return nil
}

// isThrottled takes a token from the shared store and reports whether this
// line has to be dropped.
func (w *FileWriter) isThrottled() bool {
	limit, remaining, reset, ok, err := w.limits.Take(context.Background(), throttleKey)
	log.Debugf("Checking throttle: %d %d %d %t", limit, remaining, reset, ok)
	if err != nil {
		log.Warnf("Unable to check throttle for %s: %s", w.Path, err)
		return true // Drop it since we can't track
	}

	return !ok
}
