package main

import (
	"bytes"
	"os"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// LogCapture grabs logs for async testing where we can't get a nice handle
// on things
func LogCapture(fn func()) string {
	capture := &bytes.Buffer{}
	log.SetOutput(capture)
	fn()
	log.SetOutput(os.Stdout)

	return capture.String()
}

// mockDropCounter implements the DropCounter interface, for testing
type mockDropCounter struct {
	count uint64
}

func (m *mockDropCounter) Incr() {
	atomic.AddUint64(&m.count, 1)
}

func (m *mockDropCounter) Count() uint64 {
	return atomic.LoadUint64(&m.count)
}
