package main

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	director "github.com/relistan/go-director"
	. "github.com/smartystreets/goconvey/convey"
)

func testSessionConfig(dir string) Config {
	return Config{
		OutputDir: dir,
		FileCount: 2,
		Prefix:    "test",
		Seed:      42,
	}
}

func Test_NewSession(t *testing.T) {
	Convey("NewSession()", t, func() {
		session := NewSession(testSessionConfig("/tmp/sess"), fastPolicy, nil, nil)

		So(session.Policy, ShouldResemble, fastPolicy)
		So(session.monitor, ShouldNotBeNil)
		So(session.progress, ShouldNotBeNil)
		So(session.state, ShouldEqual, sessionIdle)

		Convey("derives a seed when none is configured", func() {
			config := testSessionConfig("/tmp/sess")
			config.Seed = 0

			So(NewSession(config, fastPolicy, nil, nil).seed, ShouldNotEqual, 0)
		})
	})
}

func Test_SessionRun(t *testing.T) {
	Convey("Session", t, func() {
		dir, err := ioutil.TempDir("", "session-test")
		So(err, ShouldBeNil)
		Reset(func() { os.RemoveAll(dir) })

		config := testSessionConfig(dir)
		session := NewSession(config, fastPolicy, nil, nil)

		Convey("Start() creates every file with the 3-line header", func() {
			_ = LogCapture(func() {
				So(session.Start(), ShouldBeNil)
			})
			Reset(session.Stop)

			So(len(session.Writers), ShouldEqual, 2)
			So(session.state, ShouldEqual, sessionRunning)

			for i := 1; i <= 2; i++ {
				path := filepath.Join(dir, fmt.Sprintf("test_%d.log", i))
				content, err := ioutil.ReadFile(path)
				So(err, ShouldBeNil)

				lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
				So(len(lines), ShouldBeGreaterThanOrEqualTo, 3)
				So(lines[0], ShouldStartWith, "# Log file generated at")
				So(lines[1], ShouldStartWith, "# Rate:")
				So(lines[2], ShouldStartWith, "# ====")
			}
		})

		Convey("Stop() joins every writer and the totals add up", func() {
			_ = LogCapture(func() {
				So(session.Start(), ShouldBeNil)
			})

			time.Sleep(100 * time.Millisecond)

			_ = LogCapture(session.Stop)
			So(session.state, ShouldEqual, sessionDone)

			for _, writer := range session.Writers {
				select {
				case <-writer.Done():
				default:
					So("writer should have stopped", ShouldBeEmpty)
				}
			}

			summary := session.Summary()
			So(len(summary.Files), ShouldEqual, 2)

			var total uint64
			for _, file := range summary.Files {
				total += file.Lines
				So(file.Bytes, ShouldBeGreaterThan, 0)

				// The file holds exactly the header plus the counted lines
				content, err := ioutil.ReadFile(file.Path)
				So(err, ShouldBeNil)
				So(uint64(strings.Count(string(content), "\n")), ShouldEqual, 3+file.Lines)
			}
			So(summary.TotalLines, ShouldEqual, total)
			So(summary.TotalLines, ShouldEqual, session.TotalLines())
			So(summary.Elapsed, ShouldBeGreaterThan, 0)
		})

		Convey("Stop() bounds the whole join at one grace period", func() {
			session.stopGrace = 100 * time.Millisecond
			session.cancelWriters = func() {}

			// Writers that were never started never close Done
			for i := 0; i < 3; i++ {
				session.Writers = append(session.Writers,
					NewFileWriter(filepath.Join(dir, fmt.Sprintf("stuck_%d.log", i)), fastPolicy, 42, nil, nil))
			}

			started := time.Now()
			capture := LogCapture(session.Stop)

			// Sequential 100ms waits would take 300ms; the shared deadline
			// keeps the total near one grace period
			So(time.Since(started), ShouldBeLessThan, 250*time.Millisecond)
			So(strings.Count(capture, "did not stop"), ShouldEqual, 3)
			So(session.state, ShouldEqual, sessionDone)
		})

		Convey("Stop() is safe to call twice", func() {
			_ = LogCapture(func() {
				So(session.Start(), ShouldBeNil)
				session.Stop()
				session.Stop()
			})

			So(session.state, ShouldEqual, sessionDone)
		})

		Convey("Wait() returns once the duration has elapsed", func() {
			config.Duration = 50 * time.Millisecond
			session = NewSession(config, fastPolicy, nil, nil)
			session.monitor = director.NewImmediateTimedLooper(
				director.FOREVER, 10*time.Millisecond, make(chan error, 1),
			)

			progress := &bytes.Buffer{}
			session.progress = progress

			_ = LogCapture(func() {
				So(session.Start(), ShouldBeNil)
			})
			Reset(session.Stop)

			started := time.Now()
			session.Wait(context.Background())

			So(time.Since(started), ShouldBeLessThan, 2*time.Second)
			So(progress.String(), ShouldContainSubstring, "Lines written:")
		})

		Convey("Wait() returns when cancelled, the unbounded case included", func() {
			session.monitor = director.NewImmediateTimedLooper(
				director.FOREVER, 10*time.Millisecond, make(chan error, 1),
			)
			session.progress = &bytes.Buffer{}

			_ = LogCapture(func() {
				So(session.Start(), ShouldBeNil)
			})
			Reset(session.Stop)

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()

			started := time.Now()
			session.Wait(ctx)

			So(time.Since(started), ShouldBeLessThan, 2*time.Second)
		})
	})
}

func Test_writeHeader(t *testing.T) {
	Convey("writeHeader() truncates anything already there", t, func() {
		dir, err := ioutil.TempDir("", "header-test")
		So(err, ShouldBeNil)
		Reset(func() { os.RemoveAll(dir) })

		path := filepath.Join(dir, "test_1.log")
		So(ioutil.WriteFile(path, []byte("stale content\nfrom a previous run\n"), 0644), ShouldBeNil)

		So(writeHeader(path, fastPolicy), ShouldBeNil)

		content, err := ioutil.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(content), ShouldNotContainSubstring, "stale")
		So(strings.Count(string(content), "\n"), ShouldEqual, 3)

		// Idempotent: a second reset gives the same shape
		So(writeHeader(path, fastPolicy), ShouldBeNil)
		content, err = ioutil.ReadFile(path)
		So(err, ShouldBeNil)
		So(strings.Count(string(content), "\n"), ShouldEqual, 3)
	})
}
