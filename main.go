package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Shimmur/logspammer/layout"
	"github.com/Shimmur/logspammer/reporter"
	"github.com/kelseyhightower/envconfig"
	"github.com/relistan/rubberneck"
	limiter "github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	OutputDir   string        `envconfig:"OUTPUT_DIR" default:"test_logs"`
	FileCount   int           `envconfig:"FILE_COUNT" default:"3"`
	Duration    time.Duration `envconfig:"DURATION" default:"60s"`
	Rate        string        `envconfig:"RATE" default:"medium"`
	MinInterval time.Duration `envconfig:"MIN_INTERVAL"`
	MaxInterval time.Duration `envconfig:"MAX_INTERVAL"`
	Prefix      string        `envconfig:"PREFIX" default:"test"`
	Seed        int64         `envconfig:"SEED"`
	ThrottleLPS int           `envconfig:"THROTTLE_LPS"`

	LayoutFile       string `envconfig:"LAYOUT_FILE"`
	LayoutGroups     int    `envconfig:"LAYOUT_GROUPS" default:"2"`
	LayoutNested     bool   `envconfig:"LAYOUT_NESTED"`
	LayoutPollMs     int    `envconfig:"LAYOUT_POLL_MS" default:"250"`
	LayoutAutoExpand bool   `envconfig:"LAYOUT_AUTO_EXPAND" default:"true"`

	ReportURL       string `envconfig:"REPORT_URL"`
	ReportInsertKey string `envconfig:"REPORT_INSERT_KEY"`
	ReportAccount   string `envconfig:"REPORT_ACCOUNT"`
}

// validateConfig catches everything that has to abort the run before any
// file or writer exists.
func validateConfig(config Config) error {
	if config.FileCount < 1 {
		return fmt.Errorf("file count must be positive, got %d", config.FileCount)
	}
	if config.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", config.Duration)
	}
	if config.ThrottleLPS < 0 {
		return fmt.Errorf("throttle must not be negative, got %d", config.ThrottleLPS)
	}

	return nil
}

func printSummary(summary Summary) {
	fmt.Println("\n\nSummary:")
	fmt.Println("--------")
	for _, file := range summary.Files {
		fmt.Printf("  %s: %d lines, %d bytes\n", filepath.Base(file.Path), file.Lines, file.Bytes)
	}
	fmt.Printf("\nTotal: %d lines written\n", summary.TotalLines)
}

func main() {
	var config Config
	err := envconfig.Process("spammer", &config)
	if err != nil {
		log.Fatal(err.Error())
	}
	rubberneck.Print(config)

	if err := validateConfig(config); err != nil {
		log.Fatal(err.Error())
	}

	policy, err := ResolveRatePolicy(config.Rate, config.MinInterval, config.MaxInterval)
	if err != nil {
		log.Fatal(err.Error())
	}

	var limits limiter.Store
	var dropped DropCounter

	if config.ThrottleLPS > 0 {
		store, err := memorystore.New(&memorystore.Config{
			// Lines allowed per interval, across all writers
			Tokens: uint64(config.ThrottleLPS),

			// Interval until tokens reset
			Interval: 1 * time.Second,
		})
		if err != nil {
			log.Fatalf("Unable to create throttle store: %s", err)
		}
		limits = store

		if config.ReportURL != "" {
			drops := reporter.NewDropReporter(
				config.ReportURL, config.ReportInsertKey, config.ReportAccount,
			)
			drops.Run()
			defer drops.Stop()
			dropped = drops
		}
	}

	// Layout mode: emit the viewer tree and seed its files before the
	// writers start growing them
	if config.LayoutFile != "" {
		doc, err := layout.Build(layout.Config{
			OutputDir:        config.OutputDir,
			Prefix:           config.Prefix,
			FileCount:        config.FileCount,
			GroupCount:       config.LayoutGroups,
			Nested:           config.LayoutNested,
			PollIntervalMs:   config.LayoutPollMs,
			AutoExpandActive: config.LayoutAutoExpand,
		})
		if err != nil {
			log.Fatal(err.Error())
		}

		if err := doc.WriteFile(config.LayoutFile); err != nil {
			log.Fatal(err.Error())
		}

		log.Infof("Created layout file: %s", config.LayoutFile)
	}

	session := NewSession(config, policy, limits, dropped)
	if err := session.Start(); err != nil {
		log.Fatal(err.Error())
	}

	log.Info("Starting log generation... (Ctrl+C to stop)")

	// Interrupt and duration expiry both land in the same stop path
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.Wait(ctx)
	session.Stop()

	printSummary(session.Summary())
}
