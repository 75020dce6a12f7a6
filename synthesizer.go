package main

import (
	"fmt"
	"math/rand"
	"time"
)

const lineTimeFormat = "2006-01-02 15:04:05.000"

// Severity levels in the order they are weighted below
var severities = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Skewed toward low severity to look like real traffic
var severityWeights = []float64{0.30, 0.50, 0.12, 0.06, 0.02}

var components = []string{
	"Database", "WebServer", "APIHandler", "AuthService",
	"CacheManager", "MessageQueue", "FileProcessor", "Scheduler",
}

// Catalogs sampled by the message builders
var (
	nouns       = []string{"record", "document", "entity", "object", "resource", "item", "entry"}
	actions     = []string{"create", "update", "delete", "fetch", "process", "validate", "parse"}
	errTexts    = []string{"timeout", "connection refused", "invalid format", "not found", "permission denied"}
	authMethods = []string{"OAuth2", "SAML", "JWT", "API Key", "Basic Auth"}
	jobNames    = []string{"data_sync", "report_generation", "cleanup", "backup", "indexing"}
	endpoints   = []string{"users", "orders", "products", "auth", "analytics", "search"}
	fileNames   = []string{"data.csv", "report.pdf", "config.json", "backup.tar.gz", "log.txt"}
	statusCodes = []int{200, 201, 400, 404, 500, 503}
)

// A messageBuilder renders one message shape, sampling only the placeholders
// that shape needs. One builder per template keeps the sampling ranges next
// to the text that uses them.
type messageBuilder func(rng *rand.Rand) string

var messageBuilders = []messageBuilder{
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Processing %s for user user_%d", pick(rng, nouns), 1000+rng.Intn(9000))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Database query took %dms", 10+rng.Intn(1991))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("API endpoint /%s returned status %d", pick(rng, endpoints), pickInt(rng, statusCodes))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Cache hit ratio: %d%%", 10+rng.Intn(90))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Connection pool size: %d/%d", 1+rng.Intn(100), 100+rng.Intn(401))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("%s %s completed successfully", pick(rng, actions), pick(rng, nouns))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Failed to %s %s: %s", pick(rng, actions), pick(rng, nouns), pick(rng, errTexts))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf(
			"Memory usage: %d%% (%dMB / %dMB)", 10+rng.Intn(90), 100+rng.Intn(7901), 8000+rng.Intn(8001),
		)
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Received %d messages from queue", 1+rng.Intn(100))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Background job '%s' %d", pick(rng, jobNames), pickInt(rng, statusCodes))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("User user_%d authenticated via %s", 1000+rng.Intn(9000), pick(rng, authMethods))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("File %s processed in %dms", pick(rng, fileNames), 10+rng.Intn(1991))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Request timeout after %ds", 5+rng.Intn(56))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("Retry attempt %d/3", 1+rng.Intn(3))
	},
	func(rng *rand.Rand) string {
		return fmt.Sprintf("%d active sessions, %d idle", 1+rng.Intn(100), rng.Intn(51))
	},
}

// A Synthesizer produces realistic-looking log lines from its own random
// source. Each writer owns one, so writers never contend on shared RNG state.
type Synthesizer struct {
	rng *rand.Rand
	now func() time.Time
}

func NewSynthesizer(seed int64) *Synthesizer {
	return &Synthesizer{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Severity draws one level from the weighted distribution.
func (s *Synthesizer) Severity() string {
	roll := s.rng.Float64()
	for i, weight := range severityWeights {
		if roll < weight {
			return severities[i]
		}
		roll -= weight
	}
	// Float rounding can leave a sliver past the last bucket
	return severities[len(severities)-1]
}

// Component draws one component tag uniformly.
func (s *Synthesizer) Component() string {
	return pick(s.rng, components)
}

// Message draws one builder uniformly and renders it.
func (s *Synthesizer) Message() string {
	return messageBuilders[s.rng.Intn(len(messageBuilders))](s.rng)
}

// Line renders one complete, newline-terminated log line with a
// millisecond-resolution timestamp and fixed-width level/component columns.
func (s *Synthesizer) Line() string {
	return fmt.Sprintf(
		"%s [%-5s] %-15s - %s\n",
		s.now().Format(lineTimeFormat), s.Severity(), s.Component(), s.Message(),
	)
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))]
}

func pickInt(rng *rand.Rand, from []int) int {
	return from[rng.Intn(len(from))]
}
