// Package reporter ships throttle drop counts to an external event endpoint
// so a capped load test still accounts for the lines it didn't write.
package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	loghttp "github.com/motemen/go-loghttp"
	director "github.com/relistan/go-director"
	log "github.com/sirupsen/logrus"
)

// A DropReporter tracks how many lines the throttle refused to write and
// posts the count as an insights-style event once a minute. Increments are
// atomic so every writer can feed it without coordination.
type DropReporter struct {
	client    *http.Client
	BaseURL   string
	InsertKey string
	AccountID string

	droppedCount uint64
	ReportLooper director.Looper
	hostname     string
}

// NewDropReporter returns a properly configured reporter
func NewDropReporter(url, insertKey, accountID string) *DropReporter {
	client := cleanhttp.DefaultClient()
	client.Transport = &loghttp.Transport{
		LogRequest: func(req *http.Request) {
			log.Debugf("%s %s", req.Method, req.URL)
		},
		LogResponse: func(resp *http.Response) {
			log.Debugf("%d %s", resp.StatusCode, resp.Request.URL)
		},
		Transport: cleanhttp.DefaultTransport(),
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatal("Unable to determine hostname! Can't continue")
	}

	return &DropReporter{
		client:       client,
		BaseURL:      url,
		InsertKey:    insertKey,
		AccountID:    accountID,
		ReportLooper: director.NewTimedLooper(director.FOREVER, 1*time.Minute, make(chan error, 1)),
		hostname:     hostname,
	}
}

// Incr atomically increments the current drop count
func (r *DropReporter) Incr() {
	atomic.AddUint64(&r.droppedCount, 1)
}

// Run starts the background goroutine that flushes the count once a minute.
// A window whose send fails is logged and lost; this is a best-effort
// metric, not an accounting system.
func (r *DropReporter) Run() {
	log.Infof("Starting up drop reporter for account '%s'", r.AccountID)

	url := fmt.Sprintf("%s/%s/events", r.BaseURL, r.AccountID)

	go r.ReportLooper.Loop(func() error {
		// Drain the counter with atomic ops so no increment is lost
		count := atomic.LoadUint64(&r.droppedCount)
		atomic.AddUint64(&r.droppedCount, 0-count)

		if count > 0 {
			// We _don't_ want to exit on error
			if err := r.sendEvent(url, count); err != nil {
				log.Errorf("Error reporting drops: %s", err)
			}
		}

		return nil
	})
}

// Stop shuts down the reporting loop
func (r *DropReporter) Stop() {
	r.ReportLooper.Quit()
}

// sendEvent serializes the JSON event and posts it
func (r *DropReporter) sendEvent(url string, count uint64) error {
	data, err := json.Marshal(struct {
		Time         string
		Hostname     string
		DroppedCount uint64
		EventType    string `json:"eventType"`
	}{
		Time:         time.Now().UTC().Format(time.RFC3339),
		Hostname:     r.hostname,
		DroppedCount: count,
		EventType:    "LogSpammerThrottleExceeded",
	})
	if err != nil {
		return fmt.Errorf("Unable to encode JSON event: %s", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("Unable to create http request: %s", err)
	}
	req.Header.Add("X-Insert-Key", r.InsertKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("Failed making HTTP request: %s", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(resp.Body)
		return fmt.Errorf("Bad response from event endpoint: %s", string(body))
	}

	return nil
}
