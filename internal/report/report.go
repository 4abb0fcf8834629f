// Package report records benchmark results of a session in a JSON file and
// prints a summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Status values of a Result.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Result captures one benchmarked configuration.
type Result struct {
	RunID     string `json:"run_id"`
	Stencil   string `json:"stencil"`
	Platform  string `json:"platform"`
	Strategy  string `json:"strategy"`
	Precision string `json:"precision"`
	Domain    [3]int `json:"domain"`
	Status    string `json:"status"`

	Runs     int           `json:"runs"`
	Min      time.Duration `json:"min_ns"`
	Median   time.Duration `json:"median_ns"`
	Mean     time.Duration `json:"mean_ns"`
	MBPerSec float64       `json:"mb_per_sec,omitempty"`

	Verified     bool      `json:"verified"`
	Verification string    `json:"verification,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Name identifies the configuration in summaries.
func (r Result) Name() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Stencil, r.Platform, r.Strategy, r.Precision)
}

// Timings fills the statistics of r from per-run durations. bytes is the
// memory traffic of one run, used for the bandwidth figure.
func (r *Result) Timings(times []time.Duration, bytes int) {
	r.Runs = len(times)
	if len(times) == 0 {
		return
	}
	sorted := append([]time.Duration(nil), times...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })

	var total time.Duration
	for _, t := range sorted {
		total += t
	}
	r.Min = sorted[0]
	r.Mean = total / time.Duration(len(sorted))
	if n := len(sorted); n%2 == 1 {
		r.Median = sorted[n/2]
	} else {
		r.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if r.Median > 0 {
		r.MBPerSec = float64(bytes) / r.Median.Seconds() / 1e6
	}
}

// Session collects results and rewrites its file after every addition.
type Session struct {
	mu      sync.Mutex
	path    string
	results []Result
}

// NewSession creates dir if needed and starts a session file named after
// the session and the start time.
func NewSession(dir, name string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, time.Now().Format("20060102_150405")))
	s := &Session{path: path}
	return s, s.flush()
}

// Path returns the session file.
func (s *Session) Path() string { return s.path }

// Add records r. The file is written immediately so a crash keeps what was
// measured so far.
func (s *Session) Add(r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.results = append(s.results, r)
	return s.flush()
}

// Results returns a copy of the recorded results.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

func (s *Session) flush() error {
	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads a session file.
func Load(path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

// Summary prints one line per result and a total.
func Summary(w io.Writer, results []Result) {
	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintln(w, strings.Repeat("=", 78))
	passed, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
			fmt.Fprintf(w, "%s %-40s %12s median %10.1f MB/s\n", pass("PASS"), r.Name(), r.Median, r.MBPerSec)
		default:
			failed++
			reason := r.Error
			if reason == "" {
				reason = r.Verification
			}
			fmt.Fprintf(w, "%s %-40s %s\n", fail("FAIL"), r.Name(), reason)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
}
