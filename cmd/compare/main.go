// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command compare compares a session file of sbench results against a
// baseline session.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/LynnColeArt/sbench/internal/report"
)

// Comparison statuses.
const (
	StatusPass   = "PASS"
	StatusFail   = "FAIL"
	StatusSlower = "SLOWER"
	StatusFaster = "FASTER"
)

type ComparisonResult struct {
	Name   string
	Status string

	BaselineMedian time.Duration
	CurrentMedian  time.Duration
	SpeedupFactor  float64

	Message string
}

func main() {
	var (
		baselineFile = flag.String("baseline", "baseline.json", "Baseline session file")
		currentFile  = flag.String("current", "current.json", "Current session file")
		perfRegress  = flag.Float64("perf-regress", 1.1, "Performance regression threshold (1.1 = 10% slower)")
		failSlower   = flag.Bool("fail-slower", false, "Treat a performance regression as failure")
	)
	flag.Parse()

	baseline, err := report.Load(*baselineFile)
	if err != nil {
		log.Fatalf("Failed to load baseline: %v", err)
	}
	current, err := report.Load(*currentFile)
	if err != nil {
		log.Fatalf("Failed to load current results: %v", err)
	}

	comparisons := compareResults(baseline, current, *perfRegress)
	printSummary(os.Stdout, comparisons)

	for _, comp := range comparisons {
		if comp.Status == StatusFail || (*failSlower && comp.Status == StatusSlower) {
			os.Exit(1)
		}
	}
}

// latest keeps the last result recorded for every configuration.
func latest(results []report.Result) map[string]report.Result {
	m := make(map[string]report.Result, len(results))
	for _, r := range results {
		m[r.Name()] = r
	}
	return m
}

func compareResults(baseline, current []report.Result, perfRegress float64) []ComparisonResult {
	baseMap, currentMap := latest(baseline), latest(current)
	seen := make(map[string]bool)

	comparisons := make([]ComparisonResult, 0, len(baseline))
	for _, base := range baseline {
		name := base.Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		base = baseMap[name]

		comp := ComparisonResult{Name: name, BaselineMedian: base.Median}
		curr, exists := currentMap[name]
		switch {
		case !exists:
			comp.Status = StatusFail
			comp.Message = "configuration missing in current results"
		case curr.Status != report.StatusPass:
			comp.Status = StatusFail
			comp.Message = curr.Error
			if comp.Message == "" {
				comp.Message = curr.Verification
			}
		case base.Median <= 0 || curr.Median <= 0:
			comp.Status = StatusPass
			comp.CurrentMedian = curr.Median
			comp.Message = "no timing to compare"
		default:
			comp.CurrentMedian = curr.Median
			comp.SpeedupFactor = float64(base.Median) / float64(curr.Median)
			switch {
			case comp.SpeedupFactor < 1.0/perfRegress:
				comp.Status = StatusSlower
				comp.Message = fmt.Sprintf("performance regression: %.2fx slower", 1.0/comp.SpeedupFactor)
			case comp.SpeedupFactor > 1.2:
				comp.Status = StatusFaster
				comp.Message = fmt.Sprintf("performance improvement: %.2fx faster", comp.SpeedupFactor)
			default:
				comp.Status = StatusPass
			}
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

func printSummary(w io.Writer, comparisons []ComparisonResult) {
	paint := map[string]func(a ...interface{}) string{
		StatusPass:   color.New(color.FgGreen).SprintFunc(),
		StatusFail:   color.New(color.FgRed, color.Bold).SprintFunc(),
		StatusSlower: color.New(color.FgYellow).SprintFunc(),
		StatusFaster: color.New(color.FgCyan).SprintFunc(),
	}
	counts := make(map[string]int)

	fmt.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "%-40s %-8s %12s %12s %8s  %s\n", "Configuration", "Status", "Baseline", "Current", "Speedup", "Message")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, c := range comparisons {
		counts[c.Status]++
		speedup := "-"
		if c.SpeedupFactor > 0 {
			speedup = fmt.Sprintf("%.2fx", c.SpeedupFactor)
		}
		fmt.Fprintf(w, "%-40s %-8s %12s %12s %8s  %s\n",
			c.Name, paint[c.Status](c.Status), c.BaselineMedian, c.CurrentMedian, speedup, c.Message)
	}
	fmt.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d | Slower: %d | Faster: %d\n",
		len(comparisons), counts[StatusPass], counts[StatusFail], counts[StatusSlower], counts[StatusFaster])
}
