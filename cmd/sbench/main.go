// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sbench runs one stencil benchmark on the configured platform,
// verifies the output and appends the result to a session file.
//
// Options come from the YAML file given with -config, a .env file and
// SBENCH_* environment variables; -set overrides any of them.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/config"
	"github.com/LynnColeArt/sbench/internal/logging"
	"github.com/LynnColeArt/sbench/internal/report"
	"github.com/LynnColeArt/sbench/platform"
)

type overrides []string

func (o *overrides) String() string { return strings.Join(*o, ",") }

func (o *overrides) Set(v string) error {
	*o = append(*o, v)
	return nil
}

func main() {
	var (
		configFile = flag.String("config", "", "YAML file with benchmark options")
		reportDir  = flag.String("report-dir", "benchmark_logs", "Directory for session result files")
		list       = flag.Bool("list", false, "List available stencils and exit")
		sets       overrides
	)
	flag.Var(&sets, "set", "Override an option as key=value (repeatable)")
	flag.Parse()

	if *list {
		for _, name := range stencils() {
			fmt.Println(name)
		}
		return
	}

	args, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbench: %v\n", err)
		os.Exit(1)
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "sbench: malformed -set %q, want key=value\n", kv)
			os.Exit(2)
		}
		args.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	log, err := newLogger(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbench: %v\n", err)
		os.Exit(1)
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	version, sum := sbench.Version()
	log.Info("sbench starting",
		zap.String("version", version),
		zap.String("sum", sum),
		zap.Int("vector_bytes", platform.Features().VectorBytes()))

	session, err := report.NewSession(*reportDir, "sbench")
	if err != nil {
		log.Fatal("failed to start session", zap.Error(err))
	}

	result, err := execute(args, runID, log)
	if addErr := session.Add(result); addErr != nil {
		log.Warn("failed to record result", zap.Error(addErr))
	}
	report.Summary(os.Stdout, session.Results())
	log.Info("results written", zap.String("path", session.Path()))

	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil || result.Status != report.StatusPass {
		os.Exit(1)
	}
}

func newLogger(args *config.Args) (*zap.Logger, error) {
	level, err := args.String("log-level")
	if err != nil {
		return nil, err
	}
	file, err := args.String("log-file")
	if err != nil {
		return nil, err
	}
	dev, err := args.Bool("development")
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{Level: level, File: file, Development: dev})
}
