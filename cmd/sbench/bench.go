package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/basic"
	"github.com/LynnColeArt/sbench/config"
	"github.com/LynnColeArt/sbench/hdiff"
	"github.com/LynnColeArt/sbench/internal/report"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/stencil"
	"github.com/LynnColeArt/sbench/storage"
	"github.com/LynnColeArt/sbench/vadv"
	"github.com/LynnColeArt/sbench/verify"
)

// options is the harness part of the arguments map.
type options struct {
	stencil   string
	precision string
	runs      int
	verify    bool
	platform  platform.Options
	config    stencil.Config
}

func stencils() []string {
	return append([]string{hdiff.Name, vadv.Name}, basic.Names()...)
}

func readOptions(args *config.Args, log *zap.Logger) (options, error) {
	var (
		o   options
		err error
	)
	if o.stencil, err = args.String("stencil"); err != nil {
		return o, err
	}
	if o.precision, err = args.String("precision"); err != nil {
		return o, err
	}
	if o.runs, err = args.Int("runs"); err != nil {
		return o, err
	}
	if o.runs < 1 {
		return o, sbench.NewConfigurationError("readOptions", fmt.Sprintf("runs must be positive, got %d", o.runs))
	}
	if o.verify, err = args.Bool("verify"); err != nil {
		return o, err
	}
	if o.platform, err = platformOptions(args, log); err != nil {
		return o, err
	}
	o.config, err = stencil.FromArgs(args)
	return o, err
}

func platformOptions(args *config.Args, log *zap.Logger) (platform.Options, error) {
	opts := platform.Options{Logger: log}
	name, err := args.String("platform")
	if err != nil {
		return opts, err
	}
	if opts.Kind, err = platform.ParseKind(name); err != nil {
		return opts, err
	}
	if opts.Memory, err = args.String("memory"); err != nil {
		return opts, err
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"workers", &opts.Workers},
		{"cache-modulus", &opts.CacheModulus},
		{"flush-size", &opts.FlushSize},
		{"tile-index-limit", &opts.Device.TileIndexLimit},
	}
	for _, f := range ints {
		if *f.dst, err = args.Int(f.key); err != nil {
			return opts, err
		}
	}
	opts.Strict, err = args.Bool("strict")
	return opts, err
}

// benchmark binds a constructed variant to its input setup and its
// reference check.
type benchmark struct {
	variant    stencil.Variant
	strategy   stencil.Strategy
	initialize func(seed int64)
	check      func() (verify.Result, error)

	// bytes is the memory traffic of one run.
	bytes int
}

func build[T storage.Float](name string, p platform.Platform, cfg stencil.Config, log *zap.Logger) (*benchmark, error) {
	tol := verify.ToleranceFor[T]()
	points := cfg.ISize * cfg.JSize * cfg.KSize

	switch {
	case name == hdiff.Name:
		v, err := hdiff.New[T](p, cfg, log)
		if err != nil {
			return nil, err
		}
		return &benchmark{
			variant:    v,
			strategy:   v.Strategy(),
			initialize: v.Initialize,
			bytes:      3 * points * v.BytesPerElement(),
			check: func() (verify.Result, error) {
				return verify.Compare(v.Out(), verify.HorizontalDiffusion(v.In(), v.Coeff()), tol), nil
			},
		}, nil

	case name == vadv.Name:
		v, err := vadv.New[T](p, cfg, log)
		if err != nil {
			return nil, err
		}
		return &benchmark{
			variant:    v,
			strategy:   v.Strategy(),
			initialize: v.Initialize,
			// five inputs, three scratch columns written and read back, one output
			bytes: 12 * points * v.BytesPerElement(),
			check: func() (verify.Result, error) {
				wcon, ustage, upos, utens, utensstage := v.Inputs()
				ishift, jshift := v.Shift()
				want, err := verify.VerticalAdvection(verify.AdvectionInputs[T]{
					Wcon: wcon, Ustage: ustage, Upos: upos, Utens: utens, Utensstage: utensstage,
					IShift: ishift, JShift: jshift,
				})
				if err != nil {
					return verify.Result{}, err
				}
				return verify.Compare(v.Out(), want, tol), nil
			},
		}, nil

	case basic.Has(name):
		v, err := basic.New[T](name, p, cfg, log)
		if err != nil {
			return nil, err
		}
		return &benchmark{
			variant:    v,
			strategy:   v.Strategy(),
			initialize: v.Initialize,
			bytes:      2 * points * v.BytesPerElement(),
			check: func() (verify.Result, error) {
				want, err := verify.Basic(name, v.Src())
				if err != nil {
					return verify.Result{}, err
				}
				return verify.Compare(v.Dst(), want, tol), nil
			},
		}, nil

	default:
		return nil, sbench.NewConfigurationError("build", fmt.Sprintf("unknown stencil %q", name))
	}
}

// execute runs the configured benchmark. The returned result is filled as
// far as the benchmark got, also when an error is returned.
func execute(args *config.Args, runID string, log *zap.Logger) (report.Result, error) {
	result := report.Result{RunID: runID, Status: report.StatusFail}
	fail := func(err error) (report.Result, error) {
		result.Error = err.Error()
		return result, err
	}

	opts, err := readOptions(args, log)
	if err != nil {
		return fail(err)
	}
	result.Stencil = opts.stencil
	result.Precision = opts.precision
	result.Domain = [3]int{opts.config.ISize, opts.config.JSize, opts.config.KSize}

	p, err := platform.New(opts.platform)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("failed to close platform", zap.Error(err))
		}
	}()
	result.Platform = p.Name()

	switch opts.precision {
	case "float32":
		err = measure[float32](p, opts, &result, log)
	case "float64":
		err = measure[float64](p, opts, &result, log)
	default:
		err = sbench.NewConfigurationError("execute", fmt.Sprintf("unknown precision %q", opts.precision))
	}
	if err != nil {
		return fail(err)
	}
	return result, nil
}

func measure[T storage.Float](p platform.Platform, opts options, result *report.Result, log *zap.Logger) error {
	b, err := build[T](opts.stencil, p, opts.config, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.variant.Close(); err != nil {
			log.Warn("failed to release buffers", zap.Error(err))
		}
	}()
	result.Strategy = b.strategy.String()
	b.initialize(opts.config.Seed)

	log.Info("benchmark configured",
		zap.String("stencil", opts.stencil),
		zap.String("platform", p.Name()),
		zap.Stringer("strategy", b.strategy),
		zap.String("precision", opts.precision),
		zap.Ints("domain", result.Domain[:]),
		zap.Int("runs", opts.runs))

	times := make([]time.Duration, 0, opts.runs)
	for r := 0; r < opts.runs; r++ {
		if err := b.variant.Prerun(); err != nil {
			return err
		}
		start := time.Now()
		if err := b.variant.Run(); err != nil {
			return err
		}
		elapsed := time.Since(start)
		if err := b.variant.Postrun(); err != nil {
			return err
		}
		times = append(times, elapsed)
		log.Debug("run complete", zap.Int("run", r), zap.Duration("time", elapsed))
	}
	result.Timings(times, b.bytes)

	if !opts.verify {
		result.Status = report.StatusPass
		return nil
	}
	check, err := b.check()
	if err != nil {
		return err
	}
	result.Verified = true
	result.Verification = check.String()
	if check.OK() {
		result.Status = report.StatusPass
		log.Info("verification passed", zap.Stringer("result", check))
	} else {
		log.Warn("verification failed", zap.Stringer("result", check))
	}
	return nil
}
