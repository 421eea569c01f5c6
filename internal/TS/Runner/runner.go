package Runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/AggOracle"
	"github.com/cyw0ng95/aggoracle/internal/log"
	"github.com/cyw0ng95/aggoracle/internal/metrics"
)

// Checker runs one oracle check. *AggOracle.Oracle implements it.
type Checker interface {
	Check(ctx context.Context, rnd *util.LCG) (AggOracle.Result, error)
}

type Options struct {
	Checks  int
	Workers int
	// Seed of the first check; check i runs with Seed+i so any single
	// check can be replayed. It is also the run seed the tables were
	// populated from and is recorded as such in each report.
	Seed      uint64
	StopOnBug bool
}

// Summary counts check outcomes.
type Summary struct {
	Checks       int64
	Pass         int64
	Bug          int64
	Inconclusive int64
	// Signatures counts inconclusive checks by the expected-error
	// signature that caused them.
	Signatures map[string]int64
	Reports    []Report
}

type counters struct {
	pass, bug, inconclusive atomic.Int64

	mu         sync.Mutex
	signatures map[string]int64
}

func (c *counters) addSignature(sig string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signatures == nil {
		c.signatures = make(map[string]int64)
	}
	c.signatures[sig]++
}

var errStopOnBug = errors.New("stopped on first bug")

// Runner drives a Checker over many seeds with a pool of workers.
type Runner struct {
	checker  Checker
	opts     Options
	reporter *Reporter
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New creates a Runner. reporter and tp may be nil.
func New(checker Checker, opts Options, reporter *Reporter, tp trace.TracerProvider) *Runner {
	util.AssertNotNil(checker, "checker")
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Runner{
		checker:  checker,
		opts:     opts,
		reporter: reporter,
		tracer:   tp.Tracer("github.com/cyw0ng95/aggoracle"),
		logger:   log.L().With(zap.String("component", "runner")),
	}
}

// Run executes the configured number of checks. Cancelling ctx stops the run
// early without an error. An unexpected engine error or an empty schema
// aborts the run and is returned with the partial summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var (
		next    atomic.Int64
		c       counters
		reports = make(chan Report, r.opts.Workers)
		done    = make(chan struct{})
		sum     Summary
	)
	go func() {
		defer close(done)
		for rep := range reports {
			sum.Reports = append(sum.Reports, rep)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.opts.Workers; w++ {
		g.Go(func() error {
			metrics.WorkersActive.Inc()
			defer metrics.WorkersActive.Dec()
			for {
				i := next.Add(1) - 1
				if i >= int64(r.opts.Checks) || gctx.Err() != nil {
					return nil
				}
				if err := r.runOne(gctx, r.opts.Seed+uint64(i), &c, reports); err != nil {
					return err
				}
			}
		})
	}
	err := g.Wait()
	close(reports)
	<-done

	sum.Pass = c.pass.Load()
	sum.Bug = c.bug.Load()
	sum.Inconclusive = c.inconclusive.Load()
	sum.Signatures = c.signatures
	sum.Checks = sum.Pass + sum.Bug + sum.Inconclusive

	switch {
	case errors.Is(err, errStopOnBug):
		err = nil
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		err = nil
	}
	r.logger.Info("run finished",
		zap.Int64("checks", sum.Checks),
		zap.Int64("pass", sum.Pass),
		zap.Int64("bug", sum.Bug),
		zap.Int64("inconclusive", sum.Inconclusive),
		zap.Error(err))
	return sum, err
}

func (r *Runner) runOne(ctx context.Context, seed uint64, c *counters, reports chan<- Report) error {
	ctx, span := r.tracer.Start(ctx, "aggoracle.check",
		trace.WithAttributes(attribute.Int64("aggoracle.seed", int64(seed))))
	defer span.End()

	res, err := r.checker.Check(ctx, util.NewLCG(seed))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		metrics.ChecksTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, sferrors.KindOf(err).String())
		r.logger.Error("check failed", zap.Uint64("seed", seed), zap.Error(err))
		return fmt.Errorf("check seed %d: %w", seed, err)
	}

	span.SetAttributes(
		attribute.String("aggoracle.outcome", res.Outcome.String()),
		attribute.String("aggoracle.aggregate", res.Evidence.Aggregate))
	metrics.ChecksTotal.WithLabelValues(res.Outcome.String()).Inc()
	metrics.ChecksByAggregate.WithLabelValues(res.Evidence.Aggregate).Inc()

	switch res.Outcome {
	case AggOracle.Pass:
		c.pass.Add(1)
	case AggOracle.Inconclusive:
		c.inconclusive.Add(1)
		if sig := res.Evidence.Signature; sig != "" {
			c.addSignature(sig)
			metrics.InconclusiveBySignature.WithLabelValues(sig).Inc()
			span.SetAttributes(attribute.String("aggoracle.signature", sig))
		}
	case AggOracle.Bug:
		c.bug.Add(1)
		span.SetStatus(codes.Error, res.Reason)
		if err := r.report(seed, res, reports); err != nil {
			return err
		}
		if r.opts.StopOnBug {
			return errStopOnBug
		}
	}
	return nil
}

func (r *Runner) report(seed uint64, res AggOracle.Result, reports chan<- Report) error {
	if r.reporter == nil {
		reports <- Report{
			RunSeed:   r.opts.Seed,
			Seed:      seed,
			Reason:    res.Reason,
			Aggregate: res.Evidence.Aggregate,
		}
		return nil
	}
	rep, err := r.reporter.Add(r.opts.Seed, seed, res)
	if err != nil {
		return fmt.Errorf("write bug report: %w", err)
	}
	r.logger.Warn("bug reported",
		zap.String("id", rep.ID),
		zap.Uint64("seed", seed),
		zap.String("reason", res.Reason))
	reports <- rep
	return nil
}
