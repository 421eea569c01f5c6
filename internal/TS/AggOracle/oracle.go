package AggOracle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyw0ng95/aggoracle/internal/IS"
	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/ExprGen"
	"github.com/cyw0ng95/aggoracle/internal/log"
)

// Schema supplies the tables a check runs against.
type Schema interface {
	PickNonEmptyTables(ctx context.Context, rnd *util.LCG) (IS.TableSet, error)
}

// ExprSource supplies random syntax over the picked tables.
type ExprSource interface {
	RandomColumnExpressions(n int) []QP.Expr
	RandomBooleanExpression() QP.Expr
	RandomOrderingTerms() []QP.OrderTerm
}

// SourceFactory builds an ExprSource for one check.
type SourceFactory func(rnd *util.LCG, columns []*QP.ColumnRef) ExprSource

// Executor runs query text and returns the first cell.
type Executor interface {
	QueryScalar(ctx context.Context, query string) (QE.Scalar, error)
}

// ErrorRegistry classifies engine errors. A result wrapping
// *errors.ExpectedError makes the check inconclusive; anything else is fatal.
type ErrorRegistry interface {
	Classify(query string, err error) error
}

const (
	DefaultProbGroupBy    = 0.1
	DefaultProbOrderBy    = 0.5
	DefaultProbNotIndexed = 0.05
)

// Config holds the probabilities used to draw optional clauses.
type Config struct {
	// ProbGroupBy is drawn independently for each partition leg.
	ProbGroupBy float64
	// ProbOrderBy is drawn for the direct query and for each leg.
	ProbOrderBy float64
	// ProbNotIndexed is drawn per table on dialects with the hint.
	ProbNotIndexed float64
	Tolerance      Tolerance
}

func DefaultConfig() Config {
	return Config{
		ProbGroupBy:    DefaultProbGroupBy,
		ProbOrderBy:    DefaultProbOrderBy,
		ProbNotIndexed: DefaultProbNotIndexed,
		Tolerance:      DefaultTolerance,
	}
}

// Deps are the collaborators of an Oracle.
type Deps struct {
	Schema  Schema
	Exprs   SourceFactory
	Exec    Executor
	Errors  ErrorRegistry
	Dialect QP.Dialect
	// Logger defaults to the package logger.
	Logger *zap.Logger
}

// Oracle runs aggregate partitioning checks. It keeps no state between
// checks; concurrent checks need separate Executors only if the underlying
// connection demands it.
type Oracle struct {
	deps   Deps
	cfg    Config
	synth  Synthesizer
	funcs  []QP.AggFunc
	logger *zap.Logger
}

// New creates an Oracle.
func New(deps Deps, cfg Config) *Oracle {
	util.AssertNotNil(deps.Schema, "Deps.Schema")
	util.AssertNotNil(deps.Exprs, "Deps.Exprs")
	util.AssertNotNil(deps.Exec, "Deps.Exec")
	funcs := deps.Dialect.Aggregates
	if len(funcs) == 0 {
		funcs = []QP.AggFunc{QP.AggMin, QP.AggMax, QP.AggSum}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.L()
	}
	return &Oracle{
		deps:   deps,
		cfg:    cfg,
		synth:  NewSynthesizer(deps.Dialect),
		funcs:  funcs,
		logger: logger.With(zap.String("oracle", "aggregate")),
	}
}

// Check runs one check with randomness drawn from rnd.
//
// A mismatch is reported as a Bug result with a nil error. The error is
// non-nil only when no table has rows (errors.ErrNoTables), when the engine
// fails in a way the registry does not know (*errors.ExecError) or when ctx
// is done.
func (o *Oracle) Check(ctx context.Context, rnd *util.LCG) (Result, error) {
	tables, err := o.deps.Schema.PickNonEmptyTables(ctx, rnd)
	if err != nil {
		return Result{}, err
	}

	plan := o.Draw(rnd, tables)
	direct, partitioned := o.synth.Render(plan)
	ev := Evidence{
		Aggregate:   string(plan.Aggregate.Func),
		Predicate:   plan.Predicate.SQL(),
		Tables:      tables.Names(),
		Direct:      direct,
		Partitioned: partitioned,
	}

	ev.DirectResult, err = o.deps.Exec.QueryScalar(ctx, direct)
	if err != nil {
		return o.failed(ctx, ev, "direct", direct, err)
	}
	ev.PartitionedResult, err = o.deps.Exec.QueryScalar(ctx, partitioned)
	if err != nil {
		return o.failed(ctx, ev, "partitioned", partitioned, err)
	}

	if !o.cfg.Tolerance.Equal(ev.DirectResult, ev.PartitionedResult) {
		reason := fmt.Sprintf("%s differs: direct=%s partitioned=%s",
			ev.Aggregate, ev.DirectResult, ev.PartitionedResult)
		res := Result{Outcome: Bug, Reason: reason, Evidence: ev}
		o.logger.Warn("aggregate mismatch",
			zap.String("direct", direct),
			zap.String("partitioned", partitioned),
			zap.Stringer("direct_result", ev.DirectResult),
			zap.Stringer("partitioned_result", ev.PartitionedResult))
		return res, nil
	}

	o.logger.Debug("check passed",
		zap.String("aggregate", ev.Aggregate),
		zap.Stringer("result", ev.DirectResult))
	return Result{Outcome: Pass, Evidence: ev}, nil
}

// Draw picks the random parts of a check over tables.
func (o *Oracle) Draw(rnd *util.LCG, tables IS.TableSet) Plan {
	gen := o.deps.Exprs(rnd, tables.Columns())

	from := make([]QP.TableRef, len(tables.Tables))
	for i, t := range tables.Tables {
		from[i] = QP.TableRef{
			Name:       t.Name,
			NotIndexed: o.deps.Dialect.NotIndexed && rnd.BoolWithProb(o.cfg.ProbNotIndexed),
		}
	}

	agg := &QP.Aggregate{
		Func: o.funcs[rnd.Intn(len(o.funcs))],
		Args: gen.RandomColumnExpressions(1),
	}
	plan := Plan{
		From:      from,
		Aggregate: agg,
		Predicate: gen.RandomBooleanExpression(),
	}
	if rnd.BoolWithProb(o.cfg.ProbOrderBy) {
		plan.DirectOrder = gen.RandomOrderingTerms()
	}
	for i := range plan.Legs {
		if rnd.BoolWithProb(o.cfg.ProbGroupBy) {
			plan.Legs[i].GroupBy = gen.RandomColumnExpressions(rnd.SmallNumber() + 1)
		}
		if rnd.BoolWithProb(o.cfg.ProbOrderBy) {
			plan.Legs[i].OrderBy = gen.RandomOrderingTerms()
		}
	}
	return plan
}

func (o *Oracle) failed(ctx context.Context, ev Evidence, which, query string, err error) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("%s query: %w", which, ctxErr)
	}
	var classified error = &sferrors.ExecError{Query: query, Err: err}
	if o.deps.Errors != nil {
		classified = o.deps.Errors.Classify(query, err)
	}

	var expected *sferrors.ExpectedError
	if sferrors.KindOf(classified) != sferrors.KindExpected || !errors.As(classified, &expected) {
		return Result{}, classified
	}
	o.logger.Debug("expected engine error",
		zap.String("query", query),
		zap.String("signature", expected.Signature),
		zap.Error(err))
	ev.Signature = expected.Signature
	return Result{
		Outcome:  Inconclusive,
		Reason:   fmt.Sprintf("%s query: %v", which, err),
		Evidence: ev,
	}, nil
}

// GeneratorSource returns a SourceFactory backed by ExprGen.
func GeneratorSource(opts ExprGen.Options) SourceFactory {
	return func(rnd *util.LCG, columns []*QP.ColumnRef) ExprSource {
		return ExprGen.New(rnd, columns, opts)
	}
}
