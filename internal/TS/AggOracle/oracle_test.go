package AggOracle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cyw0ng95/aggoracle/internal/IS"
	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
)

// fixedSource always hands out the same syntax.
type fixedSource struct {
	column    QP.Expr
	predicate QP.Expr
}

func (f fixedSource) RandomColumnExpressions(n int) []QP.Expr {
	out := make([]QP.Expr, n)
	for i := range out {
		out[i] = f.column
	}
	return out
}

func (f fixedSource) RandomBooleanExpression() QP.Expr { return f.predicate }

func (f fixedSource) RandomOrderingTerms() []QP.OrderTerm {
	return []QP.OrderTerm{{Expr: f.column}}
}

func fixed(column, predicate QP.Expr) SourceFactory {
	return func(*util.LCG, []*QP.ColumnRef) ExprSource {
		return fixedSource{column: column, predicate: predicate}
	}
}

// onlyAggregate restricts the SQLite dialect to one aggregate function.
func onlyAggregate(f QP.AggFunc) QP.Dialect {
	d := QP.SQLite
	d.Aggregates = []QP.AggFunc{f}
	d.NotIndexed = false
	return d
}

func openT(t *testing.T) (*sql.DB, *IS.Catalog) {
	t.Helper()
	db, err := QE.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, s := range []string{
		"CREATE TABLE t (x INTEGER)",
		"INSERT INTO t VALUES (1), (2), (NULL)",
	} {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	cat := IS.NewCatalog(db, QP.SQLite, 1)
	require.NoError(t, cat.Load(context.Background()))
	return db, cat
}

func sqliteRegistry(t *testing.T) *sferrors.Registry {
	t.Helper()
	reg, err := sferrors.ForDialect("sqlite")
	require.NoError(t, err)
	return reg
}

var (
	tx     = &QP.ColumnRef{Table: "t", Name: "x", Affinity: QP.AffinityInteger}
	xGtOne = &QP.BinaryExpr{Op: QP.OpGt, Left: tx, Right: &QP.Literal{Value: int64(1)}}
)

func noOptionalClauses() Config {
	cfg := DefaultConfig()
	cfg.ProbGroupBy = 0
	cfg.ProbOrderBy = 0
	cfg.ProbNotIndexed = 0
	return cfg
}

func TestCheckSumPartitions(t *testing.T) {
	db, cat := openT(t)
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    QE.NewExecutor(db),
		Errors:  sqliteRegistry(t),
		Dialect: onlyAggregate(QP.AggSum),
	}, noOptionalClauses())

	res, err := o.Check(context.Background(), util.NewLCG(1))
	require.NoError(t, err)
	assert.Equal(t, Pass, res.Outcome, res.Reason)
	assert.Equal(t, QE.Present("3"), res.Evidence.DirectResult)
	assert.Equal(t, QE.Present("3"), res.Evidence.PartitionedResult)
	assert.Equal(t, "SELECT SUM(t.x) FROM t", res.Evidence.Direct)
	assert.Equal(t, "SELECT SUM(aggr) FROM ("+
		"SELECT SUM(t.x) AS aggr FROM t WHERE (t.x > 1) UNION ALL "+
		"SELECT SUM(t.x) AS aggr FROM t WHERE (NOT (t.x > 1)) UNION ALL "+
		"SELECT SUM(t.x) AS aggr FROM t WHERE ((t.x > 1) IS NULL))", res.Evidence.Partitioned)
	assert.Equal(t, []string{"t"}, res.Evidence.Tables)
	assert.NoError(t, res.Err())

	// The individual legs carry 2, 1 and nothing.
	ex := QE.NewExecutor(db)
	for where, want := range map[string]QE.Scalar{
		"(t.x > 1)":           QE.Present("2"),
		"(NOT (t.x > 1))":     QE.Present("1"),
		"((t.x > 1) IS NULL)": QE.Absent,
	} {
		got, err := ex.QueryScalar(context.Background(), "SELECT SUM(t.x) FROM t WHERE "+where)
		require.NoError(t, err)
		assert.Equal(t, want, got, where)
	}
}

func TestCheckAlwaysFalsePredicate(t *testing.T) {
	db, cat := openT(t)
	never := &QP.BinaryExpr{Op: QP.OpEq, Left: &QP.Literal{Value: int64(1)}, Right: &QP.Literal{Value: int64(0)}}

	for _, f := range QP.SQLite.Aggregates {
		t.Run(string(f), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProbGroupBy = 1
			cfg.ProbOrderBy = 1
			o := New(Deps{
				Schema:  cat,
				Exprs:   fixed(tx, never),
				Exec:    QE.NewExecutor(db),
				Errors:  sqliteRegistry(t),
				Dialect: onlyAggregate(f),
			}, cfg)

			res, err := o.Check(context.Background(), util.NewLCG(2))
			require.NoError(t, err)
			assert.Equal(t, Pass, res.Outcome, res.Reason)
			assert.True(t, res.Evidence.DirectResult.Present)
			assert.Contains(t, res.Evidence.Partitioned, "GROUP BY")
		})
	}
}

// doubleNullLeg simulates an engine that counts the rows of the last
// partition twice.
type doubleNullLeg struct {
	inner *QE.Executor
}

func (d doubleNullLeg) QueryScalar(ctx context.Context, query string) (QE.Scalar, error) {
	if i := strings.LastIndex(query, " UNION ALL "); i >= 0 {
		last := query[i : len(query)-1]
		query = query[:len(query)-1] + last + ")"
	}
	return d.inner.QueryScalar(ctx, query)
}

func TestCheckDetectsDoubleCounting(t *testing.T) {
	db, cat := openT(t)
	core, logs := observer.New(zap.WarnLevel)
	arg := &QP.FuncCall{Name: "COALESCE", Args: []QP.Expr{tx, &QP.Literal{Value: int64(10)}}}

	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(arg, xGtOne),
		Exec:    doubleNullLeg{inner: QE.NewExecutor(db)},
		Errors:  sqliteRegistry(t),
		Dialect: onlyAggregate(QP.AggSum),
		Logger:  zap.New(core),
	}, noOptionalClauses())

	res, err := o.Check(context.Background(), util.NewLCG(3))
	require.NoError(t, err)
	require.Equal(t, Bug, res.Outcome)
	assert.Equal(t, QE.Present("13"), res.Evidence.DirectResult)
	assert.Equal(t, QE.Present("23"), res.Evidence.PartitionedResult)
	assert.Contains(t, res.Reason, "SUM differs")

	var bug *sferrors.BugError
	require.ErrorAs(t, res.Err(), &bug)
	assert.Equal(t, res.Evidence.Direct, bug.Direct)
	assert.Equal(t, res.Evidence.Partitioned, bug.Partitioned)
	assert.Equal(t, "13", bug.DirectResult)
	assert.Equal(t, "23", bug.PartitionedResult)
	assert.Equal(t, sferrors.KindBug, sferrors.KindOf(res.Err()))

	script := res.Evidence.Script()
	assert.Contains(t, script, "-- "+res.Evidence.Direct+";\n")
	assert.Contains(t, script, "-- "+res.Evidence.Partitioned+";\n")
	assert.Contains(t, script, "-- 13\n-- 23\n")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "aggregate mismatch", logs.All()[0].Message)
}

// scriptedExec returns canned answers in call order.
type scriptedExec struct {
	results []QE.Scalar
	errs    []error
	queries []string
}

func (s *scriptedExec) QueryScalar(_ context.Context, query string) (QE.Scalar, error) {
	i := len(s.queries)
	s.queries = append(s.queries, query)
	if i < len(s.errs) && s.errs[i] != nil {
		return QE.Absent, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return QE.Absent, nil
}

func TestCheckExpectedErrorIsInconclusive(t *testing.T) {
	_, cat := openT(t)
	tests := []struct {
		name      string
		errs      []error
		calls     int
		signature string
	}{
		{"direct", []error{errors.New("integer overflow")}, 1, "integer overflow"},
		{"partitioned", []error{nil, errors.New("1st ORDER BY term out of range - should be between 1 and 1")}, 2, "ORDER BY term out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &scriptedExec{errs: tt.errs, results: []QE.Scalar{QE.Present("3")}}
			o := New(Deps{
				Schema:  cat,
				Exprs:   fixed(tx, xGtOne),
				Exec:    exec,
				Errors:  sqliteRegistry(t),
				Dialect: onlyAggregate(QP.AggMax),
			}, noOptionalClauses())

			res, err := o.Check(context.Background(), util.NewLCG(4))
			require.NoError(t, err)
			assert.Equal(t, Inconclusive, res.Outcome)
			assert.True(t, strings.HasPrefix(res.Reason, tt.name+" query: "), res.Reason)
			assert.Len(t, exec.queries, tt.calls)
			assert.NoError(t, res.Err())
			assert.NotEmpty(t, res.Evidence.Direct)
			assert.Equal(t, tt.signature, res.Evidence.Signature)
		})
	}
}

func TestCheckUnexpectedErrorIsFatal(t *testing.T) {
	_, cat := openT(t)
	boom := errors.New("disk I/O error")
	exec := &scriptedExec{errs: []error{nil, boom}, results: []QE.Scalar{QE.Present("2")}}
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    exec,
		Errors:  sqliteRegistry(t),
		Dialect: onlyAggregate(QP.AggMax),
	}, noOptionalClauses())

	_, err := o.Check(context.Background(), util.NewLCG(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var execErr *sferrors.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, exec.queries[1], execErr.Query)
	assert.Equal(t, sferrors.KindExecution, sferrors.KindOf(err))
}

func TestCheckNoRegistryIsFatal(t *testing.T) {
	_, cat := openT(t)
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    &scriptedExec{errs: []error{errors.New("integer overflow")}},
		Dialect: onlyAggregate(QP.AggSum),
	}, noOptionalClauses())

	_, err := o.Check(context.Background(), util.NewLCG(6))
	assert.Equal(t, sferrors.KindExecution, sferrors.KindOf(err))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, cat := openT(t)
	full := Deps{Schema: cat, Exprs: fixed(tx, xGtOne), Exec: &scriptedExec{}, Dialect: QP.SQLite}
	assert.NotPanics(t, func() { New(full, DefaultConfig()) })

	noSchema := full
	noSchema.Schema = nil
	assert.PanicsWithValue(t, "Assertion failed: Deps.Schema must not be nil", func() { New(noSchema, DefaultConfig()) })

	noExec := full
	noExec.Exec = nil
	assert.PanicsWithValue(t, "Assertion failed: Deps.Exec must not be nil", func() { New(noExec, DefaultConfig()) })

	var typedNil *QE.Executor
	nilExec := full
	nilExec.Exec = typedNil
	assert.Panics(t, func() { New(nilExec, DefaultConfig()) })
}

func TestCheckNoTables(t *testing.T) {
	db, err := QE.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE empty (x INTEGER)")
	require.NoError(t, err)
	cat := IS.NewCatalog(db, QP.SQLite, 1)
	require.NoError(t, cat.Load(context.Background()))

	exec := &scriptedExec{}
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    exec,
		Errors:  sqliteRegistry(t),
		Dialect: QP.SQLite,
	}, DefaultConfig())

	_, err = o.Check(context.Background(), util.NewLCG(7))
	assert.ErrorIs(t, err, sferrors.ErrNoTables)
	assert.Empty(t, exec.queries)
}

func TestCheckCanceled(t *testing.T) {
	_, cat := openT(t)
	ctx, cancel := context.WithCancel(context.Background())
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    &scriptedExec{errs: []error{errors.New("interrupted")}},
		Errors:  sqliteRegistry(t),
		Dialect: onlyAggregate(QP.AggSum),
	}, noOptionalClauses())

	res, err := o.Check(ctx, util.NewLCG(8))
	require.NoError(t, err)
	assert.Equal(t, Inconclusive, res.Outcome)

	cancel()
	_, err = o.Check(ctx, util.NewLCG(8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrawUsesDialectAggregates(t *testing.T) {
	_, cat := openT(t)
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    &scriptedExec{},
		Dialect: QP.Postgres,
	}, DefaultConfig())
	tables := IS.TableSet{Tables: []IS.Table{{Name: "t", Columns: []IS.Column{{Table: "t", Name: "x"}}}}}

	rnd := util.NewLCG(9)
	seen := map[QP.AggFunc]bool{}
	for i := 0; i < 200; i++ {
		plan := o.Draw(rnd, tables)
		seen[plan.Aggregate.Func] = true
		assert.False(t, plan.From[0].NotIndexed)
	}
	assert.Len(t, seen, 3)
	assert.False(t, seen[QP.AggTotal])
}

func TestDrawProbabilities(t *testing.T) {
	_, cat := openT(t)
	o := New(Deps{
		Schema:  cat,
		Exprs:   fixed(tx, xGtOne),
		Exec:    &scriptedExec{},
		Dialect: QP.SQLite,
	}, DefaultConfig())
	tables := IS.TableSet{Tables: []IS.Table{{Name: "t", Columns: []IS.Column{{Table: "t", Name: "x"}}}}}

	rnd := util.NewLCG(10)
	const n = 2000
	groupBy, orderBy := 0, 0
	for i := 0; i < n; i++ {
		plan := o.Draw(rnd, tables)
		for _, leg := range plan.Legs {
			if len(leg.GroupBy) > 0 {
				groupBy++
			}
		}
		if len(plan.DirectOrder) > 0 {
			orderBy++
		}
	}
	assert.InDelta(t, DefaultProbGroupBy, float64(groupBy)/(3*n), 0.03)
	assert.InDelta(t, DefaultProbOrderBy, float64(orderBy)/n, 0.05)
}
