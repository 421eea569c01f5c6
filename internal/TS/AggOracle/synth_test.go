package AggOracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xwb1989/sqlparser"

	"github.com/cyw0ng95/aggoracle/internal/QP"
)

var (
	colX = &QP.ColumnRef{Table: "t", Name: "x", Affinity: QP.AffinityInteger}
	colY = &QP.ColumnRef{Table: "u", Name: "y", Affinity: QP.AffinityInteger}
	one  = &QP.Literal{Value: int64(1)}
)

func samplePlan() Plan {
	p := Plan{
		From:        []QP.TableRef{{Name: "t"}, {Name: "u"}},
		Aggregate:   &QP.Aggregate{Func: QP.AggSum, Args: []QP.Expr{colX}},
		Predicate:   &QP.BinaryExpr{Op: QP.OpGt, Left: colX, Right: one},
		DirectOrder: []QP.OrderTerm{{Expr: colY, Desc: true}},
	}
	p.Legs[1].GroupBy = []QP.Expr{colY}
	p.Legs[2].OrderBy = []QP.OrderTerm{{Expr: colX}}
	return p
}

func TestSplit(t *testing.T) {
	p := &QP.BinaryExpr{Op: QP.OpGt, Left: colX, Right: one}
	parts := Split(p)

	assert.Same(t, p, parts.True)
	assert.Equal(t, "(t.x > 1)", parts.True.SQL())
	assert.Equal(t, "(NOT (t.x > 1))", parts.False.SQL())
	assert.Equal(t, "((t.x > 1) IS NULL)", parts.Null.SQL())
	assert.Equal(t, [3]QP.Expr{parts.True, parts.False, parts.Null}, parts.All())

	// The input is untouched.
	assert.Equal(t, "(t.x > 1)", p.SQL())
}

func TestBuildDirect(t *testing.T) {
	s := NewSynthesizer(QP.SQLite)
	agg := &QP.Aggregate{Func: QP.AggMin, Args: []QP.Expr{colX}}

	assert.Equal(t, "SELECT MIN(t.x) FROM t", s.BuildDirect([]QP.TableRef{{Name: "t"}}, agg, nil))
	assert.Equal(t, "SELECT MIN(t.x) FROM t NOT INDEXED, u ORDER BY u.y DESC",
		s.BuildDirect([]QP.TableRef{{Name: "t", NotIndexed: true}, {Name: "u"}}, agg,
			[]QP.OrderTerm{{Expr: colY, Desc: true}}))
}

func TestBuildPartitionLeg(t *testing.T) {
	s := NewSynthesizer(QP.SQLite)
	agg := &QP.Aggregate{Func: QP.AggTotal, Args: []QP.Expr{colX}}
	where := &QP.PostfixExpr{Op: QP.OpIsNull, Expr: colY}

	assert.Equal(t,
		"SELECT TOTAL(t.x) AS aggr FROM t, u WHERE (u.y IS NULL) GROUP BY u.y ORDER BY t.x ASC",
		s.BuildPartitionLeg([]QP.TableRef{{Name: "t"}, {Name: "u"}}, agg, where, LegOptions{
			GroupBy: []QP.Expr{colY},
			OrderBy: []QP.OrderTerm{{Expr: colX}},
		}))
}

func TestBuildPartitionedSQLite(t *testing.T) {
	s := NewSynthesizer(QP.SQLite)
	p := samplePlan()
	got := s.BuildPartitioned(p.From, p.Aggregate, p.Predicate, p.Legs)

	want := "SELECT SUM(aggr) FROM (" +
		"SELECT SUM(t.x) AS aggr FROM t, u WHERE (t.x > 1)" +
		" UNION ALL " +
		"SELECT SUM(t.x) AS aggr FROM t, u WHERE (NOT (t.x > 1)) GROUP BY u.y" +
		" UNION ALL " +
		"SELECT aggr FROM (SELECT SUM(t.x) AS aggr FROM t, u WHERE ((t.x > 1) IS NULL) ORDER BY t.x ASC)" +
		")"
	assert.Equal(t, want, got)
}

func TestAggregateTextShared(t *testing.T) {
	s := NewSynthesizer(QP.SQLite)
	direct, partitioned := s.Render(samplePlan())

	agg := samplePlan().Aggregate.SQL()
	assert.Equal(t, 1, strings.Count(direct, agg))
	assert.Equal(t, 3, strings.Count(partitioned, agg+" AS aggr"))
	assert.Equal(t, 2, strings.Count(partitioned, "UNION ALL"))
	assert.True(t, strings.HasPrefix(partitioned, "SELECT SUM(aggr) FROM ("))
}

func TestRenderIdempotent(t *testing.T) {
	for _, d := range []QP.Dialect{QP.SQLite, QP.Postgres} {
		s := NewSynthesizer(d)
		p := samplePlan()
		d1, p1 := s.Render(p)
		d2, p2 := s.Render(p)
		assert.Equal(t, d1, d2)
		assert.Equal(t, p1, p2)
		// A synthesizer has no state of its own.
		d3, p3 := NewSynthesizer(d).Render(samplePlan())
		assert.Equal(t, d1, d3)
		assert.Equal(t, p1, p3)
	}
}

// The Postgres rendering names every derived table, which is also what the
// MySQL grammar of sqlparser requires, so the structure can be checked with a
// real parser.
func TestPartitionedStructure(t *testing.T) {
	s := NewSynthesizer(QP.Postgres)
	_, partitioned := s.Render(samplePlan())
	require.True(t, strings.HasSuffix(partitioned, ") AS partitioned"))

	stmt, err := sqlparser.Parse(partitioned)
	require.NoError(t, err, partitioned)

	outer, ok := stmt.(*sqlparser.Select)
	require.True(t, ok)
	require.Len(t, outer.SelectExprs, 1)
	assert.Equal(t, "sum(aggr)", strings.ToLower(sqlparser.String(outer.SelectExprs[0])))
	assert.Nil(t, outer.Where)

	require.Len(t, outer.From, 1)
	derived, ok := outer.From[0].(*sqlparser.AliasedTableExpr)
	require.True(t, ok)
	assert.Equal(t, "partitioned", derived.As.String())
	sub, ok := derived.Expr.(*sqlparser.Subquery)
	require.True(t, ok)

	legs := flattenUnion(t, sub.Select)
	require.Len(t, legs, 3)
	wheres := []string{"(t.x > 1)", "(not (t.x > 1))", "((t.x > 1) is null)"}
	for i, leg := range legs {
		if i == 2 {
			// Ordered legs are wrapped in a named derived table.
			require.Len(t, leg.From, 1)
			inner := leg.From[0].(*sqlparser.AliasedTableExpr)
			assert.Equal(t, "leg2", inner.As.String())
			leg = inner.Expr.(*sqlparser.Subquery).Select.(*sqlparser.Select)
			assert.Len(t, leg.OrderBy, 1)
		}
		require.NotNil(t, leg.Where, "leg %d", i)
		assert.Equal(t, wheres[i], strings.ToLower(sqlparser.String(leg.Where.Expr)), "leg %d", i)
		aliased := leg.SelectExprs[0].(*sqlparser.AliasedExpr)
		assert.Equal(t, "aggr", aliased.As.String())
		assert.Equal(t, "sum(t.x)", strings.ToLower(sqlparser.String(aliased.Expr)))
		assert.Len(t, leg.From, 2)
	}
	assert.Len(t, legs[1].GroupBy, 1)
}

func TestDirectStructure(t *testing.T) {
	direct, _ := NewSynthesizer(QP.Postgres).Render(samplePlan())
	stmt, err := sqlparser.Parse(direct)
	require.NoError(t, err, direct)
	sel := stmt.(*sqlparser.Select)
	assert.Nil(t, sel.Where)
	assert.Nil(t, sel.GroupBy)
	require.Len(t, sel.OrderBy, 1)
	assert.Equal(t, sqlparser.DescScr, sel.OrderBy[0].Direction)
}

func flattenUnion(t *testing.T, s sqlparser.SelectStatement) []*sqlparser.Select {
	t.Helper()
	switch n := s.(type) {
	case *sqlparser.Select:
		return []*sqlparser.Select{n}
	case *sqlparser.Union:
		assert.Equal(t, sqlparser.UnionAllStr, n.Type)
		return append(flattenUnion(t, n.Left), flattenUnion(t, n.Right)...)
	case *sqlparser.ParenSelect:
		return flattenUnion(t, n.Select)
	default:
		t.Fatalf("unexpected select statement %T", s)
		return nil
	}
}
