package AggOracle

import (
	"fmt"
	"strings"

	"github.com/cyw0ng95/aggoracle/internal/QP"
)

// AggrColumn names the partial aggregate each leg projects.
const AggrColumn = "aggr"

// LegOptions are the optional clauses of one partition leg.
type LegOptions struct {
	GroupBy []QP.Expr
	OrderBy []QP.OrderTerm
}

// Plan is everything drawn at random for one check. Rendering a Plan is
// deterministic.
type Plan struct {
	From        []QP.TableRef
	Aggregate   *QP.Aggregate
	Predicate   QP.Expr
	DirectOrder []QP.OrderTerm
	Legs        [3]LegOptions
}

// Synthesizer renders the direct and partitioned queries for a dialect.
type Synthesizer struct {
	dialect QP.Dialect
}

// NewSynthesizer creates a Synthesizer for dialect.
func NewSynthesizer(dialect QP.Dialect) Synthesizer {
	return Synthesizer{dialect: dialect}
}

// BuildDirect renders SELECT <agg> FROM <tables> [ORDER BY ...].
func (s Synthesizer) BuildDirect(from []QP.TableRef, agg *QP.Aggregate, orderBy []QP.OrderTerm) string {
	return QP.NewSelect(
		[]QP.SelectItem{{Expr: agg}},
		from,
		QP.OrderBy(orderBy...),
	).SQL()
}

// BuildPartitionLeg renders
// SELECT <agg> AS aggr FROM <tables> WHERE <where> [GROUP BY ...] [ORDER BY ...].
func (s Synthesizer) BuildPartitionLeg(from []QP.TableRef, agg *QP.Aggregate, where QP.Expr, leg LegOptions) string {
	return QP.NewSelect(
		[]QP.SelectItem{{Expr: agg, Alias: AggrColumn}},
		from,
		QP.Where(where),
		QP.GroupBy(leg.GroupBy...),
		QP.OrderBy(leg.OrderBy...),
	).SQL()
}

// BuildPartitioned renders
// SELECT <f>(aggr) FROM (<leg P> UNION ALL <leg NOT P> UNION ALL <leg P IS NULL>).
//
// A leg that carries an ORDER BY is wrapped as SELECT aggr FROM (<leg>):
// neither SQLite nor Postgres accept ORDER BY on a bare compound member.
func (s Synthesizer) BuildPartitioned(from []QP.TableRef, agg *QP.Aggregate, pred QP.Expr, legs [3]LegOptions) string {
	parts := make([]string, 0, 3)
	for i, where := range Split(pred).All() {
		leg := s.BuildPartitionLeg(from, agg, where, legs[i])
		if len(legs[i].OrderBy) > 0 {
			leg = "SELECT " + AggrColumn + " FROM (" + leg + ")" + s.alias(fmt.Sprintf("leg%d", i))
		}
		parts = append(parts, leg)
	}
	return "SELECT " + agg.Over(AggrColumn).SQL() +
		" FROM (" + strings.Join(parts, " UNION ALL ") + ")" + s.alias("partitioned")
}

// Render returns the direct and partitioned query text of p.
func (s Synthesizer) Render(p Plan) (direct, partitioned string) {
	return s.BuildDirect(p.From, p.Aggregate, p.DirectOrder),
		s.BuildPartitioned(p.From, p.Aggregate, p.Predicate, p.Legs)
}

func (s Synthesizer) alias(name string) string {
	if !s.dialect.DerivedTableAlias {
		return ""
	}
	return " AS " + name
}
