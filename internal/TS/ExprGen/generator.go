package ExprGen

import (
	"github.com/cyw0ng95/aggoracle/internal/QP"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
)

// Options bounds the shape of generated expressions.
type Options struct {
	// MaxDepth is the deepest level at which a compound node may appear;
	// nodes below it are leaves.
	MaxDepth int
	// ProbLeaf stops descending early.
	ProbLeaf float64
	// ProbColumn picks a column rather than a literal for a leaf.
	ProbColumn float64
	// ProbNull makes a literal leaf NULL.
	ProbNull float64
	// ProbDesc makes an ordering term descending.
	ProbDesc float64
}

// DefaultOptions keeps integer arithmetic well inside int64 for the value
// ranges RandomValue produces.
func DefaultOptions() Options {
	return Options{
		MaxDepth:   2,
		ProbLeaf:   0.4,
		ProbColumn: 0.7,
		ProbNull:   0.1,
		ProbDesc:   0.5,
	}
}

var (
	arithmeticOps = []QP.BinaryOp{QP.OpAdd, QP.OpSub, QP.OpMul, QP.OpDiv, QP.OpMod}
	comparisonOps = []QP.BinaryOp{QP.OpEq, QP.OpNe, QP.OpLt, QP.OpLe, QP.OpGt, QP.OpGe}
	distinctOps   = []QP.BinaryOp{QP.OpIs, QP.OpIsNot}
	signOps       = []QP.UnaryOp{QP.OpMinus, QP.OpPlus}
)

// Generator produces random expressions over a fixed column list. It draws
// all randomness from the LCG it was built with.
type Generator struct {
	rnd        *util.LCG
	columns    []*QP.ColumnRef
	affinities []QP.Affinity
	opts       Options
}

// New creates a Generator over columns.
func New(rnd *util.LCG, columns []*QP.ColumnRef, opts Options) *Generator {
	util.AssertNotNil(rnd, "rnd")
	util.Assert(opts.MaxDepth >= 0, "MaxDepth %d must not be negative", opts.MaxDepth)
	g := &Generator{rnd: rnd, columns: columns, opts: opts}
	seen := make(map[QP.Affinity]bool)
	for _, c := range columns {
		a := literalAffinity(c.Affinity)
		if !seen[a] {
			seen[a] = true
			g.affinities = append(g.affinities, a)
		}
	}
	if len(g.affinities) == 0 {
		g.affinities = []QP.Affinity{QP.AffinityInteger}
	}
	return g
}

// literalAffinity picks the literal kind that compares naturally with a
// column of affinity a.
func literalAffinity(a QP.Affinity) QP.Affinity {
	switch a {
	case QP.AffinityInteger, QP.AffinityReal, QP.AffinityText, QP.AffinityBlob:
		return a
	default:
		return QP.AffinityReal
	}
}

// RandomExpression returns an arbitrary scalar expression.
func (g *Generator) RandomExpression() QP.Expr {
	return g.expr(0)
}

// RandomColumnExpressions returns n independent scalar expressions.
func (g *Generator) RandomColumnExpressions(n int) []QP.Expr {
	out := make([]QP.Expr, n)
	for i := range out {
		out[i] = g.expr(0)
	}
	return out
}

// RandomBooleanExpression returns an expression meant to be used as a
// predicate. It may evaluate to NULL.
func (g *Generator) RandomBooleanExpression() QP.Expr {
	return g.predicate(0)
}

// RandomOrderingTerms returns one or more ORDER BY terms.
func (g *Generator) RandomOrderingTerms() []QP.OrderTerm {
	terms := make([]QP.OrderTerm, g.rnd.SmallNumber()+1)
	for i := range terms {
		terms[i] = QP.OrderTerm{Expr: g.expr(0), Desc: g.rnd.BoolWithProb(g.opts.ProbDesc)}
	}
	return terms
}

func (g *Generator) expr(depth int) QP.Expr {
	if depth >= g.opts.MaxDepth || g.rnd.BoolWithProb(g.opts.ProbLeaf) {
		return g.leaf()
	}
	switch g.rnd.Intn(5) {
	case 0:
		return &QP.UnaryExpr{Op: signOps[g.rnd.Intn(len(signOps))], Expr: g.expr(depth + 1)}
	case 1:
		return &QP.BinaryExpr{
			Op:    arithmeticOps[g.rnd.Intn(len(arithmeticOps))],
			Left:  g.expr(depth + 1),
			Right: g.expr(depth + 1),
		}
	case 2:
		return g.function(depth)
	case 3:
		return g.predicate(depth)
	default:
		return g.leaf()
	}
}

func (g *Generator) function(depth int) QP.Expr {
	switch g.rnd.Intn(3) {
	case 0:
		return &QP.FuncCall{Name: "ABS", Args: []QP.Expr{g.expr(depth + 1)}}
	case 1:
		return &QP.FuncCall{Name: "COALESCE", Args: []QP.Expr{g.expr(depth + 1), g.expr(depth + 1)}}
	default:
		return &QP.FuncCall{Name: "NULLIF", Args: []QP.Expr{g.expr(depth + 1), g.expr(depth + 1)}}
	}
}

func (g *Generator) predicate(depth int) QP.Expr {
	if depth >= g.opts.MaxDepth {
		if g.rnd.Bool() {
			return &QP.PostfixExpr{Op: QP.OpIsNull, Expr: g.leaf()}
		}
		return g.comparison(g.leaf(), g.leaf())
	}
	switch g.rnd.Intn(7) {
	case 0, 1:
		return g.comparison(g.expr(depth+1), g.expr(depth+1))
	case 2:
		op := QP.OpAnd
		if g.rnd.Bool() {
			op = QP.OpOr
		}
		return &QP.BinaryExpr{Op: op, Left: g.predicate(depth + 1), Right: g.predicate(depth + 1)}
	case 3:
		return &QP.UnaryExpr{Op: QP.OpNot, Expr: g.predicate(depth + 1)}
	case 4:
		op := QP.OpIsNull
		if g.rnd.Bool() {
			op = QP.OpIsNotNull
		}
		return &QP.PostfixExpr{Op: op, Expr: g.expr(depth + 1)}
	case 5:
		return &QP.BinaryExpr{
			Op:    distinctOps[g.rnd.Intn(len(distinctOps))],
			Left:  g.expr(depth + 1),
			Right: g.expr(depth + 1),
		}
	default:
		// Any scalar is a legal predicate on engines with loose typing.
		return g.expr(depth + 1)
	}
}

func (g *Generator) comparison(left, right QP.Expr) QP.Expr {
	return &QP.BinaryExpr{Op: comparisonOps[g.rnd.Intn(len(comparisonOps))], Left: left, Right: right}
}

func (g *Generator) leaf() QP.Expr {
	if len(g.columns) > 0 && g.rnd.BoolWithProb(g.opts.ProbColumn) {
		c := *g.columns[g.rnd.Intn(len(g.columns))]
		return &c
	}
	if g.rnd.BoolWithProb(g.opts.ProbNull) {
		return &QP.Literal{Value: nil}
	}
	return RandomValue(g.rnd, g.affinities[g.rnd.Intn(len(g.affinities))])
}
