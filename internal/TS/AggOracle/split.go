package AggOracle

import "github.com/cyw0ng95/aggoracle/internal/QP"

// Partitions are the three conditions derived from a predicate P. Under SQL
// three-valued logic exactly one of them is TRUE for every row.
type Partitions struct {
	True  QP.Expr // P
	False QP.Expr // NOT P
	Null  QP.Expr // P IS NULL
}

// All returns the partitions in leg order.
func (p Partitions) All() [3]QP.Expr {
	return [3]QP.Expr{p.True, p.False, p.Null}
}

// Split derives the partitions of p. It only wraps p in new nodes; p itself
// is shared, not copied or modified.
func Split(p QP.Expr) Partitions {
	return Partitions{
		True:  p,
		False: &QP.UnaryExpr{Op: QP.OpNot, Expr: p},
		Null:  &QP.PostfixExpr{Op: QP.OpIsNull, Expr: p},
	}
}
