package QP

import (
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Expr is a node of the expression tree. The set of node kinds is closed:
// every implementation lives in this file and renders itself to SQL text.
//
// Compound nodes always parenthesise themselves, so rendering never depends
// on operator precedence of the target engine.
type Expr interface {
	SQL() string
	exprNode()
}

// Affinity is the storage class a column (or literal) is expected to hold.
type Affinity string

const (
	AffinityInteger Affinity = "INTEGER"
	AffinityReal    Affinity = "REAL"
	AffinityText    Affinity = "TEXT"
	AffinityBlob    Affinity = "BLOB"
	AffinityNumeric Affinity = "NUMERIC"
)

// ColumnRef references a column of a FROM-clause table, always qualified.
type ColumnRef struct {
	Table    string
	Name     string
	Affinity Affinity
}

func (e *ColumnRef) exprNode() {}

func (e *ColumnRef) SQL() string {
	if e.Table == "" {
		return Ident(e.Name)
	}
	return Ident(e.Table) + "." + Ident(e.Name)
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident quotes name unless it is a plain identifier.
func Ident(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal is a constant. Value is one of nil, int64, float64, string,
// []byte or bool.
type Literal struct {
	Value interface{}
}

func (e *Literal) exprNode() {}

func (e *Literal) SQL() string {
	switch v := e.Value.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatRealLiteral(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return "NULL"
	}
}

// formatRealLiteral renders f so that engines parse it back as a real value.
func formatRealLiteral(f float64) string {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return "NULL"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// UnaryOp is a prefix operator.
type UnaryOp string

const (
	OpNot   UnaryOp = "NOT"
	OpMinus UnaryOp = "-"
	OpPlus  UnaryOp = "+"
)

// UnaryExpr applies a prefix operator.
type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

func (e *UnaryExpr) exprNode() {}

func (e *UnaryExpr) SQL() string {
	// The space after the operator keeps "- -1" from becoming a comment.
	return "(" + string(e.Op) + " " + e.Expr.SQL() + ")"
}

// PostfixOp is a postfix operator.
type PostfixOp string

const (
	OpIsNull    PostfixOp = "IS NULL"
	OpIsNotNull PostfixOp = "IS NOT NULL"
)

// PostfixExpr applies a postfix operator.
type PostfixExpr struct {
	Op   PostfixOp
	Expr Expr
}

func (e *PostfixExpr) exprNode() {}

func (e *PostfixExpr) SQL() string {
	return "(" + e.Expr.SQL() + " " + string(e.Op) + ")"
}

// BinaryOp is an infix operator.
type BinaryOp string

const (
	OpAdd   BinaryOp = "+"
	OpSub   BinaryOp = "-"
	OpMul   BinaryOp = "*"
	OpDiv   BinaryOp = "/"
	OpMod   BinaryOp = "%"
	OpEq    BinaryOp = "="
	OpNe    BinaryOp = "<>"
	OpLt    BinaryOp = "<"
	OpLe    BinaryOp = "<="
	OpGt    BinaryOp = ">"
	OpGe    BinaryOp = ">="
	OpAnd   BinaryOp = "AND"
	OpOr    BinaryOp = "OR"
	OpIs    BinaryOp = "IS NOT DISTINCT FROM"
	OpIsNot BinaryOp = "IS DISTINCT FROM"
)

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) exprNode() {}

func (e *BinaryExpr) SQL() string {
	return "(" + e.Left.SQL() + " " + string(e.Op) + " " + e.Right.SQL() + ")"
}

// FuncCall is a scalar function call.
type FuncCall struct {
	Name string
	Args []Expr
}

func (e *FuncCall) exprNode() {}

func (e *FuncCall) SQL() string {
	return e.Name + "(" + joinExprs(e.Args) + ")"
}

// RawText is emitted verbatim. It exists for collaborator-supplied syntax the
// model does not cover.
type RawText struct {
	Text string
}

func (e *RawText) exprNode() {}

func (e *RawText) SQL() string { return e.Text }

// AggFunc names an aggregate function.
type AggFunc string

const (
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
	AggSum   AggFunc = "SUM"
	AggTotal AggFunc = "TOTAL"
)

// Aggregate is an aggregate function applied to its arguments.
type Aggregate struct {
	Func AggFunc
	Args []Expr
}

func (e *Aggregate) exprNode() {}

func (e *Aggregate) SQL() string {
	return string(e.Func) + "(" + joinExprs(e.Args) + ")"
}

// Over returns the same aggregate function applied to a single column name,
// as used by the outer query that re-aggregates partial results.
func (e *Aggregate) Over(column string) *Aggregate {
	return &Aggregate{Func: e.Func, Args: []Expr{&ColumnRef{Name: column}}}
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = x.SQL()
	}
	return strings.Join(parts, ", ")
}
