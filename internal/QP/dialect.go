package QP

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the surface differences between target engines that the
// query builders and the schema catalog need to know about.
type Dialect struct {
	Name string
	// Aggregates lists the accumulators the engine implements.
	Aggregates []AggFunc
	// DerivedTableAlias is set when a subquery in FROM must be named.
	DerivedTableAlias bool
	// NotIndexed is set when table references accept the NOT INDEXED hint.
	NotIndexed bool
	// NumberedParams selects $1-style placeholders instead of ?.
	NumberedParams bool
	types          map[Affinity]string
}

var SQLite = Dialect{
	Name:       "sqlite",
	Aggregates: []AggFunc{AggMin, AggMax, AggSum, AggTotal},
	NotIndexed: true,
	types: map[Affinity]string{
		AffinityInteger: "INTEGER",
		AffinityReal:    "REAL",
		AffinityText:    "TEXT",
		AffinityBlob:    "BLOB",
		AffinityNumeric: "NUMERIC",
	},
}

var Postgres = Dialect{
	Name:              "postgres",
	Aggregates:        []AggFunc{AggMin, AggMax, AggSum},
	DerivedTableAlias: true,
	NumberedParams:    true,
	types: map[Affinity]string{
		AffinityInteger: "BIGINT",
		AffinityReal:    "DOUBLE PRECISION",
		AffinityText:    "TEXT",
		AffinityBlob:    "BYTEA",
		AffinityNumeric: "NUMERIC",
	},
}

var dialects = map[string]Dialect{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgx":        Postgres,
}

// DialectByName resolves a dialect or driver name.
func DialectByName(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown dialect %q (expected sqlite or postgres)", name)
	}
	return d, nil
}

// Supports reports whether f is implemented by the dialect.
func (d Dialect) Supports(f AggFunc) bool {
	for _, a := range d.Aggregates {
		if a == f {
			return true
		}
	}
	return false
}

// TypeName returns the column type used in CREATE TABLE for an affinity.
func (d Dialect) TypeName(a Affinity) string {
	if t, ok := d.types[a]; ok {
		return t
	}
	return string(a)
}

// Param returns the placeholder for the n-th (1-based) bind parameter.
func (d Dialect) Param(n int) string {
	if d.NumberedParams {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// AffinityOf maps a declared column type to an affinity. It follows the
// SQLite rules, which also classify the common Postgres type names.
func AffinityOf(declared string) Affinity {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case t == "", strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}
