package IS

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cyw0ng95/aggoracle/internal/QP"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/ExprGen"
)

// Execer runs statements that return no rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PopulateOptions controls the random schema Populate creates.
type PopulateOptions struct {
	Tables     int
	MinColumns int
	MaxColumns int
	MinRows    int
	MaxRows    int
	// NullProb is the chance a single cell is NULL.
	NullProb float64
	// Affinities lists the column types to draw from. Empty means INTEGER.
	Affinities []QP.Affinity
}

// DefaultPopulateOptions returns a small integer-only schema.
func DefaultPopulateOptions() PopulateOptions {
	return PopulateOptions{
		Tables:     2,
		MinColumns: 1,
		MaxColumns: 3,
		MinRows:    0,
		MaxRows:    8,
		NullProb:   0.2,
		Affinities: []QP.Affinity{QP.AffinityInteger},
	}
}

// Populate drops and recreates tables t0..tN-1 with random columns and rows.
// Row counts may be zero, so some tables can end up empty.
func Populate(ctx context.Context, db Execer, dialect QP.Dialect, rnd *util.LCG, opts PopulateOptions) ([]Table, error) {
	affinities := opts.Affinities
	if len(affinities) == 0 {
		affinities = []QP.Affinity{QP.AffinityInteger}
	}

	tables := make([]Table, 0, opts.Tables)
	for i := 0; i < opts.Tables; i++ {
		t := Table{Name: fmt.Sprintf("t%d", i)}
		ncols := max(1, rnd.Between(opts.MinColumns, opts.MaxColumns))
		for j := 0; j < ncols; j++ {
			t.Columns = append(t.Columns, Column{
				Table:    t.Name,
				Name:     fmt.Sprintf("c%d", j),
				Affinity: affinities[rnd.Intn(len(affinities))],
			})
		}

		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+QP.Ident(t.Name)); err != nil {
			return nil, fmt.Errorf("drop %s: %w", t.Name, err)
		}
		if _, err := db.ExecContext(ctx, createTableSQL(dialect, t)); err != nil {
			return nil, fmt.Errorf("create %s: %w", t.Name, err)
		}

		rows := rnd.Between(opts.MinRows, opts.MaxRows)
		for r := 0; r < rows; r++ {
			if _, err := db.ExecContext(ctx, insertSQL(t, rnd, opts.NullProb)); err != nil {
				return nil, fmt.Errorf("insert into %s: %w", t.Name, err)
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func createTableSQL(dialect QP.Dialect, t Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = QP.Ident(c.Name) + " " + dialect.TypeName(c.Affinity)
	}
	return "CREATE TABLE " + QP.Ident(t.Name) + " (" + strings.Join(defs, ", ") + ")"
}

func insertSQL(t Table, rnd *util.LCG, nullProb float64) string {
	values := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if rnd.BoolWithProb(nullProb) {
			values[i] = "NULL"
			continue
		}
		values[i] = ExprGen.RandomValue(rnd, c.Affinity).SQL()
	}
	return "INSERT INTO " + QP.Ident(t.Name) + " VALUES (" + strings.Join(values, ", ") + ")"
}
