package IS

import (
	"context"
	"fmt"
	"sync"

	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
)

// Column describes one column of a base table.
type Column struct {
	Table    string
	Name     string
	Affinity QP.Affinity
}

// Ref returns a qualified column reference.
func (c Column) Ref() *QP.ColumnRef {
	return &QP.ColumnRef{Table: c.Table, Name: c.Name, Affinity: c.Affinity}
}

// Table describes a base table and its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// TableSet is the ordered, non-empty set of tables one check runs against.
type TableSet struct {
	Tables []Table
}

// Names returns the table names in order.
func (ts TableSet) Names() []string {
	names := make([]string, len(ts.Tables))
	for i, t := range ts.Tables {
		names[i] = t.Name
	}
	return names
}

// Columns returns references to every column of every table, in order.
func (ts TableSet) Columns() []*QP.ColumnRef {
	var refs []*QP.ColumnRef
	for _, t := range ts.Tables {
		for _, c := range t.Columns {
			refs = append(refs, c.Ref())
		}
	}
	return refs
}

// Catalog discovers tables and columns of a live database. The table list is
// loaded once; row presence is checked on every pick.
type Catalog struct {
	db        QE.Querier
	dialect   QP.Dialect
	maxTables int

	mu     sync.RWMutex
	tables []Table
}

// NewCatalog creates a catalog over db. maxTables caps the size of picked
// table sets (cross joins grow fast); values below 1 mean 1.
func NewCatalog(db QE.Querier, dialect QP.Dialect, maxTables int) *Catalog {
	if maxTables < 1 {
		maxTables = 1
	}
	return &Catalog{db: db, dialect: dialect, maxTables: maxTables}
}

// Load (re)reads the table list and the column lists.
func (c *Catalog) Load(ctx context.Context) error {
	names, err := c.queryStrings(ctx, c.tablesQuery())
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := c.loadColumns(ctx, name)
		if err != nil {
			return fmt.Errorf("list columns of %s: %w", name, err)
		}
		if len(cols) == 0 {
			continue
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}

	c.mu.Lock()
	c.tables = tables
	c.mu.Unlock()
	return nil
}

// Tables returns the loaded tables.
func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Table(nil), c.tables...)
}

// PickNonEmptyTables returns a random, non-empty subset of the tables that
// currently hold at least one row, in catalog order. It fails with
// ErrNoTables when no table has rows.
func (c *Catalog) PickNonEmptyTables(ctx context.Context, rnd *util.LCG) (TableSet, error) {
	var populated []Table
	for _, t := range c.Tables() {
		ok, err := c.hasRows(ctx, t.Name)
		if err != nil {
			return TableSet{}, fmt.Errorf("count rows of %s: %w", t.Name, err)
		}
		if ok {
			populated = append(populated, t)
		}
	}
	if len(populated) == 0 {
		return TableSet{}, fmt.Errorf("%w (%d tables in schema)", sferrors.ErrNoTables, len(c.Tables()))
	}

	var picked []Table
	for _, t := range populated {
		if len(picked) < c.maxTables && rnd.Bool() {
			picked = append(picked, t)
		}
	}
	if len(picked) == 0 {
		picked = append(picked, populated[rnd.Intn(len(populated))])
	}
	return TableSet{Tables: picked}, nil
}

func (c *Catalog) hasRows(ctx context.Context, table string) (bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT 1 FROM "+QP.Ident(table)+" LIMIT 1")
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (c *Catalog) tablesQuery() string {
	if c.dialect.Name == QP.Postgres.Name {
		return "SELECT table_name FROM information_schema.tables " +
			"WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name"
	}
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (c *Catalog) columnsQuery() string {
	if c.dialect.Name == QP.Postgres.Name {
		return "SELECT column_name, data_type FROM information_schema.columns " +
			"WHERE table_schema = current_schema() AND table_name = " + c.dialect.Param(1) +
			" ORDER BY ordinal_position"
	}
	return "SELECT name, type FROM pragma_table_info(" + c.dialect.Param(1) + ") ORDER BY cid"
}

func (c *Catalog) loadColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, c.columnsQuery(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, err
		}
		cols = append(cols, Column{Table: table, Name: name, Affinity: QP.AffinityOf(declared)})
	}
	return cols, rows.Err()
}

func (c *Catalog) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
