package QE

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Scalar is the printable form of one result cell. The zero value is Absent:
// the query returned no row, or the cell was SQL NULL.
type Scalar struct {
	Value   string
	Present bool
}

// Absent is the "no value" marker.
var Absent = Scalar{}

// Present wraps a non-NULL cell value.
func Present(v string) Scalar {
	return Scalar{Value: v, Present: true}
}

func (s Scalar) String() string {
	if !s.Present {
		return "NULL"
	}
	return s.Value
}

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the executor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Observer is notified after every query, successful or not.
type Observer func(query string, elapsed time.Duration, err error)

// Executor runs query text against a live connection and extracts results.
type Executor struct {
	db      Querier
	observe Observer
	timeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver installs a per-query callback (metrics, tracing).
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observe = o }
}

// WithTimeout bounds every query by d. The deadline applies to the query
// alone; the caller's context is not affected when it fires.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor wraps db.
func NewExecutor(db Querier, opts ...Option) *Executor {
	e := &Executor{db: db}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// QueryScalar runs query and returns column 1 of row 1, or Absent when the
// result has no rows. The result set is closed on every path.
func (e *Executor) QueryScalar(ctx context.Context, query string) (s Scalar, err error) {
	if e.observe != nil {
		start := time.Now()
		defer func() { e.observe(query, time.Since(start), err) }()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return Absent, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Absent, err
	}
	if len(cols) == 0 {
		return Absent, fmt.Errorf("query returned no columns")
	}

	if !rows.Next() {
		return Absent, rows.Err()
	}
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range ptrs {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Absent, err
	}
	// Drain so that errors raised after the first row (e.g. an overflow in a
	// later group) are not lost.
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return Absent, err
	}
	return FormatValue(vals[0]), nil
}

// FormatValue converts a database/sql scan result to its printable form.
func FormatValue(v interface{}) Scalar {
	switch x := v.(type) {
	case nil:
		return Absent
	case int64:
		return Present(strconv.FormatInt(x, 10))
	case int:
		return Present(strconv.Itoa(x))
	case int32:
		return Present(strconv.FormatInt(int64(x), 10))
	case float64:
		return Present(strconv.FormatFloat(x, 'g', -1, 64))
	case float32:
		return Present(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case string:
		return Present(x)
	case []byte:
		return Present(string(x))
	case bool:
		if x {
			return Present("1")
		}
		return Present("0")
	case time.Time:
		return Present(x.Format(time.RFC3339Nano))
	default:
		return Present(fmt.Sprintf("%v", x))
	}
}
