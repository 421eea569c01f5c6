package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure raised while running an oracle check.
type Kind int

const (
	KindOK Kind = iota
	// KindPrecondition: the schema could not satisfy the check's inputs.
	KindPrecondition
	// KindExpected: the engine rejected the query with a known, benign error.
	KindExpected
	// KindExecution: the engine failed in a way nobody anticipated.
	KindExecution
	// KindBug: both queries ran and their results disagree.
	KindBug
)

var kindNames = []string{"OK", "PRECONDITION", "EXPECTED", "EXECUTION", "BUG"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrNoTables is returned when the schema holds no populated table.
var ErrNoTables = errors.New("no non-empty tables available")

// ExpectedError wraps an engine error that matched a known signature.
type ExpectedError struct {
	Query     string
	Signature string
	Err       error
}

func (e *ExpectedError) Error() string {
	return fmt.Sprintf("expected engine error (%s): %v", e.Signature, e.Err)
}

func (e *ExpectedError) Unwrap() error { return e.Err }

// ExecError wraps an engine error that matched no known signature.
type ExecError struct {
	Query string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("unexpected engine error: %v\n  query: %s", e.Err, e.Query)
}

func (e *ExecError) Unwrap() error { return e.Err }

// BugError reports a result discrepancy between two equivalent queries.
type BugError struct {
	Reason            string
	Direct            string
	Partitioned       string
	DirectResult      string
	PartitionedResult string
}

func (e *BugError) Error() string {
	return fmt.Sprintf("%s\n  direct:      %s\n  partitioned: %s\n  results:     %s vs %s",
		e.Reason, e.Direct, e.Partitioned, e.DirectResult, e.PartitionedResult)
}

// KindOf returns the classification of err, or KindOK if nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var (
		expected *ExpectedError
		bug      *BugError
	)
	switch {
	case errors.Is(err, ErrNoTables):
		return KindPrecondition
	case errors.As(err, &expected):
		return KindExpected
	case errors.As(err, &bug):
		return KindBug
	default:
		return KindExecution
	}
}
