package AggOracle

import (
	"fmt"
	"strings"

	"github.com/cyw0ng95/aggoracle/internal/QE"
	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
)

// Outcome is the verdict of one check.
type Outcome int

const (
	Pass Outcome = iota
	Bug
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Bug:
		return "bug"
	case Inconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Evidence is what a check ran and observed. It is enough to replay the
// check without the random generator.
type Evidence struct {
	Aggregate         string
	Predicate         string
	Tables            []string
	Direct            string
	Partitioned       string
	DirectResult      QE.Scalar
	PartitionedResult QE.Scalar
	// Signature is the expected-error signature that made the check
	// inconclusive.
	Signature string
}

// Script renders the evidence as a SQL comment block.
func (e Evidence) Script() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- %s;\n", e.Direct)
	fmt.Fprintf(&sb, "-- %s;\n", e.Partitioned)
	fmt.Fprintf(&sb, "-- %s\n", e.DirectResult)
	fmt.Fprintf(&sb, "-- %s\n", e.PartitionedResult)
	return sb.String()
}

// Result is the outcome of one check. Reason is set for Bug and
// Inconclusive.
type Result struct {
	Outcome  Outcome
	Reason   string
	Evidence Evidence
}

// Err returns a *errors.BugError for a Bug and nil otherwise.
func (r Result) Err() error {
	if r.Outcome != Bug {
		return nil
	}
	return &sferrors.BugError{
		Reason:            r.Reason,
		Direct:            r.Evidence.Direct,
		Partitioned:       r.Evidence.Partitioned,
		DirectResult:      r.Evidence.DirectResult.String(),
		PartitionedResult: r.Evidence.PartitionedResult.String(),
	}
}
