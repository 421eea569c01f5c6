package AggOracle

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cyw0ng95/aggoracle/internal/QE"
)

// Tolerance bounds the numeric difference accepted between two results that
// are not textually identical. Two numbers a and b are equal when
//
//	|a-b| <= max(Abs, Rel*max(|a|, |b|))
type Tolerance struct {
	Abs float64
	Rel float64
}

// DefaultTolerance absorbs summation-order rounding of float64 aggregates.
var DefaultTolerance = Tolerance{Abs: 1e-9, Rel: 1e-9}

// Equal compares two scalar results:
//  1. Both absent → equal.
//  2. One absent → not equal.
//  3. Identical text → equal.
//  4. Both are integers → equal only when numerically identical. Integer
//     aggregates are exact at any magnitude.
//  5. Both parse as numbers → equal within tolerance. NaN equals NaN and an
//     infinity equals only the same infinity.
//
// Equal is symmetric.
func (t Tolerance) Equal(a, b QE.Scalar) bool {
	if !a.Present || !b.Present {
		return a.Present == b.Present
	}
	if a.Value == b.Value {
		return true
	}
	if ai, bi, ok := parseIntegers(a.Value, b.Value); ok {
		return ai.Equal(bi)
	}
	af, aok := parseNumber(a.Value)
	bf, bok := parseNumber(b.Value)
	if !aok || !bok {
		return false
	}
	switch {
	case math.IsNaN(af) || math.IsNaN(bf):
		return math.IsNaN(af) && math.IsNaN(bf)
	case math.IsInf(af, 0) || math.IsInf(bf, 0):
		return af == bf
	}
	diff := math.Abs(af - bf)
	return diff <= math.Max(t.Abs, t.Rel*math.Max(math.Abs(af), math.Abs(bf)))
}

// Equal compares with DefaultTolerance.
func Equal(a, b QE.Scalar) bool {
	return DefaultTolerance.Equal(a, b)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// ParseFloat reports out-of-range values as ±Inf with an error.
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// parseIntegers parses both texts as exact integers. It fails unless both are
// plain digit strings with an optional sign.
func parseIntegers(a, b string) (decimal.Decimal, decimal.Decimal, bool) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !isIntegerText(a) || !isIntegerText(b) {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	ad, err := decimal.NewFromString(a)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	bd, err := decimal.NewFromString(b)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return ad, bd, true
}

func isIntegerText(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
