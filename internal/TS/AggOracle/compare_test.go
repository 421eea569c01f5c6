package AggOracle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyw0ng95/aggoracle/internal/QE"
)

func TestEqual(t *testing.T) {
	p := QE.Present
	tests := []struct {
		name string
		a, b QE.Scalar
		want bool
	}{
		{"both absent", QE.Absent, QE.Absent, true},
		{"absent vs present", QE.Absent, p("5"), false},
		{"absent vs empty string", QE.Absent, p(""), false},
		{"identical text", p("abc"), p("abc"), true},
		{"different text", p("abc"), p("abd"), false},
		{"within tolerance", p("1.0000000001"), p("1.0000000002"), true},
		{"far apart", p("1.0"), p("2.0"), false},
		{"int vs real", p("3"), p("3.0"), true},
		{"exponent form", p("6.4e+13"), p("64000000000000"), true},
		{"relative tolerance", p("123456789012.5"), p("123456789012.50003"), true},
		{"outside relative tolerance", p("1000000"), p("1000001"), false},
		{"number vs text", p("1"), p("one"), false},
		{"nan", p("NaN"), p("NaN"), true},
		{"nan vs number", p("NaN"), p("0"), false},
		{"same infinity", p("+Inf"), p("Inf"), true},
		{"opposite infinity", p("Inf"), p("-Inf"), false},
		{"overflowing literal", p("1e400"), p("+Inf"), true},
		{"zero signs", p("0.0"), p("-0.0"), true},
		{"integer zero signs", p("0"), p("-0"), true},
		{"large integers off by one", p("10000000000"), p("10000000001"), false},
		{"large integers off by four", p("5000000000"), p("5000000004"), false},
		{"integers beyond float precision", p("9007199254740993"), p("9007199254740992"), false},
		{"integers beyond int64", p("92233720368547758070"), p("+92233720368547758070"), true},
		{"integer vs integral real", p("10000000000"), p("10000000000.000001"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "not symmetric")
		})
	}
}

func TestToleranceZeroIsExact(t *testing.T) {
	var exact Tolerance
	assert.True(t, exact.Equal(QE.Present("2"), QE.Present("2.0")))
	assert.False(t, exact.Equal(QE.Present("1.0000000001"), QE.Present("1.0000000002")))
}

func TestEqualSymmetricGrid(t *testing.T) {
	values := []QE.Scalar{
		QE.Absent, QE.Present(""), QE.Present("0"), QE.Present("-0"), QE.Present("1e-10"),
		QE.Present("1"), QE.Present("1.000000001"), QE.Present("x"), QE.Present("NaN"),
		QE.Present("-Inf"), QE.Present("9007199254740993"), QE.Present("9007199254740992"),
	}
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, Equal(a, b), Equal(b, a), "%q vs %q", a, b)
		}
	}
}
