package ExprGen

import (
	"github.com/cyw0ng95/aggoracle/internal/QP"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
)

var (
	edgeIntegers = []int64{0, 1, -1}
	words        = []string{"", "a", "abc", "ABC", "hello world", "it's", "0", "12", "3.5", " 7", "-1e3", "x1"}
)

// RandomValue returns a non-NULL literal of the given affinity. Magnitudes
// are bounded (|int| <= 1000, reals with two decimals up to 1000) so that
// nested products stay exact in int64 and float64.
func RandomValue(rnd *util.LCG, a QP.Affinity) *QP.Literal {
	switch a {
	case QP.AffinityInteger:
		if rnd.BoolWithProb(0.2) {
			return &QP.Literal{Value: edgeIntegers[rnd.Intn(len(edgeIntegers))]}
		}
		return &QP.Literal{Value: int64(rnd.Between(-1000, 1000))}
	case QP.AffinityReal:
		return &QP.Literal{Value: float64(rnd.Between(-100000, 100000)) / 100}
	case QP.AffinityText:
		return &QP.Literal{Value: rnd.Choice(words)}
	case QP.AffinityBlob:
		b := make([]byte, rnd.Between(0, 4))
		for i := range b {
			b[i] = byte(rnd.Intn(256))
		}
		return &QP.Literal{Value: b}
	default:
		if rnd.Bool() {
			return RandomValue(rnd, QP.AffinityInteger)
		}
		return RandomValue(rnd, QP.AffinityReal)
	}
}
