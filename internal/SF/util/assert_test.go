package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(len("test") == 4, "length is %d", 4) })
	assert.PanicsWithValue(t, "Assertion failed: value 5 is not 10", func() {
		Assert(5 == 10, "value %d is not %d", 5, 10)
	})
}

func TestAssertNotNil(t *testing.T) {
	var (
		ptr *LCG
		fn  func()
	)
	assert.NotPanics(t, func() { AssertNotNil(NewLCG(1), "rnd") })
	assert.NotPanics(t, func() { AssertNotNil(3, "n") })
	assert.PanicsWithValue(t, "Assertion failed: rnd must not be nil", func() { AssertNotNil(nil, "rnd") })
	assert.PanicsWithValue(t, "Assertion failed: rnd must not be nil", func() { AssertNotNil(ptr, "rnd") })
	assert.Panics(t, func() { AssertNotNil(fn, "fn") })
}
