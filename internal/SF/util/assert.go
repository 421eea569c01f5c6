package util

import (
	"fmt"
	"reflect"
)

// Assert panics if condition is false. It guards against wiring mistakes,
// never against bad input from the engine under test.
func Assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("Assertion failed: "+format, args...))
	}
}

// AssertNotNil panics if value is nil, including typed nils such as a nil
// *sql.DB stored in an interface.
func AssertNotNil(value interface{}, name string) {
	if value == nil {
		panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
		}
	}
}
