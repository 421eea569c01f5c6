//go:build !cgo_sqlite

package QE

const cgoSQLite = false
