//go:build cgo_sqlite

package QE

import (
	_ "github.com/mattn/go-sqlite3"
)

const cgoSQLite = true
