//go:build modernc

package QE

import (
	_ "modernc.org/sqlite"
)

// modernc.org/sqlite registers the same driver name as glebarez/go-sqlite,
// so the two are mutually exclusive.
const sqliteDriver = "sqlite"
