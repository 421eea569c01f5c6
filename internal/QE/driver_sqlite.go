//go:build !modernc

package QE

import (
	_ "github.com/glebarez/go-sqlite"
)

const sqliteDriver = "sqlite"
