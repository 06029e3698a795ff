// Package repository holds the MySQL-backed stores.  The sentinel errors
// below let services tell "nothing there" apart from "already exists"
// without inspecting driver errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller.  Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.  For
// tickets this is the signal that another checkout for the same
// reservation won the race.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
