package sqlite

import (
	"errors"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// constraintViolation reports whether err is the given extended SQLite
// constraint code. Errors that lost their type are matched on message.
func constraintViolation(err error, code int, message string) bool {
	if err == nil {
		return false
	}
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == code
	}
	return strings.Contains(err.Error(), message)
}

func isForeignKeyViolation(err error) bool {
	return constraintViolation(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	return constraintViolation(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed") ||
		constraintViolation(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return constraintViolation(err, sqlite3.SQLITE_CONSTRAINT_CHECK, "CHECK constraint failed")
}
