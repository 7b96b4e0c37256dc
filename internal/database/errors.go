package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL integrity errors: duplicate key, null column, foreign keys, check.
var mysqlConstraintCodes = map[uint16]struct{}{
	1048: {},
	1062: {},
	1451: {},
	1452: {},
	3819: {},
}

// IsConstraintViolation reports whether err is an integrity error raised by
// any of the supported drivers. Repeating the statement cannot succeed.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlConstraintCodes[myErr.Number]
		return ok
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
