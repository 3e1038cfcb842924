package dialects

import (
	"database/sql/driver"
	"errors"
	"strconv"
	"strings"

	"modernc.org/sqlite"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct {
	ansi
}

// Hooks filled in by cgo builds that link mattn/go-sqlite3.
var (
	cgoErrorInfo func(error) (ErrorInfo, bool)
	cgoOwns      func(driver.Driver) bool
)

func init() {
	Register("sqlite", NewSQLite)
	Register("sqlite3", NewSQLite)
}

// NewSQLite creates the SQLite dialect.
func NewSQLite() Dialect {
	return &SQLiteDialect{ansi{types: map[string]string{
		"pk":        "integer PRIMARY KEY AUTOINCREMENT NOT NULL",
		"bigpk":     "integer PRIMARY KEY AUTOINCREMENT NOT NULL",
		"string":    "varchar(255)",
		"text":      "text",
		"smallint":  "smallint",
		"integer":   "integer",
		"bigint":    "bigint",
		"float":     "float",
		"decimal":   "decimal(10,0)",
		"datetime":  "datetime",
		"timestamp": "timestamp",
		"time":      "time",
		"date":      "date",
		"binary":    "blob",
		"boolean":   "boolean",
		"money":     "decimal(19,4)",
	}}}
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// LimitOffset renders SQLite LIMIT; an offset alone needs LIMIT -1.
func (d *SQLiteDialect) LimitOffset(limit, offset int64) string {
	if limit < 0 && offset > 0 {
		return "LIMIT -1 OFFSET " + strconv.FormatInt(offset, 10)
	}
	return d.ansi.LimitOffset(limit, offset)
}

// Union renders a bare compound member; SQLite rejects parenthesised selects.
func (d *SQLiteDialect) Union(sub string) string {
	return "UNION\n" + sub
}

// UpsertSQL generates SQLite UPSERT syntax using ON CONFLICT.
func (d *SQLiteDialect) UpsertSQL(conflictColumns, updateColumns []string) string {
	if len(updateColumns) == 0 {
		if len(conflictColumns) > 0 {
			return " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO NOTHING"
		}
		return " ON CONFLICT DO NOTHING"
	}
	return " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO UPDATE SET " +
		excludedSet(updateColumns, "excluded")
}

// TruncateTableSQL deletes every row; SQLite has no TRUNCATE.
func (d *SQLiteDialect) TruncateTableSQL(table string) string {
	return "DELETE FROM " + table
}

// AlterColumnSQL is not supported by SQLite.
func (d *SQLiteDialect) AlterColumnSQL(_, _, _ string) string {
	return ""
}

// AddForeignKeySQL is not supported by SQLite.
func (d *SQLiteDialect) AddForeignKeySQL(_, _, _, _, _, _, _ string) string {
	return ""
}

// DropForeignKeySQL is not supported by SQLite.
func (d *SQLiteDialect) DropForeignKeySQL(_, _ string) string {
	return ""
}

// LastInsertIDSQL returns last_insert_rowid().
func (d *SQLiteDialect) LastInsertIDSQL(_ string) string {
	return "SELECT last_insert_rowid()"
}

// BuildDSN appends attributes as URI query parameters. Credentials do not apply.
func (d *SQLiteDialect) BuildDSN(dsn, _, _ string, attrs map[string]string) (string, error) {
	return appendQuery(dsn, attrs), nil
}

// ErrorInfo extracts the result code from modernc or, in cgo builds, mattn errors.
func (d *SQLiteDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return ErrorInfo{Code: liteErr.Code(), Message: liteErr.Error()}, true
	}
	if cgoErrorInfo != nil {
		return cgoErrorInfo(err)
	}
	return ErrorInfo{}, false
}

// OwnsDriver reports whether drv is a SQLite driver.
func (d *SQLiteDialect) OwnsDriver(drv driver.Driver) bool {
	if _, ok := drv.(*sqlite.Driver); ok {
		return true
	}
	return cgoOwns != nil && cgoOwns(drv)
}
