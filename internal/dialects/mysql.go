package dialects

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct {
	ansi
}

func init() {
	Register("mysql", NewMySQL)
}

// NewMySQL creates the MySQL dialect.
func NewMySQL() Dialect {
	return &MySQLDialect{ansi{types: map[string]string{
		"pk":        "int(11) NOT NULL AUTO_INCREMENT PRIMARY KEY",
		"bigpk":     "bigint(20) NOT NULL AUTO_INCREMENT PRIMARY KEY",
		"string":    "varchar(255)",
		"text":      "text",
		"smallint":  "smallint(6)",
		"integer":   "int(11)",
		"bigint":    "bigint(20)",
		"float":     "float",
		"decimal":   "decimal",
		"datetime":  "datetime",
		"timestamp": "timestamp",
		"time":      "time",
		"date":      "date",
		"binary":    "blob",
		"boolean":   "tinyint(1)",
		"money":     "decimal(19,4)",
	}}}
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// QuoteSimpleTableName quotes a MySQL table name using backticks.
func (d *MySQLDialect) QuoteSimpleTableName(name string) string {
	return quoteIdentifier(name, "`")
}

// QuoteSimpleColumnName quotes a MySQL column name using backticks.
func (d *MySQLDialect) QuoteSimpleColumnName(name string) string {
	if name == "*" {
		return name
	}
	return quoteIdentifier(name, "`")
}

// QuoteValue escapes backslashes as well as quotes.
func (d *MySQLDialect) QuoteValue(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\x00", `\0`, "\n", `\n`, "\r", `\r`, "\x1a", `\Z`).Replace(s) + "'"
}

// LimitOffset renders MySQL LIMIT; an offset alone needs the maximum row count.
func (d *MySQLDialect) LimitOffset(limit, offset int64) string {
	if limit < 0 && offset > 0 {
		return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return d.ansi.LimitOffset(limit, offset)
}

// UpsertSQL generates MySQL UPSERT syntax using ON DUPLICATE KEY UPDATE.
// Without update columns the first conflict column is assigned to itself,
// turning duplicates into no-ops.
func (d *MySQLDialect) UpsertSQL(conflictColumns, updateColumns []string) string {
	if len(updateColumns) == 0 {
		if len(conflictColumns) == 0 {
			return ""
		}
		col := conflictColumns[0]
		return " ON DUPLICATE KEY UPDATE " + col + " = " + col
	}
	updates := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updates[i] = col + " = VALUES(" + col + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
}

// RenameTableSQL uses RENAME TABLE.
func (d *MySQLDialect) RenameTableSQL(table, newName string) string {
	return "RENAME TABLE " + table + " TO " + newName
}

// AlterColumnSQL redefines the column with CHANGE.
func (d *MySQLDialect) AlterColumnSQL(table, column, typ string) string {
	return "ALTER TABLE " + table + " CHANGE " + column + " " + column + " " + typ
}

// DropForeignKeySQL uses DROP FOREIGN KEY.
func (d *MySQLDialect) DropForeignKeySQL(name, table string) string {
	return "ALTER TABLE " + table + " DROP FOREIGN KEY " + name
}

// DropIndexSQL needs the table in MySQL.
func (d *MySQLDialect) DropIndexSQL(name, table string) string {
	return "DROP INDEX " + name + " ON " + table
}

// CharsetSQL selects the client charset.
func (d *MySQLDialect) CharsetSQL(charset string) string {
	if charset == "" {
		return ""
	}
	return "SET NAMES " + d.QuoteValue(charset)
}

// LastInsertIDSQL returns LAST_INSERT_ID(); sequences do not exist in MySQL.
func (d *MySQLDialect) LastInsertIDSQL(_ string) string {
	return "SELECT LAST_INSERT_ID()"
}

// BuildDSN parses dsn with the driver's own parser and overlays credentials
// and params.
func (d *MySQLDialect) BuildDSN(dsn, username, password string, attrs map[string]string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Passwd = password
	}
	if len(attrs) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

// ErrorInfo extracts number, SQLSTATE and message from *mysql.MySQLError.
func (d *MySQLDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ErrorInfo{}, false
	}
	return ErrorInfo{
		SQLState: strings.TrimRight(string(myErr.SQLState[:]), "\x00"),
		Code:     int(myErr.Number),
		Message:  myErr.Message,
	}, true
}

// OwnsDriver reports whether drv is go-sql-driver/mysql.
func (d *MySQLDialect) OwnsDriver(drv driver.Driver) bool {
	_, ok := drv.(*mysql.MySQLDriver)
	return ok
}
