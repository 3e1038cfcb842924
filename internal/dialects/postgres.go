package dialects

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct {
	ansi
}

func init() {
	Register("postgres", NewPostgres)
	Register("pgsql", NewPostgres)
}

// NewPostgres creates the PostgreSQL dialect.
func NewPostgres() Dialect {
	return &PostgresDialect{ansi{types: map[string]string{
		"pk":        "serial NOT NULL PRIMARY KEY",
		"bigpk":     "bigserial NOT NULL PRIMARY KEY",
		"string":    "character varying (255)",
		"text":      "text",
		"smallint":  "smallint",
		"integer":   "integer",
		"bigint":    "bigint",
		"float":     "double precision",
		"decimal":   "numeric(10,0)",
		"datetime":  "timestamp(0)",
		"timestamp": "timestamp(0)",
		"time":      "time(0)",
		"date":      "date",
		"binary":    "bytea",
		"boolean":   "boolean",
		"money":     "numeric(19,4)",
	}}}
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// UpsertSQL generates PostgreSQL UPSERT syntax using ON CONFLICT.
func (d *PostgresDialect) UpsertSQL(conflictColumns, updateColumns []string) string {
	if len(updateColumns) == 0 {
		if len(conflictColumns) > 0 {
			return " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO NOTHING"
		}
		return " ON CONFLICT DO NOTHING"
	}
	return " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO UPDATE SET " +
		excludedSet(updateColumns, "EXCLUDED")
}

// AlterColumnSQL changes a column type with ALTER COLUMN ... TYPE.
func (d *PostgresDialect) AlterColumnSQL(table, column, typ string) string {
	return "ALTER TABLE " + table + " ALTER COLUMN " + column + " TYPE " + typ
}

// TruncateTableSQL also restarts owned sequences.
func (d *PostgresDialect) TruncateTableSQL(table string) string {
	return "TRUNCATE TABLE " + table + " RESTART IDENTITY"
}

// CharsetSQL selects the client encoding.
func (d *PostgresDialect) CharsetSQL(charset string) string {
	if charset == "" {
		return ""
	}
	return "SET client_encoding TO " + d.QuoteValue(charset)
}

// LastInsertIDSQL reads the sequence's current value, or lastval() without one.
func (d *PostgresDialect) LastInsertIDSQL(sequence string) string {
	if sequence == "" {
		return "SELECT lastval()"
	}
	return "SELECT currval(" + d.QuoteValue(sequence) + ")"
}

// BuildDSN merges credentials and attributes into URL or key=value DSNs.
func (d *PostgresDialect) BuildDSN(dsn, username, password string, attrs map[string]string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres dsn: %w", err)
		}
		if username != "" {
			if password != "" {
				u.User = url.UserPassword(username, password)
			} else {
				u.User = url.User(username)
			}
		}
		q := u.Query()
		for k, v := range attrs {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	parts := []string{}
	if s := strings.TrimSpace(dsn); s != "" {
		parts = append(parts, s)
	}
	if username != "" {
		parts = append(parts, "user="+kvQuote(username))
	}
	if password != "" {
		parts = append(parts, "password="+kvQuote(password))
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+kvQuote(attrs[k]))
	}
	return strings.Join(parts, " "), nil
}

// ErrorInfo extracts SQLSTATE and message from *pq.Error.
func (d *PostgresDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ErrorInfo{}, false
	}
	return ErrorInfo{SQLState: string(pqErr.Code), Message: pqErr.Message}, true
}

// OwnsDriver reports whether drv is lib/pq.
func (d *PostgresDialect) OwnsDriver(drv driver.Driver) bool {
	_, ok := drv.(*pq.Driver)
	return ok
}

func excludedSet(cols []string, ref string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " = " + ref + "." + col
	}
	return strings.Join(parts, ", ")
}

// kvQuote quotes a libpq key=value connection string value.
func kvQuote(v string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}
