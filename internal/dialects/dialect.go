// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite. A dialect owns identifier and literal quoting,
// placeholder style, LIMIT/OFFSET syntax, UPSERT clauses, DDL quirks, abstract
// column type mapping, DSN assembly and driver error extraction.
package dialects

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnsupported is returned when no dialect is registered for a driver name.
	ErrUnsupported = errors.New("unsupported database driver")

	// ErrNotSupported is returned when a dialect cannot express a statement.
	ErrNotSupported = errors.New("operation not supported by database dialect")
)

// Dialect defines database-specific behaviors.
//
// Methods taking table, column or index names expect them already quoted.
type Dialect interface {
	Name() string

	QuoteSimpleTableName(name string) string
	QuoteSimpleColumnName(name string) string
	QuoteValue(s string) string

	// Placeholder returns the positional placeholder for the 1-based index.
	Placeholder(index int) string
	// LimitOffset renders the LIMIT/OFFSET clause; negative values mean unset.
	LimitOffset(limit, offset int64) string
	// Union renders one member of a compound select.
	Union(sub string) string
	UpsertSQL(conflictColumns, updateColumns []string) string

	// ColumnType maps an abstract column type such as "string(64) NOT NULL"
	// to the native type. Unknown types are returned unchanged.
	ColumnType(abstract string) string

	RenameTableSQL(table, newName string) string
	TruncateTableSQL(table string) string
	RenameColumnSQL(table, column, newName string) string
	// AlterColumnSQL returns "" when the engine cannot alter a column in place.
	AlterColumnSQL(table, column, typ string) string
	// AddForeignKeySQL returns "" when constraints cannot be added after creation.
	AddForeignKeySQL(name, table, columns, refTable, refColumns, onDelete, onUpdate string) string
	DropForeignKeySQL(name, table string) string
	DropIndexSQL(name, table string) string

	// CharsetSQL returns the statement selecting the client charset, or "".
	CharsetSQL(charset string) string
	// LastInsertIDSQL returns the query reading the last generated key.
	LastInsertIDSQL(sequence string) string

	// BuildDSN merges credentials and driver attributes into dsn.
	BuildDSN(dsn, username, password string, attrs map[string]string) (string, error)
	// ErrorInfo extracts the driver error triple from err.
	ErrorInfo(err error) (ErrorInfo, bool)
	// OwnsDriver reports whether drv is a driver this dialect speaks to.
	OwnsDriver(drv driver.Driver) bool
}

// ErrorInfo is the driver-level error triple attached to execution errors.
type ErrorInfo struct {
	SQLState string
	Code     int
	Message  string
}

// Factory creates a dialect instance.
type Factory func() Dialect

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register registers a dialect factory by driver name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Get returns a new dialect for the driver name.
func Get(name string) (Dialect, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return f(), nil
}

// Names lists the registered driver names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect returns the canonical dialect name and dialect owning drv.
func Detect(drv driver.Driver) (string, Dialect, error) {
	for _, name := range Names() {
		d, err := Get(name)
		if err != nil {
			continue
		}
		if d.OwnsDriver(drv) {
			return d.Name(), d, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %T", ErrUnsupported, drv)
}

// ansi carries the behavior shared by all bundled dialects.
type ansi struct {
	types map[string]string
}

func (ansi) QuoteSimpleTableName(name string) string {
	return quoteIdentifier(name, `"`)
}

func (ansi) QuoteSimpleColumnName(name string) string {
	if name == "*" {
		return name
	}
	return quoteIdentifier(name, `"`)
}

func (ansi) QuoteValue(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (ansi) Placeholder(_ int) string {
	return "?"
}

func (ansi) LimitOffset(limit, offset int64) string {
	var parts []string
	if limit >= 0 {
		parts = append(parts, "LIMIT "+strconv.FormatInt(limit, 10))
	}
	if offset > 0 {
		parts = append(parts, "OFFSET "+strconv.FormatInt(offset, 10))
	}
	return strings.Join(parts, " ")
}

func (ansi) Union(sub string) string {
	return "UNION (\n" + sub + "\n)"
}

func (a ansi) ColumnType(abstract string) string {
	return mapColumnType(a.types, abstract)
}

func (ansi) RenameTableSQL(table, newName string) string {
	return "ALTER TABLE " + table + " RENAME TO " + newName
}

func (ansi) TruncateTableSQL(table string) string {
	return "TRUNCATE TABLE " + table
}

func (ansi) RenameColumnSQL(table, column, newName string) string {
	return "ALTER TABLE " + table + " RENAME COLUMN " + column + " TO " + newName
}

func (ansi) AddForeignKeySQL(name, table, columns, refTable, refColumns, onDelete, onUpdate string) string {
	var sb strings.Builder
	sb.WriteString("ALTER TABLE " + table + " ADD CONSTRAINT " + name)
	sb.WriteString(" FOREIGN KEY (" + columns + ") REFERENCES " + refTable + " (" + refColumns + ")")
	if onDelete != "" {
		sb.WriteString(" ON DELETE " + onDelete)
	}
	if onUpdate != "" {
		sb.WriteString(" ON UPDATE " + onUpdate)
	}
	return sb.String()
}

func (ansi) DropForeignKeySQL(name, table string) string {
	return "ALTER TABLE " + table + " DROP CONSTRAINT " + name
}

func (ansi) DropIndexSQL(name, _ string) string {
	return "DROP INDEX " + name
}

func (ansi) CharsetSQL(_ string) string {
	return ""
}

// quoteIdentifier wraps name in q, doubling embedded q characters. A name
// that is already a well-formed quoted identifier is returned unchanged.
func quoteIdentifier(name, q string) string {
	if n := len(name); n >= 2 && strings.HasPrefix(name, q) && strings.HasSuffix(name, q) {
		if !strings.Contains(strings.ReplaceAll(name[1:n-1], q+q, ""), q) {
			return name
		}
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

var (
	sizedTypeRe  = regexp.MustCompile(`^(\w+)\((.+?)\)(.*)$`)
	prefixTypeRe = regexp.MustCompile(`^(\w+)\s+(.*)$`)
	typeSizeRe   = regexp.MustCompile(`\(.+\)`)
)

// mapColumnType resolves abstract types, keeping an explicit size and any
// trailing constraint text.
func mapColumnType(types map[string]string, abstract string) string {
	if t, ok := types[abstract]; ok {
		return t
	}
	if m := sizedTypeRe.FindStringSubmatch(abstract); m != nil {
		if t, ok := types[m[1]]; ok {
			if loc := typeSizeRe.FindStringIndex(t); loc != nil {
				t = t[:loc[0]] + "(" + m[2] + ")" + t[loc[1]:]
			}
			return t + m[3]
		}
	}
	if m := prefixTypeRe.FindStringSubmatch(abstract); m != nil {
		if t, ok := types[m[1]]; ok {
			return t + " " + m[2]
		}
	}
	return abstract
}

// appendQuery appends attrs as sorted key=value query parameters.
func appendQuery(dsn string, attrs map[string]string) string {
	if len(attrs) == 0 {
		return dsn
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, k := range keys {
		sb.WriteString(sep)
		sb.WriteString(url.QueryEscape(k) + "=" + url.QueryEscape(attrs[k]))
		sep = "&"
	}
	return sb.String()
}
