package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/daokit/internal/dialects"
)

// NewLoader returns the metadata loader for a dialect name.
func NewLoader(dialect string) (Loader, error) {
	switch dialect {
	case "mysql":
		return &MySQLLoader{}, nil
	case "postgres":
		return &PostgresLoader{DefaultSchema: "public"}, nil
	case "sqlite":
		return &SQLiteLoader{}, nil
	}
	return nil, fmt.Errorf("%w: no schema loader for %q", dialects.ErrUnsupported, dialect)
}

// splitName separates an optional schema qualifier from a table name.
func splitName(name string) (schemaName, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// newColumn fills the type-derived fields of a column from its native type.
func newColumn(name, native string, types map[string]Type) *ColumnSchema {
	t := parseDBType(native)
	c := &ColumnSchema{
		Name:       name,
		DBType:     strings.ToLower(strings.TrimSpace(native)),
		Size:       t.size,
		Precision:  t.precision,
		Scale:      t.scale,
		Unsigned:   t.unsigned,
		EnumValues: t.enum,
		Type:       TypeString,
	}
	if typ, ok := types[t.base]; ok {
		c.Type = typ
	}
	if t.base == "tinyint" && t.size == 1 {
		c.Type = TypeBoolean
	}
	if c.Type == TypeBoolean && t.base == "bit" && t.size > 1 {
		c.Type = TypeInteger
	}
	c.Kind = KindOf(c.Type, c.Unsigned)
	return c
}

// literalDefault turns a quoted SQL default into its value. Expression
// defaults such as CURRENT_TIMESTAMP yield nil.
func literalDefault(c *ColumnSchema, raw any) any {
	s, ok := raw.(string)
	if !ok {
		return c.Typecast(raw)
	}
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "null"):
		return nil
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return c.Typecast(strings.ReplaceAll(s[1:len(s)-1], "''", "'"))
	case strings.EqualFold(s, "current_timestamp"), strings.HasSuffix(s, ")"):
		return nil
	}
	return c.Typecast(s)
}

func str(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func num(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		n, _ := strconv.Atoi(str(row, key))
		return n
	}
}

// firstValue returns the only column of a row whose key is not known upfront.
func firstValue(row map[string]any) string {
	for k := range row {
		return str(row, k)
	}
	return ""
}
