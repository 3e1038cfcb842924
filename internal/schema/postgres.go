package schema

import (
	"context"
	"regexp"
	"strings"
)

var postgresTypes = map[string]Type{
	"bit":         TypeInteger,
	"bool":        TypeBoolean,
	"boolean":     TypeBoolean,
	"int2":        TypeSmallInt,
	"smallint":    TypeSmallInt,
	"int4":        TypeInteger,
	"integer":     TypeInteger,
	"serial":      TypeInteger,
	"int8":        TypeBigInt,
	"bigint":      TypeBigInt,
	"bigserial":   TypeBigInt,
	"float4":      TypeFloat,
	"real":        TypeFloat,
	"float8":      TypeFloat,
	"double":      TypeFloat,
	"numeric":     TypeDecimal,
	"decimal":     TypeDecimal,
	"money":       TypeMoney,
	"varchar":     TypeString,
	"bpchar":      TypeString,
	"char":        TypeString,
	"text":        TypeText,
	"bytea":       TypeBinary,
	"date":        TypeDate,
	"time":        TypeTime,
	"timetz":      TypeTime,
	"timestamp":   TypeTimestamp,
	"timestamptz": TypeTimestamp,
	"json":        TypeText,
	"jsonb":       TypeText,
	"uuid":        TypeString,
}

var sequenceRe = regexp.MustCompile(`nextval\('([^']+)'`)

// PostgresLoader reads metadata from information_schema.
type PostgresLoader struct {
	// DefaultSchema is used for unqualified table names.
	DefaultSchema string
}

func (l *PostgresLoader) resolve(name string) (string, string) {
	schemaName, table := splitName(name)
	if schemaName == "" {
		schemaName = l.DefaultSchema
	}
	return schemaName, table
}

// LoadTable implements Loader.
func (l *PostgresLoader) LoadTable(ctx context.Context, conn Conn, name string) (*TableSchema, error) {
	schemaName, table := l.resolve(name)

	rows, err := conn.QueryRows(ctx, "SELECT column_name, udt_name, is_nullable, column_default, "+
		"character_maximum_length, numeric_precision, numeric_scale "+
		"FROM information_schema.columns WHERE table_schema = ? AND table_name = ? "+
		"ORDER BY ordinal_position", schemaName, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	t := &TableSchema{
		SchemaName: schemaName,
		Name:       table,
		QuotedName: conn.QuoteTableName(name),
	}
	for _, row := range rows {
		c := newColumn(str(row, "column_name"), str(row, "udt_name"), postgresTypes)
		c.QuotedName = conn.QuoteColumnName(c.Name)
		c.AllowNull = str(row, "is_nullable") == "YES"
		if n := num(row, "character_maximum_length"); n > 0 {
			c.Size = n
		}
		if n := num(row, "numeric_precision"); n > 0 {
			c.Precision = n
			c.Scale = num(row, "numeric_scale")
		}

		def := str(row, "column_default")
		if m := sequenceRe.FindStringSubmatch(def); m != nil {
			c.AutoIncrement = true
			if t.SequenceName == "" {
				t.SequenceName = strings.Trim(m[1], `"`)
			}
		} else if def != "" {
			c.DefaultValue = postgresDefault(c, def)
		}
		t.AddColumn(c)
	}

	pks, err := conn.QueryRows(ctx, "SELECT kcu.column_name FROM information_schema.table_constraints tc "+
		"JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name "+
		"AND kcu.table_schema = tc.table_schema AND kcu.table_name = tc.table_name "+
		"WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = ? AND tc.table_name = ? "+
		"ORDER BY kcu.ordinal_position", schemaName, table)
	if err != nil {
		return nil, err
	}
	for _, row := range pks {
		t.markPrimaryKey(str(row, "column_name"))
	}

	fks, err := conn.QueryRows(ctx, "SELECT tc.constraint_name AS name, kcu.column_name AS col, "+
		"ccu.table_name AS ref_table, ccu.column_name AS ref_col "+
		"FROM information_schema.table_constraints tc "+
		"JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name "+
		"AND kcu.table_schema = tc.table_schema "+
		"JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name "+
		"AND ccu.constraint_schema = tc.constraint_schema "+
		"WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = ? AND tc.table_name = ? "+
		"ORDER BY tc.constraint_name, kcu.ordinal_position", schemaName, table)
	if err != nil {
		return nil, err
	}
	t.ForeignKeys = groupForeignKeys(fks)
	return t, nil
}

// postgresDefault strips the type cast from defaults like 'abc'::character varying.
func postgresDefault(c *ColumnSchema, def string) any {
	if i := strings.LastIndex(def, "::"); i > 0 && strings.HasPrefix(def, "'") {
		def = def[:i]
	}
	switch strings.ToLower(def) {
	case "true":
		return true
	case "false":
		return false
	}
	return literalDefault(c, def)
}

// TableNames implements Loader.
func (l *PostgresLoader) TableNames(ctx context.Context, conn Conn, schemaName string) ([]string, error) {
	if schemaName == "" {
		schemaName = l.DefaultSchema
	}
	rows, err := conn.QueryRows(ctx, "SELECT table_name FROM information_schema.tables "+
		"WHERE table_schema = ? AND table_type = 'BASE TABLE' ORDER BY table_name", schemaName)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = str(row, "table_name")
	}
	return names, nil
}
