package schema

import (
	"context"
	"sort"
)

var sqliteTypes = map[string]Type{
	"tinyint":    TypeSmallInt,
	"bit":        TypeSmallInt,
	"boolean":    TypeBoolean,
	"bool":       TypeBoolean,
	"smallint":   TypeSmallInt,
	"mediumint":  TypeInteger,
	"int":        TypeInteger,
	"integer":    TypeInteger,
	"bigint":     TypeBigInt,
	"float":      TypeFloat,
	"double":     TypeFloat,
	"real":       TypeFloat,
	"decimal":    TypeDecimal,
	"numeric":    TypeDecimal,
	"tinytext":   TypeText,
	"mediumtext": TypeText,
	"longtext":   TypeText,
	"text":       TypeText,
	"varchar":    TypeString,
	"string":     TypeString,
	"char":       TypeString,
	"clob":       TypeText,
	"blob":       TypeBinary,
	"datetime":   TypeDatetime,
	"year":       TypeDate,
	"date":       TypeDate,
	"time":       TypeTime,
	"timestamp":  TypeTimestamp,
	"enum":       TypeString,
}

// SQLiteLoader reads metadata with PRAGMA statements.
type SQLiteLoader struct{}

func sqlitePragma(conn Conn, pragma, name string) string {
	schemaName, table := splitName(name)
	prefix := ""
	if schemaName != "" {
		prefix = conn.QuoteColumnName(schemaName) + "."
	}
	return "PRAGMA " + prefix + pragma + "(" + conn.QuoteColumnName(table) + ")"
}

// LoadTable implements Loader.
func (l *SQLiteLoader) LoadTable(ctx context.Context, conn Conn, name string) (*TableSchema, error) {
	rows, err := conn.QueryRows(ctx, sqlitePragma(conn, "table_info", name))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	schemaName, table := splitName(name)
	t := &TableSchema{
		SchemaName: schemaName,
		Name:       table,
		QuotedName: conn.QuoteTableName(name),
	}

	type pkCol struct {
		pos  int
		name string
	}
	var pks []pkCol
	for _, row := range rows {
		c := newColumn(str(row, "name"), str(row, "type"), sqliteTypes)
		c.QuotedName = conn.QuoteColumnName(c.Name)
		c.AllowNull = num(row, "notnull") == 0
		c.DefaultValue = literalDefault(c, row["dflt_value"])
		if pos := num(row, "pk"); pos > 0 {
			pks = append(pks, pkCol{pos, c.Name})
		}
		t.AddColumn(c)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, pk := range pks {
		t.markPrimaryKey(pk.name)
	}
	if len(t.PrimaryKey) == 1 {
		if c := t.Column(t.PrimaryKey[0]); c.DBType == "integer" {
			c.AutoIncrement = true
		}
	}

	if err := l.loadForeignKeys(ctx, conn, name, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (l *SQLiteLoader) loadForeignKeys(ctx context.Context, conn Conn, name string, t *TableSchema) error {
	rows, err := conn.QueryRows(ctx, sqlitePragma(conn, "foreign_key_list", name))
	if err != nil {
		return err
	}
	byID := make(map[int]int)
	for _, row := range rows {
		id := num(row, "id")
		i, ok := byID[id]
		if !ok {
			i = len(t.ForeignKeys)
			byID[id] = i
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{TargetTable: str(row, "table")})
		}
		fk := &t.ForeignKeys[i]
		fk.LocalColumns = append(fk.LocalColumns, str(row, "from"))
		fk.TargetColumns = append(fk.TargetColumns, str(row, "to"))
	}
	return nil
}

// TableNames implements Loader.
func (l *SQLiteLoader) TableNames(ctx context.Context, conn Conn, schemaName string) ([]string, error) {
	master := "sqlite_master"
	if schemaName != "" {
		master = conn.QuoteColumnName(schemaName) + ".sqlite_master"
	}
	rows, err := conn.QueryRows(ctx, "SELECT DISTINCT tbl_name FROM "+master+
		" WHERE type='table' AND tbl_name<>'sqlite_sequence' ORDER BY tbl_name")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = str(row, "tbl_name")
	}
	return names, nil
}
