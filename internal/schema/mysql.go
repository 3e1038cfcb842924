package schema

import (
	"context"
	"strings"
)

var mysqlTypes = map[string]Type{
	"tinyint":    TypeSmallInt,
	"bit":        TypeInteger,
	"bool":       TypeBoolean,
	"boolean":    TypeBoolean,
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
	"longblob":   TypeBinary,
	"blob":       TypeBinary,
	"text":       TypeText,
	"varchar":    TypeString,
	"string":     TypeString,
	"char":       TypeString,
	"datetime":   TypeDatetime,
	"year":       TypeDate,
	"date":       TypeDate,
	"time":       TypeTime,
	"timestamp":  TypeTimestamp,
	"enum":       TypeString,
	"set":        TypeString,
	"varbinary":  TypeBinary,
	"binary":     TypeBinary,
	"json":       TypeText,
}

// MySQLLoader reads metadata with SHOW statements and information_schema.
type MySQLLoader struct{}

func mysqlSchemaExpr(conn Conn, schemaName string) string {
	if schemaName == "" {
		return "DATABASE()"
	}
	return conn.QuoteValue(schemaName)
}

// LoadTable implements Loader.
func (l *MySQLLoader) LoadTable(ctx context.Context, conn Conn, name string) (*TableSchema, error) {
	schemaName, table := splitName(name)

	exists, err := conn.QueryRows(ctx, "SELECT COUNT(*) AS n FROM information_schema.TABLES WHERE TABLE_SCHEMA = "+
		mysqlSchemaExpr(conn, schemaName)+" AND TABLE_NAME = ?", table)
	if err != nil {
		return nil, err
	}
	if len(exists) == 0 || num(exists[0], "n") == 0 {
		return nil, nil
	}

	t := &TableSchema{
		SchemaName: schemaName,
		Name:       table,
		QuotedName: conn.QuoteTableName(name),
	}

	rows, err := conn.QueryRows(ctx, "SHOW FULL COLUMNS FROM "+t.QuotedName)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		c := newColumn(str(row, "Field"), str(row, "Type"), mysqlTypes)
		c.QuotedName = conn.QuoteColumnName(c.Name)
		c.AllowNull = str(row, "Null") == "YES"
		c.Comment = str(row, "Comment")
		extra := strings.ToLower(str(row, "Extra"))
		c.AutoIncrement = strings.Contains(extra, "auto_increment")
		if def := row["Default"]; def != nil && !strings.Contains(extra, "default_generated") &&
			!(c.Type == TypeTimestamp && strings.EqualFold(str(row, "Default"), "current_timestamp")) {
			c.DefaultValue = c.Typecast(def)
		}
		t.AddColumn(c)
		if str(row, "Key") == "PRI" {
			t.markPrimaryKey(c.Name)
		}
	}

	fks, err := conn.QueryRows(ctx, "SELECT CONSTRAINT_NAME AS name, COLUMN_NAME AS col, "+
		"REFERENCED_TABLE_NAME AS ref_table, REFERENCED_COLUMN_NAME AS ref_col "+
		"FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = "+mysqlSchemaExpr(conn, schemaName)+
		" AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION", table)
	if err != nil {
		return nil, err
	}
	t.ForeignKeys = groupForeignKeys(fks)
	return t, nil
}

// groupForeignKeys folds name/col/ref_table/ref_col rows into constraints.
func groupForeignKeys(rows []map[string]any) []ForeignKey {
	var fks []ForeignKey
	index := make(map[string]int)
	for _, row := range rows {
		name := str(row, "name")
		i, ok := index[name]
		if !ok {
			i = len(fks)
			index[name] = i
			fks = append(fks, ForeignKey{Name: name, TargetTable: str(row, "ref_table")})
		}
		fks[i].LocalColumns = append(fks[i].LocalColumns, str(row, "col"))
		fks[i].TargetColumns = append(fks[i].TargetColumns, str(row, "ref_col"))
	}
	return fks
}

// TableNames implements Loader.
func (l *MySQLLoader) TableNames(ctx context.Context, conn Conn, schemaName string) ([]string, error) {
	query := "SHOW TABLES"
	if schemaName != "" {
		query += " FROM " + conn.QuoteColumnName(schemaName)
	}
	rows, err := conn.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = firstValue(row)
	}
	return names, nil
}
