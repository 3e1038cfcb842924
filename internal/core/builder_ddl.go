package core

import (
	"fmt"
	"strings"
)

// ColumnDef is one entry of a CREATE TABLE column list. Type may be an
// abstract type ("pk", "string(64) NOT NULL") or a native one. An entry
// without Name is emitted verbatim, e.g. "PRIMARY KEY (a, b)".
type ColumnDef struct {
	Name string
	Type string
}

// CreateTable builds a CREATE TABLE statement; options is appended as-is.
func (qb *QueryBuilder) CreateTable(table string, columns []ColumnDef, options string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: table %s has no columns", ErrInvalidQuery, table)
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			defs[i] = c.Type
			continue
		}
		defs[i] = qb.QuoteColumnName(c.Name) + " " + qb.ColumnType(c.Type)
	}
	sql := "CREATE TABLE " + qb.QuoteTableName(table) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
	if options != "" {
		sql += " " + options
	}
	return sql, nil
}

// RenameTable builds a statement renaming a table.
func (qb *QueryBuilder) RenameTable(table, newName string) string {
	return qb.dialect.RenameTableSQL(qb.QuoteTableName(table), qb.QuoteTableName(newName))
}

// DropTable builds a DROP TABLE statement.
func (qb *QueryBuilder) DropTable(table string) string {
	return "DROP TABLE " + qb.QuoteTableName(table)
}

// TruncateTable builds a statement removing every row of a table.
func (qb *QueryBuilder) TruncateTable(table string) string {
	return qb.dialect.TruncateTableSQL(qb.QuoteTableName(table))
}

// AddColumn builds an ALTER TABLE ... ADD statement.
func (qb *QueryBuilder) AddColumn(table, column, typ string) string {
	return "ALTER TABLE " + qb.QuoteTableName(table) +
		" ADD " + qb.QuoteColumnName(column) + " " + qb.ColumnType(typ)
}

// DropColumn builds an ALTER TABLE ... DROP COLUMN statement.
func (qb *QueryBuilder) DropColumn(table, column string) string {
	return "ALTER TABLE " + qb.QuoteTableName(table) + " DROP COLUMN " + qb.QuoteColumnName(column)
}

// RenameColumn builds a statement renaming a column.
func (qb *QueryBuilder) RenameColumn(table, column, newName string) string {
	return qb.dialect.RenameColumnSQL(qb.QuoteTableName(table), qb.QuoteColumnName(column), qb.QuoteColumnName(newName))
}

// AlterColumn builds a statement changing a column's type.
func (qb *QueryBuilder) AlterColumn(table, column, typ string) (string, error) {
	sql := qb.dialect.AlterColumnSQL(qb.QuoteTableName(table), qb.QuoteColumnName(column), qb.ColumnType(typ))
	if sql == "" {
		return "", fmt.Errorf("%w: %s cannot alter column %s", ErrNotSupported, qb.dialect.Name(), column)
	}
	return sql, nil
}

// AddForeignKey builds an ADD CONSTRAINT ... FOREIGN KEY statement. columns
// and refColumns are comma-separated lists.
func (qb *QueryBuilder) AddForeignKey(name, table, columns, refTable, refColumns, onDelete, onUpdate string) (string, error) {
	sql := qb.dialect.AddForeignKeySQL(
		qb.QuoteColumnName(name),
		qb.QuoteTableName(table),
		qb.quoteColumns(splitColumns([]string{columns})),
		qb.QuoteTableName(refTable),
		qb.quoteColumns(splitColumns([]string{refColumns})),
		onDelete, onUpdate,
	)
	if sql == "" {
		return "", fmt.Errorf("%w: %s cannot add foreign key %s", ErrNotSupported, qb.dialect.Name(), name)
	}
	return sql, nil
}

// DropForeignKey builds a statement removing a foreign key constraint.
func (qb *QueryBuilder) DropForeignKey(name, table string) (string, error) {
	sql := qb.dialect.DropForeignKeySQL(qb.QuoteColumnName(name), qb.QuoteTableName(table))
	if sql == "" {
		return "", fmt.Errorf("%w: %s cannot drop foreign key %s", ErrNotSupported, qb.dialect.Name(), name)
	}
	return sql, nil
}

// CreateIndex builds a CREATE [UNIQUE] INDEX statement. columns is a
// comma-separated list; entries holding "(" are left unquoted.
func (qb *QueryBuilder) CreateIndex(name, table, columns string, unique bool) string {
	sql := "CREATE INDEX "
	if unique {
		sql = "CREATE UNIQUE INDEX "
	}
	return sql + qb.QuoteTableName(name) + " ON " + qb.QuoteTableName(table) +
		" (" + qb.quoteColumns(splitColumns([]string{columns})) + ")"
}

// DropIndex builds a DROP INDEX statement.
func (qb *QueryBuilder) DropIndex(name, table string) string {
	return qb.dialect.DropIndexSQL(qb.QuoteTableName(name), qb.QuoteTableName(table))
}
