package core

// The helpers below synthesize a statement with the connection's query
// builder, replace the command text with it and execute it with the
// builder's params.

func (c *Command) builder() (*QueryBuilder, error) {
	return c.conn.QueryBuilder()
}

func (c *Command) executeBuilt(sql string, params Params, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return c.SetSQL(sql).Execute(params)
}

// Insert inserts one row.
func (c *Command) Insert(table string, columns map[string]any) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	return c.executeBuilt(qb.Insert(table, columns))
}

// BatchInsert inserts several rows in one statement. No rows is a no-op.
func (c *Command) BatchInsert(table string, columns []string, rows [][]any) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	sql, params, err := qb.BatchInsert(table, columns, rows)
	if err != nil || sql == "" {
		return 0, err
	}
	return c.SetSQL(sql).Execute(params)
}

// Upsert inserts a row or updates it on a conflict; see QueryBuilder.Upsert.
func (c *Command) Upsert(table string, columns map[string]any, conflictColumns, update []string) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	return c.executeBuilt(qb.Upsert(table, columns, conflictColumns, update))
}

// Update updates the rows matching where.
func (c *Command) Update(table string, columns map[string]any, where any, params Params) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	return c.executeBuilt(qb.Update(table, columns, where, params))
}

// Delete deletes the rows matching where.
func (c *Command) Delete(table string, where any, params Params) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	return c.executeBuilt(qb.Delete(table, where, params))
}

func (c *Command) ddl(build func(qb *QueryBuilder) (string, error)) (int64, error) {
	qb, err := c.builder()
	if err != nil {
		return 0, err
	}
	sql, err := build(qb)
	return c.executeBuilt(sql, nil, err)
}

// CreateTable creates a table.
func (c *Command) CreateTable(table string, columns []ColumnDef, options string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.CreateTable(table, columns, options)
	})
}

// RenameTable renames a table.
func (c *Command) RenameTable(table, newName string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.RenameTable(table, newName), nil
	})
}

// DropTable drops a table.
func (c *Command) DropTable(table string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.DropTable(table), nil
	})
}

// TruncateTable removes every row of a table.
func (c *Command) TruncateTable(table string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.TruncateTable(table), nil
	})
}

// AddColumn adds a column.
func (c *Command) AddColumn(table, column, typ string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.AddColumn(table, column, typ), nil
	})
}

// DropColumn drops a column.
func (c *Command) DropColumn(table, column string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.DropColumn(table, column), nil
	})
}

// RenameColumn renames a column.
func (c *Command) RenameColumn(table, column, newName string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.RenameColumn(table, column, newName), nil
	})
}

// AlterColumn changes a column's type.
func (c *Command) AlterColumn(table, column, typ string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.AlterColumn(table, column, typ)
	})
}

// AddForeignKey adds a foreign key constraint.
func (c *Command) AddForeignKey(name, table, columns, refTable, refColumns, onDelete, onUpdate string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.AddForeignKey(name, table, columns, refTable, refColumns, onDelete, onUpdate)
	})
}

// DropForeignKey drops a foreign key constraint.
func (c *Command) DropForeignKey(name, table string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.DropForeignKey(name, table)
	})
}

// CreateIndex creates an index.
func (c *Command) CreateIndex(name, table, columns string, unique bool) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.CreateIndex(name, table, columns, unique), nil
	})
}

// DropIndex drops an index.
func (c *Command) DropIndex(name, table string) (int64, error) {
	return c.ddl(func(qb *QueryBuilder) (string, error) {
		return qb.DropIndex(name, table), nil
	})
}
