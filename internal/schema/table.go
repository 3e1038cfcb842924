package schema

// ForeignKey is a constraint from local columns to a target table.
type ForeignKey struct {
	Name          string
	TargetTable   string
	LocalColumns  []string
	TargetColumns []string
}

// TableSchema describes one table. Columns keep declaration order.
type TableSchema struct {
	CatalogName  string
	SchemaName   string
	Name         string
	QuotedName   string
	PrimaryKey   []string
	SequenceName string
	ForeignKeys  []ForeignKey
	Columns      []*ColumnSchema

	index map[string]*ColumnSchema
}

// AddColumn appends a column. Tables must be fully built before they are
// shared between goroutines.
func (t *TableSchema) AddColumn(c *ColumnSchema) {
	t.Columns = append(t.Columns, c)
	if t.index == nil {
		t.reindex()
		return
	}
	t.index[c.Name] = c
}

// reindex rebuilds the name lookup from Columns.
func (t *TableSchema) reindex() {
	t.index = make(map[string]*ColumnSchema, len(t.Columns))
	for _, c := range t.Columns {
		t.index[c.Name] = c
	}
}

// Column returns the named column or nil.
func (t *TableSchema) Column(name string) *ColumnSchema {
	if t.index != nil {
		return t.index[name]
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames lists column names in declaration order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasCompositeKey reports whether the primary key spans several columns.
func (t *TableSchema) HasCompositeKey() bool {
	return len(t.PrimaryKey) > 1
}

// Typecast returns a copy of row with every known column coerced.
// Unknown keys are copied unchanged.
func (t *TableSchema) Typecast(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if c := t.Column(k); c != nil {
			out[k] = c.Typecast(v)
		} else {
			out[k] = v
		}
	}
	return out
}

// markPrimaryKey flags the listed columns and records the key.
func (t *TableSchema) markPrimaryKey(names ...string) {
	for _, name := range names {
		if c := t.Column(name); c != nil {
			c.IsPrimaryKey = true
		}
	}
	t.PrimaryKey = append(t.PrimaryKey, names...)
}
