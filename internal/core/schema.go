package core

import (
	"context"

	"github.com/coregx/daokit/internal/dialects"
	"github.com/coregx/daokit/internal/schema"
)

// Schema is the metadata catalog of one engine together with its query
// builder. Table metadata is loaded lazily and cached; see schema.Catalog.
type Schema struct {
	*schema.Catalog

	dialect dialects.Dialect
	qb      *QueryBuilder
}

func newSchema(c *Connection, d dialects.Dialect) (*Schema, error) {
	loader, err := schema.NewLoader(d.Name())
	if err != nil {
		return nil, err
	}
	s := &Schema{dialect: d, qb: NewQueryBuilder(d)}
	s.Catalog = schema.NewCatalog(loader, schemaConn{c}, schema.CatalogConfig{
		Key:         c.driverName + "/" + c.dsn + "/" + c.username,
		TablePrefix: c.tablePrefix,
		Store:       c.store,
		Duration:    c.schemaCachingDuration,
		Exclude:     c.schemaCachingExclude,
		Logger:      c.baseLog,
	})
	return s, nil
}

// QueryBuilder returns the dialect-aware query builder.
func (s *Schema) QueryBuilder() *QueryBuilder {
	return s.qb
}

// Dialect returns the engine dialect.
func (s *Schema) Dialect() dialects.Dialect {
	return s.dialect
}

// QuoteTableName quotes a table name, splitting schema prefixes.
func (s *Schema) QuoteTableName(name string) string {
	return s.qb.QuoteTableName(name)
}

// QuoteColumnName quotes a column name, splitting table prefixes.
func (s *Schema) QuoteColumnName(name string) string {
	return s.qb.QuoteColumnName(name)
}

// QuoteSimpleTableName quotes a table name without a schema prefix.
func (s *Schema) QuoteSimpleTableName(name string) string {
	return s.dialect.QuoteSimpleTableName(name)
}

// QuoteSimpleColumnName quotes a column name without a table prefix.
func (s *Schema) QuoteSimpleColumnName(name string) string {
	return s.dialect.QuoteSimpleColumnName(name)
}

// schemaConn lets metadata loaders query through commands that bypass the
// query cache.
type schemaConn struct {
	c *Connection
}

func (sc schemaConn) QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	cmd := sc.c.CreateCommand(query).WithContext(ctx).BindArgs(args...)
	cmd.internal = true
	defer cmd.Cancel()
	rows, err := cmd.QueryAll()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (sc schemaConn) QuoteTableName(name string) string  { return sc.c.QuoteTableName(name) }
func (sc schemaConn) QuoteColumnName(name string) string { return sc.c.QuoteColumnName(name) }
func (sc schemaConn) QuoteValue(s string) string         { return sc.c.QuoteValue(s) }
