package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/coregx/daokit/internal/cache"
	"github.com/coregx/daokit/internal/logger"
)

// Conn is the connection surface metadata loaders need. Queries run through
// it must bypass the query cache.
type Conn interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	QuoteTableName(name string) string
	QuoteColumnName(name string) string
	QuoteValue(s string) string
}

// Loader reads table metadata from one database engine.
type Loader interface {
	// LoadTable returns nil, nil when the table does not exist.
	LoadTable(ctx context.Context, conn Conn, name string) (*TableSchema, error)
	// TableNames lists the tables of schema, or of the default schema when empty.
	TableNames(ctx context.Context, conn Conn, schema string) ([]string, error)
}

// CatalogConfig configures metadata caching for a Catalog.
type CatalogConfig struct {
	// Key identifies the database, typically driver/dsn/username.
	Key string
	// TablePrefix replaces the leading marker in "{{name}}" table names.
	TablePrefix string
	Store       cache.Store
	// Duration is the cache TTL; negative disables the shared cache.
	Duration time.Duration
	// Exclude lists table names that are never cached in Store.
	Exclude []string
	Logger  logger.Logger
}

// Catalog loads table metadata on demand and caches it in process and,
// when configured, in a shared Store.
type Catalog struct {
	loader Loader
	conn   Conn
	cfg    CatalogConfig
	log    logger.Logger

	tables     map[string]*TableSchema
	tableNames map[string][]string
	cachedKeys map[string]struct{}
}

// NewCatalog creates a catalog reading through loader and conn.
func NewCatalog(loader Loader, conn Conn, cfg CatalogConfig) *Catalog {
	if cfg.Logger == nil {
		cfg.Logger = &logger.NoopLogger{}
	}
	return &Catalog{
		loader:     loader,
		conn:       conn,
		cfg:        cfg,
		log:        logger.WithCategory(cfg.Logger, logger.CategorySchema),
		tables:     make(map[string]*TableSchema),
		tableNames: make(map[string][]string),
		cachedKeys: make(map[string]struct{}),
	}
}

var prefixRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// RealName resolves "{{name}}" to the prefixed table name.
func (c *Catalog) RealName(name string) string {
	if !strings.Contains(name, "{{") {
		return name
	}
	return prefixRe.ReplaceAllString(name, strings.ReplaceAll(c.cfg.TablePrefix, "$", "$$")+"$1")
}

func (c *Catalog) cacheable(name string) bool {
	if c.cfg.Store == nil || c.cfg.Duration < 0 {
		return false
	}
	for _, ex := range c.cfg.Exclude {
		if ex == name {
			return false
		}
	}
	return true
}

// CacheKey returns the shared-cache key for a table.
func (c *Catalog) CacheKey(name string) string {
	return "daokit.schema/" + c.cfg.Key + "/" + name
}

// TableSchema returns the metadata of the named table, or nil when it does
// not exist.
func (c *Catalog) TableSchema(ctx context.Context, name string) (*TableSchema, error) {
	name = c.RealName(name)
	if t, ok := c.tables[name]; ok {
		return t, nil
	}

	if !c.cacheable(name) {
		t, err := c.load(ctx, name)
		if err != nil || t == nil {
			return t, err
		}
		c.tables[name] = t
		return t, nil
	}

	key := c.CacheKey(name)
	if t := c.fromStore(ctx, key); t != nil {
		c.tables[name] = t
		return t, nil
	}

	t, err := c.load(ctx, name)
	if err != nil || t == nil {
		return t, err
	}
	c.tables[name] = t

	data, err := cache.Encode(t)
	if err == nil {
		err = c.cfg.Store.Set(ctx, key, data, c.cfg.Duration)
	}
	if err != nil {
		c.log.Warn("failed to cache table schema", "table", name, "error", err)
	} else {
		c.cachedKeys[key] = struct{}{}
	}
	return t, nil
}

func (c *Catalog) fromStore(ctx context.Context, key string) *TableSchema {
	data, err := c.cfg.Store.Get(ctx, key)
	if err != nil {
		c.log.Warn("failed to read cached table schema", "key", key, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	var t TableSchema
	if err := cache.Decode(data, &t); err != nil {
		c.log.Warn("discarding undecodable table schema", "key", key, "error", err)
		return nil
	}
	t.reindex()
	c.cachedKeys[key] = struct{}{}
	return &t
}

func (c *Catalog) load(ctx context.Context, name string) (*TableSchema, error) {
	c.log.Debug("loading table schema", "table", name)
	t, err := c.loader.LoadTable(ctx, c.conn, name)
	if err != nil {
		c.log.Error("failed to load table schema", "table", name, "error", err)
		return nil, fmt.Errorf("load schema of table %q: %w", name, err)
	}
	if t != nil {
		t.reindex()
	}
	return t, nil
}

// TableNames lists the tables in schemaName. Results are cached until Refresh.
func (c *Catalog) TableNames(ctx context.Context, schemaName string) ([]string, error) {
	if names, ok := c.tableNames[schemaName]; ok {
		return names, nil
	}
	names, err := c.loader.TableNames(ctx, c.conn, schemaName)
	if err != nil {
		c.log.Error("failed to list tables", "schema", schemaName, "error", err)
		return nil, fmt.Errorf("list tables: %w", err)
	}
	c.tableNames[schemaName] = names
	return names, nil
}

// TableSchemas returns the metadata of every table in schemaName.
func (c *Catalog) TableSchemas(ctx context.Context, schemaName string) ([]*TableSchema, error) {
	names, err := c.TableNames(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	tables := make([]*TableSchema, 0, len(names))
	for _, name := range names {
		if schemaName != "" {
			name = schemaName + "." + name
		}
		t, err := c.TableSchema(ctx, name)
		if err != nil {
			return nil, err
		}
		if t != nil {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// Refresh drops all loaded metadata and evicts the catalog's Store keys.
// A Store implementing cache.PrefixDeleter loses every table entry under
// the catalog's Key; any other Store loses the keys this catalog wrote or read.
func (c *Catalog) Refresh(ctx context.Context) error {
	var firstErr error
	if pd, ok := c.cfg.Store.(cache.PrefixDeleter); ok {
		firstErr = pd.DeletePrefix(ctx, c.CacheKey(""))
	} else if c.cfg.Store != nil {
		for key := range c.cachedKeys {
			if err := c.cfg.Store.Delete(ctx, key); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	c.tables = make(map[string]*TableSchema)
	c.tableNames = make(map[string][]string)
	c.cachedKeys = make(map[string]struct{})
	c.log.Info("table schemas refreshed")
	return firstErr
}
