package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/coregx/daokit/internal/cache"
)

// Dependency invalidates cached query results. Its fingerprint is stored
// with each entry; an entry whose dependency now reports a different
// fingerprint is treated as a miss.
type Dependency interface {
	Fingerprint(ctx context.Context, conn *Connection) (string, error)
}

// SQLDependency fingerprints the scalar result of a query, e.g.
// "SELECT MAX(updated_at) FROM {{post}}". The query bypasses the query cache.
type SQLDependency struct {
	SQL    string
	Params Params
}

// Fingerprint runs the dependency query.
func (d *SQLDependency) Fingerprint(ctx context.Context, conn *Connection) (string, error) {
	cmd := conn.CreateCommand(d.SQL).WithContext(ctx).Bind(d.Params)
	cmd.internal = true
	v, err := cmd.QueryScalar()
	if err != nil && !errors.Is(err, ErrNoRows) {
		return "", err
	}
	return fmt.Sprint(v), nil
}

// FuncDependency fingerprints the value returned by a function.
type FuncDependency func(ctx context.Context) (string, error)

// Fingerprint calls the function.
func (f FuncDependency) Fingerprint(ctx context.Context, _ *Connection) (string, error) {
	return f(ctx)
}

const queryCachePrefix = "daokit.query/"

// cachedResult is the stored form of a cached query result.
type cachedResult struct {
	Result      resultSet `msgpack:"rs"`
	Fingerprint string    `msgpack:"fp"`
	HasDep      bool      `msgpack:"dep"`
}

// queryCacheKey derives the cache key from the connection identity, the
// statement and its values.
func queryCacheKey(c *Connection, sql string, params Params, args []any) (string, error) {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make([]any, 0, 2*len(names))
	for _, k := range names {
		pairs = append(pairs, k, params[k])
	}

	data, err := cache.Encode([]any{c.driverName, c.dsn, c.username, sql, pairs, args})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return queryCachePrefix + hex.EncodeToString(sum[:]), nil
}

// cacheLookup returns a cached result, or nil on a miss.
func (c *Connection) cacheLookup(ctx context.Context, key string) *resultSet {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("query cache read failed", "key", key, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	var entry cachedResult
	if err := cache.Decode(data, &entry); err != nil {
		c.logger.Warn("query cache entry is corrupt", "key", key, "error", err)
		return nil
	}
	if entry.HasDep {
		if c.queryCachingDependency == nil {
			return nil
		}
		fp, err := c.queryCachingDependency.Fingerprint(ctx, c)
		if err != nil || fp != entry.Fingerprint {
			return nil
		}
	}
	return &entry.Result
}

// cacheStore writes a result with the configured TTL and dependency.
func (c *Connection) cacheStore(ctx context.Context, key string, rs *resultSet, dep Dependency) {
	entry := cachedResult{Result: *rs}
	if dep != nil {
		fp, err := dep.Fingerprint(ctx, c)
		if err != nil {
			c.logger.Warn("query cache dependency failed", "error", err)
			return
		}
		entry.Fingerprint = fp
		entry.HasDep = true
	}
	data, err := cache.Encode(&entry)
	if err != nil {
		c.logger.Warn("query cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.queryCachingDuration); err != nil {
		c.logger.Warn("query cache write failed", "key", key, "error", err)
	}
}
