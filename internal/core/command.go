package core

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/daokit/internal/logger"
	"github.com/coregx/daokit/internal/tracer"
)

// Command is a statement bound to a Connection: either a copy of a Query,
// compiled on demand, or raw SQL. Raw SQL may use {{table}}, [[column]],
// :name, {:name} and ? markers; all are rewritten for the dialect before
// preparing.
//
// Example:
//
//	rows, err := conn.CreateCommand("SELECT * FROM {{user}} WHERE [[status]]=:status").
//	    Bind(daokit.Params{":status": 1}).
//	    QueryAll()
type Command struct {
	conn   *Connection
	query  *Query
	sql    string
	built  Params
	params Params
	args   []any
	ctx    context.Context

	stmt   *sql.Stmt
	stmtOn preparer
	plan   *bindPlan

	// internal marks statements daokit issues itself (metadata, dependency
	// and last-insert-id queries); they bypass the query cache and the validator.
	internal bool
}

// fetch strategies shared by the query helpers.
type fetchMode int

const (
	fetchCursor fetchMode = iota
	fetchAll
	fetchRow
	fetchScalar
	fetchColumn
)

var fetchOps = map[fetchMode]string{
	fetchCursor: "query",
	fetchAll:    "queryAll",
	fetchRow:    "queryRow",
	fetchScalar: "queryScalar",
	fetchColumn: "queryColumn",
}

// Connection returns the connection the command runs on.
func (c *Command) Connection() *Connection {
	return c.conn
}

// WithContext sets the context bounding driver calls.
func (c *Command) WithContext(ctx context.Context) *Command {
	c.ctx = ctx
	return c
}

func (c *Command) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// SQL returns the statement text, compiling the query on first use.
func (c *Command) SQL() (string, error) {
	if c.sql == "" && c.query != nil {
		qb, err := c.conn.QueryBuilder()
		if err != nil {
			return "", err
		}
		sql, params, err := qb.Build(c.query)
		if err != nil {
			return "", err
		}
		c.sql, c.built = sql, params
	}
	return c.sql, nil
}

// SetSQL replaces the statement text and drops the prepared statement.
// Bound values are kept.
func (c *Command) SetSQL(sql string) *Command {
	c.Cancel()
	c.sql = sql
	c.query = nil
	c.built = nil
	return c
}

// SetQuery replaces the statement with a copy of q and drops the prepared
// statement. Bound values are kept.
func (c *Command) SetQuery(q *Query) *Command {
	c.Cancel()
	c.sql = ""
	c.query = nil
	if q != nil {
		c.query = q.Clone()
	}
	c.built = nil
	return c
}

// GetQuery returns the query the command was created from, or nil.
func (c *Command) GetQuery() *Query {
	return c.query
}

// Bind merges named values; names may be given with or without the colon.
func (c *Command) Bind(params Params) *Command {
	for k, v := range params {
		c.params[normalizeParamName(k)] = v
	}
	return c
}

// BindValue binds one named value.
func (c *Command) BindValue(name string, value any) *Command {
	c.params[normalizeParamName(name)] = value
	return c
}

// BindArgs sets the values of positional "?" markers.
func (c *Command) BindArgs(args ...any) *Command {
	c.args = args
	return c
}

// Cancel drops the prepared statement.
func (c *Command) Cancel() {
	if c.stmt != nil {
		_ = c.stmt.Close()
	}
	c.stmt = nil
	c.stmtOn = nil
	c.plan = nil
}

// Reset returns the command to a blank, reusable state on the same connection.
func (c *Command) Reset() *Command {
	c.Cancel()
	*c = Command{conn: c.conn, ctx: c.ctx, params: Params{}}
	return c
}

// Prepare compiles and prepares the statement. It is idempotent while the
// executing handle (session or transaction) stays the same.
func (c *Command) Prepare() error {
	if err := c.conn.Open(c.context()); err != nil {
		return err
	}
	exec := c.conn.executor()
	if c.stmt != nil && c.stmtOn == exec {
		return nil
	}
	c.Cancel()

	sql, err := c.expandedSQL()
	if err != nil {
		return err
	}
	if !c.internal {
		if err := c.conn.checkSQL(c.context(), sql); err != nil {
			return err
		}
	}
	d, err := c.conn.Dialect()
	if err != nil {
		return err
	}
	plan := compileBindPlan(sql, d)
	stmt, err := exec.PrepareContext(c.context(), plan.sql)
	if err != nil {
		return c.execError("prepare", err, sql, nil)
	}
	c.stmt, c.stmtOn, c.plan = stmt, exec, plan
	return nil
}

func (c *Command) expandedSQL() (string, error) {
	sql, err := c.SQL()
	if err != nil {
		return "", err
	}
	if sql == "" {
		return "", ErrInvalidQuery
	}
	return c.conn.expandSQL(sql)
}

// mergedParams layers compiled query params, bound params and call-site params.
func (c *Command) mergedParams(extra []Params) Params {
	merged := make(Params, len(c.built)+len(c.params))
	for k, v := range c.built {
		merged[k] = v
	}
	for k, v := range c.params {
		merged[k] = v
	}
	for _, p := range extra {
		for k, v := range p {
			merged[normalizeParamName(k)] = v
		}
	}
	return merged
}

func (c *Command) log() logger.Logger {
	return c.conn.cmdLogger
}

func (c *Command) paramDump(sql string, params Params) string {
	s := c.conn.sanitizer
	dump := s.FormatParams(s.MaskParams(sql, params))
	if len(c.args) > 0 {
		dump += " " + s.FormatArgs(s.MaskArgs(sql, c.args))
	}
	return dump
}

func (c *Command) execError(op string, err error, sql string, params Params) error {
	e := &ExecError{Op: op, SQL: sql, Debug: c.conn.debug, Err: err}
	if d := c.conn.dialect; d != nil {
		if info, ok := d.ErrorInfo(err); ok {
			e.Info = info
		}
	}
	if params != nil && c.conn.paramLogging {
		e.Params = c.paramDump(sql, params)
	}
	c.log().Error("failed to "+op+" the SQL statement", "sql", sql, "error", err)
	return e
}

func (c *Command) startSpan(ctx context.Context, name string) (context.Context, tracer.Span) {
	if !c.conn.profiling {
		return ctx, nil
	}
	return c.conn.tracer.StartSpan(ctx, name)
}

func (c *Command) finishSpan(span tracer.Span, meta *tracer.QueryMetadata) {
	if span == nil {
		return
	}
	meta.Database = c.conn.driverName
	meta.Operation = tracer.DetectOperation(meta.SQL)
	if tx := c.conn.CurrentTransaction(); tx != nil {
		meta.Transaction = tx.ID
	}
	tracer.AddQueryAttributes(span, meta)
	span.End()
}

// Execute runs a non-query statement and returns the number of affected
// rows. params are merged over the bound values for this call only.
func (c *Command) Execute(params ...Params) (int64, error) {
	merged := c.mergedParams(params)
	sql, err := c.expandedSQL()
	if err != nil {
		return 0, err
	}
	log := c.log()
	if c.conn.paramLogging {
		log.Debug("executing SQL", "sql", sql, "params", c.paramDump(sql, merged))
	} else {
		log.Debug("executing SQL", "sql", sql)
	}

	ctx, span := c.startSpan(c.context(), tracer.SpanExecute)
	start := time.Now()
	affected, err := c.execute(ctx, merged)
	elapsed := time.Since(start)

	c.finishSpan(span, &tracer.QueryMetadata{
		SQL:          sql,
		ParamCount:   len(merged) + len(c.args),
		Duration:     elapsed,
		RowsAffected: affected,
		Error:        err,
	})
	c.conn.invokeHook(ctx, QueryEvent{
		SQL:          sql,
		Params:       merged,
		Args:         c.args,
		Duration:     elapsed,
		RowsAffected: affected,
		Error:        err,
		Operation:    tracer.DetectOperation(sql),
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (c *Command) execute(ctx context.Context, params Params) (int64, error) {
	if err := c.Prepare(); err != nil {
		return 0, err
	}
	sql := c.plan.sql
	values, err := c.plan.values(params, c.args)
	if err != nil {
		return 0, c.execError("execute", err, sql, params)
	}
	if err := c.checkValues(ctx, values); err != nil {
		return 0, err
	}
	res, err := c.stmt.ExecContext(ctx, values...)
	if err != nil {
		return 0, c.execError("execute", err, sql, params)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.execError("execute", err, sql, params)
	}
	return n, nil
}

// Query runs the statement and returns a lazy cursor. The cursor is never
// served from the query cache.
func (c *Command) Query(params ...Params) (*Rows, error) {
	v, err := c.queryInternal(fetchCursor, params)
	if err != nil {
		return nil, err
	}
	return v.(*Rows), nil
}

// QueryAll returns every row.
func (c *Command) QueryAll(params ...Params) ([]Row, error) {
	v, err := c.queryInternal(fetchAll, params)
	if err != nil {
		return nil, err
	}
	return v.([]Row), nil
}

// QueryRow returns the first row, or ErrNoRows.
func (c *Command) QueryRow(params ...Params) (Row, error) {
	v, err := c.queryInternal(fetchRow, params)
	if err != nil {
		return nil, err
	}
	return v.(Row), nil
}

// QueryScalar returns the first column of the first row, or ErrNoRows.
// Large objects are read fully into a string.
func (c *Command) QueryScalar(params ...Params) (any, error) {
	return c.queryInternal(fetchScalar, params)
}

// QueryColumn returns the first column of every row.
func (c *Command) QueryColumn(params ...Params) ([]any, error) {
	v, err := c.queryInternal(fetchColumn, params)
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

func (c *Command) queryInternal(mode fetchMode, extra []Params) (any, error) {
	op := fetchOps[mode]
	merged := c.mergedParams(extra)
	sql, err := c.expandedSQL()
	if err != nil {
		return nil, err
	}
	log := c.log()
	if c.conn.paramLogging {
		log.Debug("querying SQL", "method", op, "sql", sql, "params", c.paramDump(sql, merged))
	} else {
		log.Debug("querying SQL", "method", op, "sql", sql)
	}

	ctx := c.context()
	var cacheKey string
	var dep Dependency
	if mode != fetchCursor && !c.internal && c.conn.queryCacheActive() {
		c.conn.queryCachingCount--
		dep = c.conn.queryCachingDependency
		if cacheKey, err = queryCacheKey(c.conn, sql, merged, c.args); err != nil {
			log.Warn("query cache key failed", "error", err)
			cacheKey = ""
		} else if rs := c.conn.cacheLookup(ctx, cacheKey); rs != nil {
			log.Debug("query result served from cache", "sql", sql)
			c.conn.invokeHook(ctx, QueryEvent{
				SQL: sql, Params: merged, Args: c.args, Cached: true,
				RowsReturned: len(rs.Rows), Operation: tracer.DetectOperation(sql),
			})
			return project(rs, mode)
		}
	}

	ctx, span := c.startSpan(ctx, tracer.SpanQuery)
	start := time.Now()
	meta := &tracer.QueryMetadata{SQL: sql, ParamCount: len(merged) + len(c.args)}
	event := QueryEvent{SQL: sql, Params: merged, Args: c.args, Operation: tracer.DetectOperation(sql)}
	done := func(rowsRead int, err error) {
		meta.Duration = time.Since(start)
		meta.RowsReturned = rowsRead
		meta.Error = err
		c.finishSpan(span, meta)
		event.Duration, event.RowsReturned, event.Error = meta.Duration, rowsRead, err
		c.conn.invokeHook(ctx, event)
	}

	rows, err := c.run(ctx, op, merged)
	if err != nil {
		done(0, err)
		return nil, err
	}

	if mode == fetchCursor {
		return &Rows{rows: rows, done: done}, nil
	}

	limit := 0
	if mode == fetchRow || mode == fetchScalar {
		limit = 1
	}
	rs, err := readAll(rows, limit)
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		err = c.execError(op, err, sql, merged)
		done(0, err)
		return nil, err
	}
	done(len(rs.Rows), nil)

	if cacheKey != "" {
		c.conn.cacheStore(ctx, cacheKey, rs, dep)
	}
	return project(rs, mode)
}

func (c *Command) run(ctx context.Context, op string, params Params) (*sql.Rows, error) {
	if err := c.Prepare(); err != nil {
		return nil, err
	}
	values, err := c.plan.values(params, c.args)
	if err != nil {
		return nil, c.execError(op, err, c.plan.sql, params)
	}
	if err := c.checkValues(ctx, values); err != nil {
		return nil, err
	}
	rows, err := c.stmt.QueryContext(ctx, values...)
	if err != nil {
		return nil, c.execError(op, err, c.plan.sql, params)
	}
	return rows, nil
}

func (c *Command) checkValues(ctx context.Context, values []any) error {
	if c.internal {
		return nil
	}
	return c.conn.checkValues(ctx, c.plan.sql, values)
}

// project shapes a result set for a fetch mode.
func project(rs *resultSet, mode fetchMode) (any, error) {
	switch mode {
	case fetchRow:
		if len(rs.Rows) == 0 {
			return nil, ErrNoRows
		}
		return rs.row(0), nil
	case fetchScalar:
		if len(rs.Rows) == 0 || len(rs.Rows[0]) == 0 {
			return nil, ErrNoRows
		}
		return rs.Rows[0][0], nil
	case fetchColumn:
		return rs.column(), nil
	default:
		return rs.all(), nil
	}
}

// IsNoRows reports whether err signals an empty result.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}
