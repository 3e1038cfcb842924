// Package core provides the data-access engine of daokit: connections,
// commands, the query model and its dialect-aware SQL builder, schema
// metadata and transactions.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coregx/daokit/internal/cache"
	"github.com/coregx/daokit/internal/dialects"
	"github.com/coregx/daokit/internal/logger"
	"github.com/coregx/daokit/internal/security"
	"github.com/coregx/daokit/internal/tracer"
)

// Connection owns one dedicated database session drawn from an owned or
// wrapped *sql.DB, and creates the commands, schema and transactions that
// use it. A Connection must not be used by several goroutines at once.
type Connection struct {
	dsn        string
	driverName string
	username   string
	password   string
	attributes map[string]string

	tablePrefix           string
	schemaCachingDuration time.Duration
	schemaCachingExclude  []string

	queryCachingDuration   time.Duration
	queryCachingDependency Dependency
	queryCachingCount      int

	charset      string
	initSQLs     []string
	paramLogging bool
	profiling    bool
	debug        bool
	maxOpenConns int
	maxIdleConns int

	baseLog   logger.Logger
	logger    logger.Logger
	txLogger  logger.Logger
	cmdLogger logger.Logger
	sanitizer *logger.Sanitizer
	tracer    tracer.Tracer
	queryHook QueryHook
	store     cache.Store
	validator *security.Validator
	auditor   *security.Auditor

	db      *sql.DB
	ownsDB  bool
	conn    *sql.Conn
	dialect dialects.Dialect
	schema  *Schema
	tx      *Transaction
}

// Option is a functional option for configuring a Connection.
type Option func(*Connection)

// WithDB makes the connection draw its session from an existing pool
// instead of opening one. The pool is left open by Close.
func WithDB(db *sql.DB) Option {
	return func(c *Connection) {
		c.db = db
	}
}

// WithCredentials sets the username and password merged into the DSN.
func WithCredentials(username, password string) Option {
	return func(c *Connection) {
		c.username = username
		c.password = password
	}
}

// WithAttributes sets driver DSN options, e.g. {"sslmode": "disable"}.
func WithAttributes(attrs map[string]string) Option {
	return func(c *Connection) {
		c.attributes = attrs
	}
}

// WithTablePrefix sets the prefix substituted into {{table}} names.
func WithTablePrefix(prefix string) Option {
	return func(c *Connection) {
		c.tablePrefix = prefix
	}
}

// WithLogger sets the logger. The default discards records.
func WithLogger(l logger.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSensitiveFields replaces the parameter names masked in log records.
func WithSensitiveFields(fields []string) Option {
	return func(c *Connection) {
		c.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer sets the tracer used when profiling is enabled.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Connection) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithCache sets the store used for query and schema caching.
func WithCache(store cache.Store) Option {
	return func(c *Connection) {
		c.store = store
	}
}

// WithSchemaCaching sets the TTL of cached table metadata and the tables
// never cached. A negative duration disables schema caching.
func WithSchemaCaching(duration time.Duration, exclude ...string) Option {
	return func(c *Connection) {
		c.schemaCachingDuration = duration
		c.schemaCachingExclude = exclude
	}
}

// WithQueryCaching enables caching of the next count query results.
func WithQueryCaching(duration time.Duration, dependency Dependency, count int) Option {
	return func(c *Connection) {
		c.Cache(duration, dependency, count)
	}
}

// WithCharset sets the client character set selected after opening.
func WithCharset(charset string) Option {
	return func(c *Connection) {
		c.charset = charset
	}
}

// WithInitSQL adds statements executed right after the connection opens.
func WithInitSQL(statements ...string) Option {
	return func(c *Connection) {
		c.initSQLs = append(c.initSQLs, statements...)
	}
}

// WithParamLogging includes masked parameter values in log records.
func WithParamLogging(enabled bool) Option {
	return func(c *Connection) {
		c.paramLogging = enabled
	}
}

// WithProfiling opens a tracer span around every statement.
func WithProfiling(enabled bool) Option {
	return func(c *Connection) {
		c.profiling = enabled
	}
}

// WithDebug includes SQL text and driver detail in error messages.
func WithDebug(enabled bool) Option {
	return func(c *Connection) {
		c.debug = enabled
	}
}

// WithQueryHook sets a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(c *Connection) {
		c.queryHook = hook
	}
}

// WithValidator rejects statements and bound values matching the
// validator's injection rules before they reach the driver.
func WithValidator(v *security.Validator) Option {
	return func(c *Connection) {
		c.validator = v
	}
}

// WithAuditor records executed and rejected statements.
func WithAuditor(a *security.Auditor) Option {
	return func(c *Connection) {
		c.auditor = a
	}
}

// WithMaxOpenConns sets the maximum number of open connections of an owned pool.
func WithMaxOpenConns(n int) Option {
	return func(c *Connection) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections of an owned pool.
func WithMaxIdleConns(n int) Option {
	return func(c *Connection) {
		c.maxIdleConns = n
	}
}

// NewConnection creates a closed connection. driverName may be empty when
// dsn starts with a registered "driver:" prefix, e.g. "sqlite::memory:".
// Nothing is dialed until Open or the first command.
func NewConnection(driverName, dsn string, opts ...Option) *Connection {
	if prefix, rest, ok := strings.Cut(dsn, ":"); ok && isRegisteredDriver(prefix) {
		if driverName == "" {
			driverName = prefix
		}
		if !strings.HasPrefix(rest, "//") {
			dsn = rest
		}
	}
	c := &Connection{
		dsn:        dsn,
		driverName: driverName,
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseLog = c.logger
	c.txLogger = logger.WithCategory(c.baseLog, logger.CategoryTransaction)
	c.cmdLogger = logger.WithCategory(c.baseLog, logger.CategoryCommand)
	c.logger = logger.WithCategory(c.baseLog, logger.CategoryConnection)
	return c
}

// Open creates and opens a connection.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Connection, error) {
	c := NewConnection(driverName, dsn, opts...)
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// WrapDB creates a connection over an existing pool. The dialect is
// detected from the pool's driver. Close releases the session but leaves
// the pool open.
func WrapDB(db *sql.DB, opts ...Option) (*Connection, error) {
	name, d, err := dialects.Detect(db.Driver())
	if err != nil {
		return nil, err
	}
	c := NewConnection(name, "", opts...)
	c.db = db
	c.dialect = d
	return c, nil
}

func isRegisteredDriver(name string) bool {
	if name == "" {
		return false
	}
	_, err := dialects.Get(name)
	return err == nil
}

// sqlDriverName maps dialect aliases to database/sql driver names.
func sqlDriverName(name string) string {
	if name == "pgsql" {
		return "postgres"
	}
	return name
}

// DriverName returns the dialect name the connection was configured with.
func (c *Connection) DriverName() string {
	return c.driverName
}

// DSN returns the connection string without the driver prefix.
func (c *Connection) DSN() string {
	return c.dsn
}

// IsOpen reports whether the connection holds a live session.
func (c *Connection) IsOpen() bool {
	return c.conn != nil
}

// Dialect returns the connection's dialect; it does not open the connection.
func (c *Connection) Dialect() (dialects.Dialect, error) {
	if c.dialect != nil {
		return c.dialect, nil
	}
	if c.driverName == "" {
		return nil, fmt.Errorf("%w: no driver name", ErrUnsupportedDialect)
	}
	d, err := dialects.Get(c.driverName)
	if err != nil {
		return nil, err
	}
	c.dialect = d
	return d, nil
}

// Open establishes the session. It is a no-op when already open.
func (c *Connection) Open(ctx context.Context) (err error) {
	if c.conn != nil {
		return nil
	}

	if c.profiling {
		var span tracer.Span
		ctx, span = c.tracer.StartSpan(ctx, tracer.SpanOpen)
		defer func() {
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}()
	}

	d, err := c.Dialect()
	if err != nil {
		return err
	}
	if c.db == nil {
		if c.dsn == "" {
			return ErrEmptyDSN
		}
		dsn, err := d.BuildDSN(c.dsn, c.username, c.password, c.attributes)
		if err != nil {
			return c.connError(err)
		}
		c.logger.Info("opening DB connection", "driver", c.driverName)
		db, err := sql.Open(sqlDriverName(c.driverName), dsn)
		if err != nil {
			return c.connError(err)
		}
		if c.maxOpenConns > 0 {
			db.SetMaxOpenConns(c.maxOpenConns)
		}
		if c.maxIdleConns > 0 {
			db.SetMaxIdleConns(c.maxIdleConns)
		}
		c.db = db
		c.ownsDB = true
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		c.releasePool()
		return c.connError(err)
	}
	c.conn = conn

	if err := c.initConnection(ctx); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.releasePool()
		return c.connError(err)
	}
	return nil
}

// initConnection selects the charset and runs the configured init statements.
func (c *Connection) initConnection(ctx context.Context) error {
	statements := c.initSQLs
	if c.charset != "" {
		if stmt := c.dialect.CharsetSQL(c.charset); stmt != "" {
			statements = append([]string{stmt}, statements...)
		}
	}
	for _, stmt := range statements {
		if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init statement %q: %w", stmt, err)
		}
	}
	return nil
}

func (c *Connection) connError(err error) error {
	c.logger.Error("failed to open DB connection", "driver", c.driverName, "error", err)
	return &ConnError{Driver: c.driverName, Debug: c.debug, Err: err}
}

func (c *Connection) releasePool() {
	if c.ownsDB && c.db != nil {
		_ = c.db.Close()
		c.db = nil
		c.ownsDB = false
	}
}

// Close rolls back an active transaction, releases the session and drops
// the schema. An owned pool is closed too. Close on a closed connection is
// a no-op.
func (c *Connection) Close() error {
	var errs []error
	if c.tx != nil && c.tx.active {
		if err := c.tx.Rollback(); err != nil {
			errs = append(errs, err)
		}
	}
	c.tx = nil
	c.schema = nil
	if c.conn != nil {
		c.logger.Info("closing DB connection", "driver", c.driverName)
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	if c.ownsDB && c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
		c.db = nil
		c.ownsDB = false
	}
	return errors.Join(errs...)
}

// Schema returns the metadata catalog of the connection's engine. It does
// not open the connection; an unknown driver yields ErrUnsupportedDialect.
func (c *Connection) Schema() (*Schema, error) {
	if c.schema != nil {
		return c.schema, nil
	}
	d, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	s, err := newSchema(c, d)
	if err != nil {
		return nil, err
	}
	c.schema = s
	return s, nil
}

// QueryBuilder returns the schema's query builder.
func (c *Connection) QueryBuilder() (*QueryBuilder, error) {
	s, err := c.Schema()
	if err != nil {
		return nil, err
	}
	return s.QueryBuilder(), nil
}

// CreateCommand creates a command for a raw SQL string, a *Query (copied),
// or nothing.
func (c *Connection) CreateCommand(query any) *Command {
	cmd := &Command{conn: c, params: Params{}}
	switch q := query.(type) {
	case nil:
	case string:
		cmd.sql = q
	case *Query:
		cmd.query = q.Clone()
	default:
		panic(fmt.Sprintf("CreateCommand expects string or *Query, got %T", query))
	}
	return cmd
}

// Cache configures caching for the next count query results. duration is
// the TTL (0 never expires); dependency may be nil.
func (c *Connection) Cache(duration time.Duration, dependency Dependency, count int) *Connection {
	c.queryCachingDuration = duration
	c.queryCachingDependency = dependency
	c.queryCachingCount = count
	return c
}

// BeginTransaction starts a transaction, opening the connection if needed.
// Commands created by the connection run inside it while it is active.
func (c *Connection) BeginTransaction(ctx context.Context) (*Transaction, error) {
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	if c.tx != nil && c.tx.active {
		return nil, ErrTxActive
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		c.txLogger.Error("failed to begin transaction", "error", err)
		return nil, WrapError(err, "begin transaction")
	}
	c.tx = newTransaction(c, tx)
	c.txLogger.Debug("begin transaction", "tx", c.tx.ID)
	return c.tx, nil
}

// CurrentTransaction returns the active transaction, or nil.
func (c *Connection) CurrentTransaction() *Transaction {
	if c.tx != nil && c.tx.active {
		return c.tx
	}
	return nil
}

// QuoteValue quotes a string literal for the connection's dialect.
func (c *Connection) QuoteValue(s string) string {
	if d, err := c.Dialect(); err == nil {
		return d.QuoteValue(s)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteTableName quotes a table name, splitting schema prefixes.
func (c *Connection) QuoteTableName(name string) string {
	if qb, err := c.QueryBuilder(); err == nil {
		return qb.QuoteTableName(name)
	}
	return name
}

// QuoteColumnName quotes a column name, splitting table prefixes.
func (c *Connection) QuoteColumnName(name string) string {
	if qb, err := c.QueryBuilder(); err == nil {
		return qb.QuoteColumnName(name)
	}
	return name
}

// LastInsertID returns the key generated by the last insert on this
// session. sequence names the PostgreSQL sequence and is ignored elsewhere.
// It returns ErrConnectionClosed when no session is open.
func (c *Connection) LastInsertID(ctx context.Context, sequence string) (string, error) {
	if !c.IsOpen() {
		return "", ErrConnectionClosed
	}
	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	cmd := c.CreateCommand(d.LastInsertIDSQL(sequence)).WithContext(ctx)
	cmd.internal = true
	v, err := cmd.QueryScalar()
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

// executor returns the handle commands prepare on: the active transaction
// or the session.
func (c *Connection) executor() preparer {
	if c.tx != nil && c.tx.active {
		return c.tx.tx
	}
	return c.conn
}

// preparer is implemented by *sql.Conn and *sql.Tx.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// queryCacheActive reports whether the next query may use the cache.
func (c *Connection) queryCacheActive() bool {
	return c.queryCachingCount > 0 && c.queryCachingDuration >= 0 && c.store != nil
}

// expandSQL resolves {{table}} and [[column]] markers.
func (c *Connection) expandSQL(sql string) (string, error) {
	qb, err := c.QueryBuilder()
	if err != nil {
		return "", err
	}
	return expandIdentifiers(sql, c.tablePrefix, qb.QuoteTableName, qb.QuoteColumnName), nil
}

func (c *Connection) checkSQL(ctx context.Context, sql string) error {
	if c.validator == nil {
		return nil
	}
	return c.rejected(ctx, sql, c.validator.CheckSQL(sql))
}

func (c *Connection) checkValues(ctx context.Context, sql string, values []any) error {
	if c.validator == nil {
		return nil
	}
	return c.rejected(ctx, sql, c.validator.CheckValues(values))
}

func (c *Connection) rejected(ctx context.Context, sql string, err error) error {
	if err == nil {
		return nil
	}
	c.cmdLogger.Warn("statement rejected", "sql", sql, "error", err)
	if c.auditor != nil {
		c.auditor.Rejected(ctx, sql, err)
	}
	return err
}
