// Package daokit is a data-access layer for PostgreSQL, MySQL and SQLite.
// It offers a fluent query model compiled per dialect, commands with named
// parameter binding and optional result caching, transactions, and lazily
// loaded, cached table metadata.
//
// Example:
//
//	conn := daokit.NewConnection("postgres", "postgres://localhost/app",
//	    daokit.WithTablePrefix("tbl_"))
//	defer conn.Close()
//
//	q := daokit.NewQuery().Select("id", "name").From("{{user}}").Where(daokit.HashExp{"id": 5})
//	row, err := conn.CreateCommand(q).QueryRow()
package daokit

import (
	"github.com/coregx/daokit/internal/cache"
	"github.com/coregx/daokit/internal/core"
	"github.com/coregx/daokit/internal/logger"
	"github.com/coregx/daokit/internal/schema"
	"github.com/coregx/daokit/internal/security"
	"github.com/coregx/daokit/internal/tracer"
)

type (
	// Connection owns one database session and creates commands on it.
	Connection = core.Connection
	// Option is a functional option for configuring a Connection.
	Option = core.Option
	// Config is the YAML form of a connection's settings.
	Config = core.Config
	// Command is a statement bound to a Connection.
	Command = core.Command
	// Transaction is a database transaction on one Connection.
	Transaction = core.Transaction
	// Query is a declarative SELECT statement.
	Query = core.Query
	// QueryBuilder compiles queries and DDL for one dialect.
	QueryBuilder = core.QueryBuilder
	// Schema is the metadata catalog of one engine.
	Schema = core.Schema
	// TableSchema describes one table.
	TableSchema = schema.TableSchema
	// ColumnSchema describes one table column.
	ColumnSchema = schema.ColumnSchema
	// ColumnDef is one column of a CREATE TABLE statement.
	ColumnDef = core.ColumnDef
	// JoinInfo is one JOIN clause of a Query.
	JoinInfo = core.JoinInfo

	// Params maps placeholder names to values.
	Params = core.Params
	// Row is one result row keyed by column name.
	Row = core.Row
	// Rows is a lazy cursor over a result set.
	Rows = core.Rows
	// Plan is the summarized EXPLAIN output of a statement.
	Plan = core.Plan

	// QueryEvent describes a finished statement.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after every statement.
	QueryHook = core.QueryHook

	// Dependency invalidates cached query results.
	Dependency = core.Dependency
	// SQLDependency fingerprints the scalar result of a query.
	SQLDependency = core.SQLDependency
	// FuncDependency fingerprints the value returned by a function.
	FuncDependency = core.FuncDependency
	// CacheStore is the storage shared by the query and schema caches.
	CacheStore = cache.Store

	// ExecError reports a failed statement.
	ExecError = core.ExecError
	// ConnError reports a failure to open the connection.
	ConnError = core.ConnError

	// Condition is a WHERE, HAVING or JOIN ON condition.
	Condition = core.Condition
	// Exp is a raw SQL fragment with its own values.
	Exp = core.Exp
	// HashExp matches every column to its value.
	HashExp = core.HashExp
	// CompareExp compares a column to a value.
	CompareExp = core.CompareExp
	// InExp is an IN or NOT IN condition.
	InExp = core.InExp
	// BetweenExp is a BETWEEN or NOT BETWEEN condition.
	BetweenExp = core.BetweenExp
	// LikeExp is a LIKE condition with automatic escaping.
	LikeExp = core.LikeExp
	// AndOrExp joins conditions with AND or OR.
	AndOrExp = core.AndOrExp
	// NotExp negates a condition.
	NotExp = core.NotExp
	// ExistsExp is an EXISTS or NOT EXISTS sub-query.
	ExistsExp = core.ExistsExp

	// Validator rejects statements matching injection rules.
	Validator = security.Validator
	// ValidatorOption configures a Validator.
	ValidatorOption = security.ValidatorOption
	// Auditor records executed statements.
	Auditor = security.Auditor

	// Logger receives daokit's structured log records.
	Logger = logger.Logger
	// Tracer opens profiling spans.
	Tracer = tracer.Tracer
)

// Audit levels for NewAuditor.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditAll    = security.AuditAll
)

// Join types for Query.Join.
const (
	InnerJoinType   = core.InnerJoinType
	LeftJoinType    = core.LeftJoinType
	RightJoinType   = core.RightJoinType
	CrossJoinType   = core.CrossJoinType
	NaturalJoinType = core.NaturalJoinType
)

// Errors returned by daokit operations.
var (
	ErrNoRows             = core.ErrNoRows
	ErrEmptyDSN           = core.ErrEmptyDSN
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	ErrNotSupported       = core.ErrNotSupported
	ErrConnectionClosed   = core.ErrConnectionClosed
	ErrTxInactive         = core.ErrTxInactive
	ErrTxActive           = core.ErrTxActive
	ErrMissingParam       = core.ErrMissingParam
	ErrInvalidQuery       = core.ErrInvalidQuery
	ErrUnsafeSQL          = core.ErrUnsafeSQL
)

// Re-export core functions.
var (
	NewConnection = core.NewConnection
	Open          = core.Open
	WrapDB        = core.WrapDB
	LoadConfig    = core.LoadConfig
	ParseConfig   = core.ParseConfig
	OpenConfig    = core.OpenConfig
	IsNoRows      = core.IsNoRows

	WithDB              = core.WithDB
	WithCredentials     = core.WithCredentials
	WithAttributes      = core.WithAttributes
	WithTablePrefix     = core.WithTablePrefix
	WithLogger          = core.WithLogger
	WithSensitiveFields = core.WithSensitiveFields
	WithTracer          = core.WithTracer
	WithCache           = core.WithCache
	WithSchemaCaching   = core.WithSchemaCaching
	WithQueryCaching    = core.WithQueryCaching
	WithCharset         = core.WithCharset
	WithInitSQL         = core.WithInitSQL
	WithParamLogging    = core.WithParamLogging
	WithProfiling       = core.WithProfiling
	WithDebug           = core.WithDebug
	WithQueryHook       = core.WithQueryHook
	WithValidator       = core.WithValidator
	WithAuditor         = core.WithAuditor
	WithMaxOpenConns    = core.WithMaxOpenConns
	WithMaxIdleConns    = core.WithMaxIdleConns

	// Query model
	NewQuery     = core.NewQuery
	QueryFromMap = core.QueryFromMap

	// Expression builders
	NewExp         = core.NewExp
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	In             = core.In
	NotIn          = core.NotIn
	Between        = core.Between
	NotBetween     = core.NotBetween
	Like           = core.Like
	NotLike        = core.NotLike
	OrLike         = core.OrLike
	OrNotLike      = core.OrNotLike
	And            = core.And
	Or             = core.Or
	Not            = core.Not
	Exists         = core.Exists
	NotExists      = core.NotExists

	// Collaborators
	NewMemoryStore  = cache.NewMemoryStore
	NewSlogLogger   = logger.NewSlogAdapter
	NewOtelTracer   = tracer.NewOtelTracer
	NewValidator    = security.NewValidator
	WithStrictRules = security.WithStrict
	WithValueChecks = security.WithValueChecks
	NewAuditor      = security.NewAuditor
	WithUser        = security.WithUser
	WithClientIP    = security.WithClientIP
	WithRequestID   = security.WithRequestID
)
