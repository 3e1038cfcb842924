package core

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/coregx/daokit/internal/dialects"
	"github.com/coregx/daokit/internal/security"
)

// Predefined errors returned by daokit operations.
var (
	// ErrNoRows is returned by QueryRow/QueryScalar style helpers when the
	// result set is empty. It is sql.ErrNoRows so either sentinel matches.
	ErrNoRows = sql.ErrNoRows
	// ErrEmptyDSN is returned by Open when no DSN or handle is configured.
	ErrEmptyDSN = errors.New("connection string cannot be empty")
	// ErrUnsupportedDialect is returned when no dialect is registered for the driver.
	ErrUnsupportedDialect = dialects.ErrUnsupported
	// ErrNotSupported is returned when the dialect cannot express a statement.
	ErrNotSupported = dialects.ErrNotSupported
	// ErrConnectionClosed is returned when an operation needs an open connection.
	ErrConnectionClosed = errors.New("connection is not open")
	// ErrTxInactive is returned by Commit/Rollback on a finished transaction.
	ErrTxInactive = errors.New("transaction is inactive and cannot perform commit or roll back operations")
	// ErrTxActive is returned when a transaction is started while another is active.
	ErrTxActive = errors.New("a transaction is already active on this connection")
	// ErrMissingParam is returned when a placeholder has no bound value.
	ErrMissingParam = errors.New("missing parameter")
	// ErrInvalidQuery is returned for malformed queries and builder input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnsafeSQL is returned when the connection's validator rejects a statement.
	ErrUnsafeSQL = security.ErrUnsafeSQL
)

// ExecError reports a failed statement. The driver message is always part
// of Error(); the SQL text and parameter dump only when Debug is set.
type ExecError struct {
	// Op is "execute" or the fetch helper name (queryAll, queryRow, ...).
	Op     string
	Info   dialects.ErrorInfo
	SQL    string
	Params string
	Debug  bool
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("daokit: failed to %s the SQL statement: %s", e.Op, e.message())
	if e.Debug {
		msg += ". The SQL statement executed was: " + e.SQL
		if e.Params != "" {
			msg += ". Bound with " + e.Params
		}
	}
	return msg
}

func (e *ExecError) message() string {
	if e.Info.Message != "" {
		return e.Info.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *ExecError) Unwrap() error { return e.Err }

// ConnError reports a failure to open the connection. Driver detail is only
// shown in debug mode.
type ConnError struct {
	Driver string
	Debug  bool
	Err    error
}

func (e *ConnError) Error() string {
	if e.Debug && e.Err != nil {
		return "daokit: failed to open the DB connection: " + e.Err.Error()
	}
	return "daokit: failed to open the DB connection"
}

func (e *ConnError) Unwrap() error { return e.Err }

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
