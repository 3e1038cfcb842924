package core

import (
	"context"
	"sort"
	"time"

	"github.com/coregx/daokit/internal/security"
)

// QueryEvent contains information about an executed statement.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the statement text after {{table}}/[[column]] expansion
	SQL string
	// Params are the named values bound to the statement
	Params Params
	// Args are the positional values bound to the statement
	Args []any
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected (for Execute)
	RowsAffected int64
	// RowsReturned is the number of rows read (for the fetch helpers)
	RowsReturned int
	// Cached reports that the result was served from the query cache
	Cached bool
	// Error is any error that occurred during execution (nil on success)
	Error error
	// Operation is the statement kind (SELECT, INSERT, UPDATE, DELETE, DDL, ...)
	Operation string
}

// QueryHook is a callback function invoked after each statement.
// Use this for logging, metrics, distributed tracing, or debugging.
//
// Example:
//
//	conn := daokit.NewConnection("postgres", dsn,
//	    daokit.WithQueryHook(func(ctx context.Context, e daokit.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// invokeHook reports a finished statement to the auditor and the query hook.
func (c *Connection) invokeHook(ctx context.Context, event QueryEvent) {
	if c.auditor != nil {
		c.auditor.Record(ctx, security.Entry{
			Operation:    event.Operation,
			SQL:          event.SQL,
			Values:       eventValues(event),
			RowsAffected: event.RowsAffected,
			RowsReturned: event.RowsReturned,
			Duration:     event.Duration,
			Cached:       event.Cached,
			Err:          event.Error,
		})
	}
	if c.queryHook != nil {
		c.queryHook(ctx, event)
	}
}

// eventValues lists named values in name order followed by positional ones.
func eventValues(e QueryEvent) []any {
	names := make([]string, 0, len(e.Params))
	for k := range e.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	values := make([]any, 0, len(names)+len(e.Args))
	for _, k := range names {
		values = append(values, e.Params[k])
	}
	return append(values, e.Args...)
}
