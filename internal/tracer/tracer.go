// Package tracer provides the profiling abstraction used by daokit.
// Commands and transactions open spans when profiling is enabled; OpenTelemetry
// is supported out of the box.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names opened by the data-access layer.
const (
	SpanExecute  = "daokit.command.execute"
	SpanQuery    = "daokit.command.query"
	SpanOpen     = "daokit.connection.open"
	SpanCommit   = "daokit.transaction.commit"
	SpanRollback = "daokit.transaction.rollback"
)

// Tracer starts profiling spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents one profiled operation.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is a tracer that does nothing. It is the default.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer wraps an OpenTelemetry tracer to implement the Tracer interface.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// QueryMetadata describes one profiled statement.
type QueryMetadata struct {
	// SQL is the statement text before placeholder rewriting.
	SQL string
	// ParamCount is the number of bound values.
	ParamCount int
	Duration   time.Duration
	// RowsAffected is set for Execute, RowsReturned for the fetch helpers.
	RowsAffected int64
	RowsReturned int
	Error        error
	// Database is the dialect name (postgres, mysql, sqlite).
	Database  string
	Operation string
	// Cached reports that the result came from the query cache.
	Cached bool
	// Transaction is the ID of the enclosing transaction, if any.
	Transaction string
}

// AddQueryAttributes adds database semantic convention attributes to a span.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
		attribute.Int("db.params_count", meta.ParamCount),
		attribute.Bool("db.cache_hit", meta.Cached),
	}

	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}
	if meta.RowsReturned > 0 {
		attrs = append(attrs, attribute.Int("db.rows_returned", meta.RowsReturned))
	}
	if meta.Transaction != "" {
		attrs = append(attrs, attribute.String("db.transaction_id", meta.Transaction))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

var ddlKeywords = []string{"CREATE", "ALTER", "DROP", "RENAME", "TRUNCATE"}

// DetectOperation returns the statement kind: SELECT, INSERT, UPDATE, DELETE,
// DDL, PRAGMA, SET, SHOW, or UNKNOWN.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"), strings.HasPrefix(sql, "REPLACE"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(sql, "PRAGMA"):
		return "PRAGMA"
	case strings.HasPrefix(sql, "SET"):
		return "SET"
	case strings.HasPrefix(sql, "SHOW"):
		return "SHOW"
	}
	for _, kw := range ddlKeywords {
		if strings.HasPrefix(sql, kw) {
			return "DDL"
		}
	}
	return "UNKNOWN"
}
