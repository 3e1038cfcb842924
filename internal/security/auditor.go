package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/coregx/daokit/internal/logger"
)

// AuditLevel selects which statements are recorded.
type AuditLevel int

const (
	// AuditNone disables auditing.
	AuditNone AuditLevel = iota
	// AuditWrites records INSERT, UPDATE, DELETE and DDL statements.
	AuditWrites
	// AuditAll records every statement, reads included.
	AuditAll
)

// Entry is one executed statement handed to the auditor.
type Entry struct {
	Operation    string
	SQL          string
	Values       []any
	RowsAffected int64
	RowsReturned int
	Duration     time.Duration
	Cached       bool
	Err          error
}

// Auditor writes audit records through a logger. Bound values are never
// logged; a SHA-256 digest of them is recorded instead.
type Auditor struct {
	log   logger.Logger
	level AuditLevel
}

// NewAuditor creates an auditor writing to l.
func NewAuditor(l logger.Logger, level AuditLevel) *Auditor {
	if l == nil {
		l = &logger.NoopLogger{}
	}
	return &Auditor{log: logger.WithCategory(l, logger.CategoryAudit), level: level}
}

// Record writes e when the audit level covers its operation.
func (a *Auditor) Record(ctx context.Context, e Entry) {
	if !a.covers(e.Operation) {
		return
	}
	args := []any{
		"operation", e.Operation,
		"table", TableName(e.SQL),
		"sql", e.SQL,
		"duration_ms", e.Duration.Milliseconds(),
		"success", e.Err == nil,
	}
	if len(e.Values) > 0 {
		args = append(args, "params_hash", hashValues(e.Values))
	}
	if e.Operation == "SELECT" {
		args = append(args, "rows_returned", e.RowsReturned, "cached", e.Cached)
	} else {
		args = append(args, "rows_affected", e.RowsAffected)
	}
	args = append(args, contextArgs(ctx)...)

	if e.Err != nil {
		a.log.Warn("audit", append(args, "error", e.Err.Error())...)
		return
	}
	a.log.Info("audit", args...)
}

// Rejected records a statement refused by the validator.
func (a *Auditor) Rejected(ctx context.Context, sql string, err error) {
	if a.level == AuditNone {
		return
	}
	args := append([]any{"sql", sql, "error", err.Error()}, contextArgs(ctx)...)
	a.log.Warn("statement rejected", args...)
}

func (a *Auditor) covers(op string) bool {
	switch a.level {
	case AuditAll:
		return true
	case AuditWrites:
		return op == "INSERT" || op == "UPDATE" || op == "DELETE" || op == "DDL"
	default:
		return false
	}
}

func hashValues(values []any) string {
	h := sha256.New()
	for _, v := range values {
		_, _ = fmt.Fprintf(h, "%T:%v\x00", v, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

var tableRe = regexp.MustCompile(`(?is)\b(?:FROM|INTO|UPDATE|TABLE(?:\s+IF\s+(?:NOT\s+)?EXISTS)?)\s+([` + "`" + `"\[]?[\w.]+[` + "`" + `"\]]?)`)

// TableName returns the first table named after FROM, INTO, UPDATE or
// TABLE, unquoted, or "" when there is none.
func TableName(sql string) string {
	m := tableRe.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], "`\"[]")
}

type contextKey string

const (
	userKey      contextKey = "daokit:user"
	clientIPKey  contextKey = "daokit:client_ip"
	requestIDKey contextKey = "daokit:request_id"
)

// WithUser attaches the acting user to ctx for audit records.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP attaches the client address to ctx for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithRequestID attaches a request identifier to ctx for audit records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func contextArgs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var args []any
	for _, k := range []contextKey{userKey, clientIPKey, requestIDKey} {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			args = append(args, strings.TrimPrefix(string(k), "daokit:"), v)
		}
	}
	return args
}
