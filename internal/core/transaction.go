package core

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/coregx/daokit/internal/tracer"
)

// Transaction is a database transaction on one Connection. It is active
// from creation until the first Commit or Rollback, whether or not that
// call succeeds.
//
// Example:
//
//	tx, err := conn.BeginTransaction(ctx)
//	if err != nil {
//	    return err
//	}
//	if _, err := conn.CreateCommand(nil).Insert("tbl_user", row); err != nil {
//	    _ = tx.Rollback()
//	    return err
//	}
//	return tx.Commit()
type Transaction struct {
	// ID identifies the transaction in log records and spans.
	ID string

	conn   *Connection
	tx     *sql.Tx
	active bool
}

func newTransaction(c *Connection, tx *sql.Tx) *Transaction {
	return &Transaction{
		ID:     uuid.NewString(),
		conn:   c,
		tx:     tx,
		active: true,
	}
}

// Active reports whether the transaction can still be committed or rolled back.
func (t *Transaction) Active() bool {
	return t.active
}

// Connection returns the connection the transaction runs on.
func (t *Transaction) Connection() *Connection {
	return t.conn
}

// Commit commits the transaction. It returns ErrTxInactive when the
// transaction has already finished or the connection is closed.
func (t *Transaction) Commit() error {
	return t.finish(tracer.SpanCommit, "commit", t.tx.Commit)
}

// Rollback rolls back the transaction. It returns ErrTxInactive when the
// transaction has already finished or the connection is closed.
func (t *Transaction) Rollback() error {
	return t.finish(tracer.SpanRollback, "roll back", t.tx.Rollback)
}

func (t *Transaction) finish(spanName, action string, fn func() error) error {
	if !t.active || !t.conn.IsOpen() {
		return ErrTxInactive
	}
	log := t.conn.txLogger
	log.Debug(action+" transaction", "tx", t.ID)

	var span tracer.Span
	if t.conn.profiling {
		_, span = t.conn.tracer.StartSpan(context.Background(), spanName)
		defer span.End()
	}

	err := fn()
	// database/sql discards the Tx after any Commit or Rollback attempt.
	t.active = false
	if err != nil {
		log.Error("failed to "+action+" transaction", "tx", t.ID, "error", err)
		if span != nil {
			span.RecordError(err)
		}
		return WrapError(err, action+" transaction "+t.ID)
	}
	return nil
}
