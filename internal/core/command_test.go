package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/daokit/internal/cache"
	"github.com/coregx/daokit/internal/security"
)

func newMockConnection(t *testing.T, opts ...Option) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	conn := NewConnection("postgres", "", append([]Option{WithDB(db)}, opts...)...)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func TestCommand_QueryFromBuiltQuery(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`SELECT "id", "name" FROM "tbl_user" WHERE "id"=$1`).
		ExpectQuery().
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(5), "alice"))

	q := NewQuery().Select("id", "name").From("tbl_user").Where(HashExp{"id": int64(5)})
	rows, err := conn.CreateCommand(q).QueryAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"id": int64(5), "name": "alice"}, rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_RawSQLWithMarkers(t *testing.T) {
	conn, mock := newMockConnection(t, WithTablePrefix("tbl_"))
	mock.ExpectPrepare(`SELECT "name" FROM "tbl_user" WHERE "status"=$1 AND "age">$2`).
		ExpectQuery().
		WithArgs(int64(1), int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice").AddRow("bob"))

	names, err := conn.CreateCommand(`SELECT [[name]] FROM {{user}} WHERE [[status]]=:status AND [[age]]>?`).
		BindValue("status", int64(1)).
		BindArgs(int64(18)).
		QueryColumn()
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", "bob"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_PreparedStatementIsReused(t *testing.T) {
	conn, mock := newMockConnection(t)
	prep := mock.ExpectPrepare(`SELECT name FROM t WHERE id=$1`)
	prep.ExpectQuery().WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))
	prep.ExpectQuery().WithArgs(int64(2)).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("b"))

	cmd := conn.CreateCommand("SELECT name FROM t WHERE id=:id")
	v, err := cmd.QueryScalar(Params{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = cmd.QueryScalar(Params{"id": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_QueryRow_NoRows(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`SELECT * FROM t`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := conn.CreateCommand("SELECT * FROM t").QueryRow()
	assert.ErrorIs(t, err, ErrNoRows)
	assert.True(t, IsNoRows(err))
}

func TestCommand_Cursor(t *testing.T) {
	var events []QueryEvent
	conn, mock := newMockConnection(t, WithQueryHook(func(_ context.Context, e QueryEvent) {
		events = append(events, e)
	}))
	mock.ExpectPrepare(`SELECT id FROM t`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	rows, err := conn.CreateCommand("SELECT id FROM t").Query()
	require.NoError(t, err)

	var ids []any
	for rows.Next() {
		row, err := rows.Row()
		require.NoError(t, err)
		ids = append(ids, row["id"])
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close())

	assert.Equal(t, []any{int64(1), int64(2)}, ids)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].RowsReturned)
	assert.Equal(t, "SELECT", events[0].Operation)
}

func TestCommand_Insert(t *testing.T) {
	var events []QueryEvent
	conn, mock := newMockConnection(t, WithQueryHook(func(_ context.Context, e QueryEvent) {
		events = append(events, e)
	}))
	mock.ExpectPrepare(`INSERT INTO "tbl_user" ("email", "name") VALUES ($1, $2)`).
		ExpectExec().
		WithArgs("a@example.com", "alice").
		WillReturnResult(sqlmock.NewResult(7, 1))

	n, err := conn.CreateCommand(nil).Insert("tbl_user", map[string]any{"name": "alice", "email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].RowsAffected)
	assert.Equal(t, "INSERT", events[0].Operation)
	assert.NoError(t, events[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_UpdateAndDelete(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`UPDATE "t" SET "name"=$1 WHERE "id"=$2`).
		ExpectExec().
		WithArgs("bob", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(`DELETE FROM "t" WHERE "id"=$1`).
		ExpectExec().
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cmd := conn.CreateCommand(nil)
	n, err := cmd.Update("t", map[string]any{"name": "bob"}, HashExp{"id": int64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = cmd.Reset().Delete("t", HashExp{"id": int64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_BatchInsertWithoutRows(t *testing.T) {
	conn, mock := newMockConnection(t)
	n, err := conn.CreateCommand(nil).BatchInsert("t", []string{"a"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_ResetKeepsConnection(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`SELECT 1`).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectPrepare(`SELECT 2`).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(2)))
	mock.ExpectPrepare(`SELECT "id" FROM "t" WHERE "id"=$1`).ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	cmd := conn.CreateCommand("SELECT 1").BindValue("unused", 1)
	v, err := cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	cmd.Reset()
	assert.Same(t, conn, cmd.Connection())
	assert.Empty(t, cmd.params)

	v, err = cmd.SetSQL("SELECT 2").QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	q := NewQuery().Select("id").From("t").Where(HashExp{"id": int64(7)})
	cmd.Reset().SetQuery(q)
	q.Where(HashExp{"id": int64(8)})
	sql, err := cmd.SQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT \"id\"\nFROM \"t\"\nWHERE \"id\"=:p0", sql)
	assert.Same(t, conn, cmd.Connection())

	v, err = cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_RowsAffectedFailure(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`DELETE FROM t`).ExpectExec().
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unavailable")))

	n, err := conn.CreateCommand("DELETE FROM t").Execute()
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "execute", execErr.Op)
	assert.Contains(t, err.Error(), "rows affected unavailable")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_EmptySQL(t *testing.T) {
	conn, _ := newMockConnection(t)
	_, err := conn.CreateCommand(nil).Execute()
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestCommand_MissingParam(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`SELECT * FROM t WHERE id=$1`)

	_, err := conn.CreateCommand("SELECT * FROM t WHERE id=:id").QueryAll()
	require.ErrorIs(t, err, ErrMissingParam)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "queryAll", execErr.Op)
}

func TestCommand_ExecErrorDebug(t *testing.T) {
	boom := errors.New("relation \"t\" does not exist")

	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`DELETE FROM t`).ExpectExec().WillReturnError(boom)

	_, err := conn.CreateCommand("DELETE FROM t").Execute()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, `daokit: failed to execute the SQL statement: relation "t" does not exist`, err.Error())

	conn, mock = newMockConnection(t, WithDebug(true), WithParamLogging(true))
	mock.ExpectPrepare(`DELETE FROM t WHERE id=$1`).ExpectExec().WithArgs(int64(9)).WillReturnError(boom)

	_, err = conn.CreateCommand("DELETE FROM t WHERE id=:id").Execute(Params{"id": int64(9)})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "The SQL statement executed was: DELETE FROM t WHERE id=$1")
	assert.Contains(t, err.Error(), ":id")
}

func TestCommand_QueryCache(t *testing.T) {
	store := cache.NewMemoryStore(0)
	var events []QueryEvent
	conn, mock := newMockConnection(t, WithCache(store), WithQueryHook(func(_ context.Context, e QueryEvent) {
		events = append(events, e)
	}))
	prep := mock.ExpectPrepare(`SELECT name FROM t WHERE id=$1`)
	prep.ExpectQuery().WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice"))

	conn.Cache(time.Minute, nil, 2)
	cmd := conn.CreateCommand("SELECT name FROM t WHERE id=:id").BindValue("id", int64(1))

	first, err := cmd.QueryAll()
	require.NoError(t, err)
	second, err := cmd.QueryAll()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []Row{{"name": "alice"}}, second)
	require.Len(t, events, 2)
	assert.False(t, events[0].Cached)
	assert.True(t, events[1].Cached)
	assert.NoError(t, mock.ExpectationsWereMet())

	// the budget is spent: the next query reaches the driver again
	prep.ExpectQuery().WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice2"))
	v, err := cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, "alice2", v)
}

func TestCommand_QueryCacheDependency(t *testing.T) {
	fingerprint := "v1"
	dep := FuncDependency(func(context.Context) (string, error) { return fingerprint, nil })

	conn, mock := newMockConnection(t, WithCache(cache.NewMemoryStore(0)))
	prep := mock.ExpectPrepare(`SELECT n FROM t`)
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(2)))

	conn.Cache(0, dep, 3)
	cmd := conn.CreateCommand("SELECT n FROM t")

	v, err := cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	fingerprint = "v2"
	v, err = cmd.QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_CursorBypassesCache(t *testing.T) {
	conn, mock := newMockConnection(t, WithCache(cache.NewMemoryStore(0)))
	mock.ExpectPrepare(`SELECT 1`).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))

	conn.Cache(time.Minute, nil, 1)
	rows, err := conn.CreateCommand("SELECT 1").Query()
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, 1, conn.queryCachingCount)
}

func TestCommand_ValidatorRejectsBeforePrepare(t *testing.T) {
	conn, mock := newMockConnection(t, WithValidator(security.NewValidator(security.WithValueChecks(true))))

	_, err := conn.CreateCommand("SELECT * FROM t WHERE id = 1 OR 1=1").QueryAll()
	assert.ErrorIs(t, err, ErrUnsafeSQL)

	mock.ExpectPrepare(`SELECT * FROM t WHERE name = $1`)
	_, err = conn.CreateCommand("SELECT * FROM t WHERE name = :name").QueryAll(Params{"name": "x' OR 'a'='a"})
	assert.ErrorIs(t, err, ErrUnsafeSQL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_ValidatorSkipsInternalStatements(t *testing.T) {
	conn, mock := newMockConnection(t, WithValidator(security.NewValidator(security.WithStrict(true))))
	require.NoError(t, conn.Open(context.Background()))
	mock.ExpectPrepare(`SELECT lastval()`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"lastval"}).AddRow(int64(3)))

	id, err := conn.LastInsertID(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "3", id)
}

type auditLog struct {
	msgs []string
}

func (a *auditLog) Debug(msg string, _ ...any) { a.msgs = append(a.msgs, msg) }
func (a *auditLog) Info(msg string, _ ...any)  { a.msgs = append(a.msgs, msg) }
func (a *auditLog) Warn(msg string, _ ...any)  { a.msgs = append(a.msgs, msg) }
func (a *auditLog) Error(msg string, _ ...any) { a.msgs = append(a.msgs, msg) }

func TestCommand_Audit(t *testing.T) {
	log := &auditLog{}
	conn, mock := newMockConnection(t,
		WithAuditor(security.NewAuditor(log, security.AuditWrites)),
		WithValidator(security.NewValidator()))
	mock.ExpectPrepare(`SELECT 1`).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectPrepare(`DELETE FROM t`).ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := conn.CreateCommand("SELECT 1").QueryScalar()
	require.NoError(t, err)
	_, err = conn.CreateCommand("DELETE FROM t").Execute()
	require.NoError(t, err)
	_, err = conn.CreateCommand("DELETE FROM t; DROP TABLE t").Execute()
	require.ErrorIs(t, err, ErrUnsafeSQL)

	assert.Equal(t, []string{"audit", "statement rejected", "audit"}, log.msgs)
}
