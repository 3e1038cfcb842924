package core

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/daokit/internal/cache"
)

func TestCommand_ExplainPostgres(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`EXPLAIN (FORMAT JSON) SELECT * FROM "tbl_user" WHERE "id"=$1`).
		ExpectQuery().
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(
			`[{"Plan": {"Node Type": "Index Scan", "Relation Name": "tbl_user", "Index Name": "tbl_user_pkey", "Total Cost": 8.17, "Plan Rows": 1}}]`))

	q := NewQuery().From("tbl_user").Where(HashExp{"id": int64(5)})
	plan, err := conn.CreateCommand(q).Explain()
	require.NoError(t, err)

	assert.Equal(t, "postgres", plan.Dialect)
	assert.True(t, plan.UsesIndex)
	assert.Equal(t, "tbl_user_pkey", plan.Index)
	assert.False(t, plan.FullScan)
	assert.InDelta(t, 8.17, plan.Cost, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_ExplainBypassesQueryCache(t *testing.T) {
	conn, mock := newMockConnection(t, WithCache(cache.NewMemoryStore(0)), WithQueryCaching(0, nil, 2))
	for i := 0; i < 2; i++ {
		mock.ExpectPrepare(`EXPLAIN (FORMAT JSON) SELECT * FROM t`).
			ExpectQuery().
			WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(`[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "t"}}]`))
	}

	for i := 0; i < 2; i++ {
		plan, err := conn.CreateCommand("SELECT * FROM t").Explain()
		require.NoError(t, err)
		assert.True(t, plan.FullScan)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_ExplainDriverError(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPrepare(`EXPLAIN (FORMAT JSON) SELECT * FROM missing`).WillReturnError(assert.AnError)

	_, err := conn.CreateCommand("SELECT * FROM missing").Explain()
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "prepare", execErr.Op)
}

func TestCommand_ExplainEmptySQL(t *testing.T) {
	conn, _ := newMockConnection(t)
	_, err := conn.CreateCommand("").Explain()
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSQLite_Explain(t *testing.T) {
	conn := openSQLite(t)

	plan, err := conn.CreateCommand("SELECT * FROM {{user}} WHERE [[email]]=:email").
		Explain(Params{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", plan.Dialect)
	assert.True(t, plan.UsesIndex)
	assert.Equal(t, "idx_user_email", plan.Index)
	assert.Equal(t, []string{"tbl_user"}, plan.Tables)

	plan, err = conn.CreateCommand("SELECT * FROM {{user}} WHERE [[name]]=:name").
		Explain(Params{"name": "alice"})
	require.NoError(t, err)
	assert.True(t, plan.FullScan)
	assert.False(t, plan.UsesIndex)
}
