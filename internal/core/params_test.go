package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/daokit/internal/dialects"
)

func mustDialect(t *testing.T, name string) dialects.Dialect {
	t.Helper()
	d, err := dialects.Get(name)
	require.NoError(t, err)
	return d
}

func TestNormalizeParamName(t *testing.T) {
	assert.Equal(t, ":id", normalizeParamName("id"))
	assert.Equal(t, ":id", normalizeParamName(":id"))
	assert.Equal(t, ":id", normalizeParamName("{:id}"))
}

func TestCompileBindPlan_Postgres(t *testing.T) {
	plan := compileBindPlan(`a=:a AND b={:b} AND c=? AND d='x:y' AND "e:f"=1 AND e::text = :a`, mustDialect(t, "postgres"))

	assert.Equal(t, `a=$1 AND b=$2 AND c=$3 AND d='x:y' AND "e:f"=1 AND e::text = $4`, plan.sql)

	values, err := plan.values(Params{":a": 1, ":b": "two"}, []any{3.5})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two", 3.5, 1}, values)
}

func TestCompileBindPlan_QuestionMarkDialects(t *testing.T) {
	for _, name := range []string{"mysql", "sqlite"} {
		plan := compileBindPlan("SELECT * FROM t WHERE id=:id OR name=?", mustDialect(t, name))
		assert.Equal(t, "SELECT * FROM t WHERE id=? OR name=?", plan.sql, name)
	}
}

func TestCompileBindPlan_NoPlaceholders(t *testing.T) {
	plan := compileBindPlan("SELECT 1", mustDialect(t, "postgres"))
	assert.Equal(t, "SELECT 1", plan.sql)

	values, err := plan.values(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestCompileBindPlan_MalformedBrace(t *testing.T) {
	plan := compileBindPlan("SELECT '{' || {:} || x", mustDialect(t, "postgres"))
	assert.Equal(t, "SELECT '{' || {:} || x", plan.sql)
	assert.Empty(t, plan.refs)
}

func TestBindPlan_MissingValues(t *testing.T) {
	plan := compileBindPlan("a=:a AND b=?", mustDialect(t, "postgres"))

	_, err := plan.values(Params{}, []any{1})
	require.ErrorIs(t, err, ErrMissingParam)
	assert.Contains(t, err.Error(), ":a")

	_, err = plan.values(Params{":a": 1}, nil)
	require.ErrorIs(t, err, ErrMissingParam)
	assert.Contains(t, err.Error(), "positional argument 1")
}

func TestExpandIdentifiers(t *testing.T) {
	d := mustDialect(t, "postgres")
	expand := func(sql string) string {
		return expandIdentifiers(sql, "tbl_", d.QuoteSimpleTableName, d.QuoteSimpleColumnName)
	}

	assert.Equal(t, `SELECT "name" FROM "tbl_user"`, expand("SELECT [[name]] FROM {{user}}"))
	assert.Equal(t, `SELECT * FROM "tbl_user_log"`, expand("SELECT * FROM {{%user_log}}"))
	assert.Equal(t, "SELECT 1", expand("SELECT 1"))
}
