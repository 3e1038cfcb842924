package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullQuery() *Query {
	return NewQuery().
		Select("id", "name").
		SelectOption("SQL_CALC_FOUND_ROWS").
		Distinct(true).
		From("tbl_user u").
		LeftJoin("tbl_profile p", "p.user_id = u.id").
		Where(HashExp{"status": 1}).
		GroupBy("status").
		Having("COUNT(*) > 1").
		OrderBy("name DESC").
		Limit(10).
		Offset(5).
		Union("SELECT id, name FROM tbl_admin").
		AddParams(Params{"tenant": 3})
}

func TestQuery_Defaults(t *testing.T) {
	q := NewQuery()
	assert.Equal(t, int64(-1), q.GetLimit())
	assert.Equal(t, int64(-1), q.GetOffset())
	assert.Nil(t, q.GetWhere())
	assert.Empty(t, q.ToMap())
}

func TestQuery_ToMapRoundTrip(t *testing.T) {
	q := fullQuery()
	m := q.ToMap()

	for _, key := range []string{KeySelect, KeySelectOption, KeyDistinct, KeyFrom, KeyJoin, KeyWhere,
		KeyGroup, KeyHaving, KeyOrder, KeyLimit, KeyOffset, KeyUnion, KeyParams} {
		assert.Contains(t, m, key)
	}

	restored, err := QueryFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, m, restored.ToMap())

	qb := newBuilder(t, "mysql")
	want, wantParams, err := qb.Build(q)
	require.NoError(t, err)
	got, gotParams, err := qb.Build(restored)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, wantParams, gotParams)
}

func TestQueryFromMap_StringLists(t *testing.T) {
	q, err := QueryFromMap(map[string]any{
		"select": "id, name",
		"from":   "tbl_user",
		"where":  "id = :id",
		"limit":  3,
		"params": map[string]any{"id": 1},
	})
	require.NoError(t, err)

	sql, params, err := newBuilder(t, "postgres").Build(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT \"id\", \"name\"\nFROM \"tbl_user\"\nWHERE id = :id\nLIMIT 3", sql)
	assert.Equal(t, Params{":id": 1}, params)
}

func TestQueryFromMap_Invalid(t *testing.T) {
	_, err := QueryFromMap(map[string]any{"bogus": 1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = QueryFromMap(map[string]any{"limit": "ten"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = QueryFromMap(map[string]any{"distinct": "yes"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_Reset(t *testing.T) {
	q := fullQuery()
	q.Reset()
	assert.Empty(t, q.ToMap())
	assert.Equal(t, NewQuery(), q)
}

func TestQuery_CloneIsIndependent(t *testing.T) {
	q := fullQuery()
	c := q.Clone()

	c.AddSelect("email").AddOrderBy("id").AddParams(Params{"extra": true}).Limit(1)

	assert.Equal(t, []string{"id", "name"}, q.ToMap()[KeySelect])
	assert.Equal(t, []string{"name DESC"}, q.ToMap()[KeyOrder])
	assert.Equal(t, int64(10), q.GetLimit())
	assert.NotContains(t, q.Params(), ":extra")
	assert.Contains(t, c.Params(), ":extra")
}

func TestQuery_MergeWith(t *testing.T) {
	a := NewQuery().Select("id", "name").From("t").Where(Eq("a", 1)).OrderBy("id").Limit(5)
	b := NewQuery().Select("name", "email").Where(Eq("b", 2)).OrderBy("name").Offset(10).
		AddParams(Params{"x": 1})

	a.MergeWith(b, true)

	m := a.ToMap()
	assert.Equal(t, []string{"id", "name", "email"}, m[KeySelect])
	assert.Equal(t, []string{"id", "name"}, m[KeyOrder])
	assert.Equal(t, int64(5), a.GetLimit())
	assert.Equal(t, int64(10), a.GetOffset())
	assert.Equal(t, And(Eq("a", 1), Eq("b", 2)), a.GetWhere())
	assert.Equal(t, 1, a.Params()[":x"])

	c := NewQuery().Where(Eq("a", 1))
	c.MergeWith(NewQuery().Where(Eq("b", 2)), false)
	assert.Equal(t, Or(Eq("a", 1), Eq("b", 2)), c.GetWhere())

	d := NewQuery().Where(Eq("a", 1))
	d.MergeWith(NewQuery(), true)
	assert.Equal(t, Eq("a", 1), d.GetWhere())
}

func TestQuery_WhereForms(t *testing.T) {
	q := NewQuery().Where(map[string]any{"a": 1})
	assert.Equal(t, HashExp{"a": 1}, q.GetWhere())

	q.Where("  ")
	assert.Nil(t, q.GetWhere())

	q.Where("a = ?", 1)
	assert.Equal(t, &Exp{SQL: "a = ?", Args: []any{1}}, q.GetWhere())

	q.Where(nil).AndWhere(Eq("b", 2))
	assert.Equal(t, Eq("b", 2), q.GetWhere())

	assert.Panics(t, func() { NewQuery().Where(42) })
	assert.Panics(t, func() { NewQuery().Union(42) })
}

func TestQuery_SelectSplitsCommas(t *testing.T) {
	q := NewQuery().Select("id, name", "COUNT(a, b) AS n")
	assert.Equal(t, []string{"id", "name", "COUNT(a, b) AS n"}, q.ToMap()[KeySelect])
}
