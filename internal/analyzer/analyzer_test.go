package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"postgres", `EXPLAIN (FORMAT JSON) SELECT 1`},
		{"mysql", `EXPLAIN FORMAT=JSON SELECT 1`},
		{"sqlite", `EXPLAIN QUERY PLAN SELECT 1`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			got, err := Statement(tt.dialect, "SELECT 1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Supported(tt.dialect))
		})
	}

	_, err := Statement("oracle", "SELECT 1")
	assert.Error(t, err)
	assert.False(t, Supported("oracle"))
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("sqlite", nil)
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = Parse("postgres", []map[string]any{{"QUERY PLAN": 1}})
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = Parse("postgres", []map[string]any{{"QUERY PLAN": "[]"}})
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = Parse("oracle", []map[string]any{{"x": "y"}})
	assert.Error(t, err)
}

func TestParsePostgres(t *testing.T) {
	raw := `[{"Plan": {
		"Node Type": "Nested Loop", "Total Cost": 42.5, "Plan Rows": 7,
		"Plans": [
			{"Node Type": "Seq Scan", "Relation Name": "tbl_post", "Total Cost": 20, "Plan Rows": 100},
			{"Node Type": "Index Scan", "Relation Name": "tbl_user", "Index Name": "tbl_user_pkey", "Plan Rows": 1}
		]
	}}]`

	plan, err := Parse("postgres", []map[string]any{{"QUERY PLAN": []byte(raw)}})
	require.NoError(t, err)

	assert.Equal(t, "postgres", plan.Dialect)
	assert.Equal(t, 42.5, plan.Cost)
	assert.Equal(t, int64(7), plan.EstimatedRows)
	assert.True(t, plan.FullScan)
	assert.True(t, plan.UsesIndex)
	assert.Equal(t, "tbl_user_pkey", plan.Index)
	assert.Equal(t, []string{"tbl_post", "tbl_user"}, plan.Tables)
	assert.Equal(t, raw, plan.Raw)
}

func TestParsePostgresInvalidJSON(t *testing.T) {
	_, err := Parse("postgres", []map[string]any{{"QUERY PLAN": "{"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode postgres plan")
}

func TestParseMySQL(t *testing.T) {
	raw := `{"query_block": {
		"cost_info": {"query_cost": "3.10"},
		"ordering_operation": {
			"nested_loop": [
				{"table": {"table_name": "p", "access_type": "ALL", "rows_examined_per_scan": 10}},
				{"table": {"table_name": "u", "access_type": "eq_ref", "key": "PRIMARY", "rows_examined_per_scan": 1}}
			]
		}
	}}`

	plan, err := Parse("mysql", []map[string]any{{"EXPLAIN": raw}})
	require.NoError(t, err)

	assert.Equal(t, "mysql", plan.Dialect)
	assert.InDelta(t, 3.10, plan.Cost, 1e-9)
	assert.Equal(t, int64(11), plan.EstimatedRows)
	assert.True(t, plan.FullScan)
	assert.True(t, plan.UsesIndex)
	assert.Equal(t, "PRIMARY", plan.Index)
	assert.Equal(t, []string{"p", "u"}, plan.Tables)
}

func TestParseMySQLSingleTable(t *testing.T) {
	raw := `{"query_block": {"table": {"table_name": "tbl_user", "access_type": "ref", "key": "idx_email", "rows_examined_per_scan": 1}}}`

	plan, err := Parse("mysql", []map[string]any{{"EXPLAIN": raw}})
	require.NoError(t, err)

	assert.Zero(t, plan.Cost)
	assert.False(t, plan.FullScan)
	assert.Equal(t, "idx_email", plan.Index)
	assert.Equal(t, []string{"tbl_user"}, plan.Tables)
}

func TestParseSQLite(t *testing.T) {
	tests := []struct {
		name     string
		details  []string
		index    string
		fullScan bool
		tables   []string
	}{
		{"full scan", []string{"SCAN tbl_user"}, "", true, []string{"tbl_user"}},
		{"legacy full scan", []string{"SCAN TABLE tbl_user"}, "", true, []string{"tbl_user"}},
		{"index", []string{"SEARCH tbl_user USING INDEX idx_user_email (email=?)"}, "idx_user_email", false, []string{"tbl_user"}},
		{"covering index", []string{"SCAN tbl_user USING COVERING INDEX idx_user_email"}, "idx_user_email", false, []string{"tbl_user"}},
		{"rowid", []string{"SEARCH tbl_user USING INTEGER PRIMARY KEY (rowid=?)"}, "PRIMARY KEY", false, []string{"tbl_user"}},
		{"join", []string{
			"SCAN p",
			"SEARCH u USING AUTOMATIC COVERING INDEX (id=?)",
			"USE TEMP B-TREE FOR ORDER BY",
		}, "AUTOMATIC INDEX", true, []string{"p", "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]map[string]any, len(tt.details))
			for i, d := range tt.details {
				rows[i] = map[string]any{"id": int64(i), "parent": int64(0), "notused": int64(0), "detail": d}
			}

			plan, err := Parse("sqlite", rows)
			require.NoError(t, err)

			assert.Equal(t, tt.index != "", plan.UsesIndex)
			assert.Equal(t, tt.index, plan.Index)
			assert.Equal(t, tt.fullScan, plan.FullScan)
			assert.Equal(t, tt.tables, plan.Tables)
			assert.Zero(t, plan.Cost)
		})
	}
}

func TestParseSQLiteWithoutDetail(t *testing.T) {
	_, err := Parse("sqlite", []map[string]any{{"id": int64(1)}})
	assert.ErrorIs(t, err, ErrNoPlan)
}
