package core

import (
	"fmt"
	"sort"
	"strings"
)

// Insert builds an INSERT statement. Columns are emitted in sorted order;
// *Exp values are inlined.
//
// Example:
//
//	sql, params, _ := qb.Insert("tbl_user", map[string]any{"name": "alice"})
//	// INSERT INTO "tbl_user" ("name") VALUES (:p0)
func (qb *QueryBuilder) Insert(table string, columns map[string]any) (string, Params, error) {
	s, err := qb.newState(nil, columns)
	if err != nil {
		return "", nil, err
	}
	names := sortedKeys(columns)
	if len(names) == 0 {
		if qb.dialect.Name() == "mysql" {
			return "INSERT INTO " + qb.QuoteTableName(table) + " () VALUES ()", s.params, nil
		}
		return "INSERT INTO " + qb.QuoteTableName(table) + " DEFAULT VALUES", s.params, nil
	}

	values := make([]string, len(names))
	for i, name := range names {
		v, err := s.value(columns[name])
		if err != nil {
			return "", nil, err
		}
		values[i] = v
	}
	sql := "INSERT INTO " + qb.QuoteTableName(table) +
		" (" + qb.quoteColumns(names) + ") VALUES (" + strings.Join(values, ", ") + ")"
	return sql, s.params, nil
}

// BatchInsert builds a multi-row INSERT. Every row must have one value per
// column. An empty rows slice yields an empty statement.
func (qb *QueryBuilder) BatchInsert(table string, columns []string, rows [][]any) (string, Params, error) {
	if len(rows) == 0 {
		return "", Params{}, nil
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: batch insert into %s without columns", ErrInvalidQuery, table)
	}
	s, err := qb.newState(nil)
	if err != nil {
		return "", nil, err
	}
	for _, row := range rows {
		if err := s.reserveAll(row); err != nil {
			return "", nil, err
		}
	}

	tuples := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidQuery, i, len(row), len(columns))
		}
		values := make([]string, len(row))
		for j, v := range row {
			ph, err := s.value(v)
			if err != nil {
				return "", nil, err
			}
			values[j] = ph
		}
		tuples[i] = "(" + strings.Join(values, ", ") + ")"
	}
	sql := "INSERT INTO " + qb.QuoteTableName(table) +
		" (" + qb.quoteColumns(columns) + ") VALUES " + strings.Join(tuples, ", ")
	return sql, s.params, nil
}

// Upsert builds an INSERT that updates on a conflict of conflictColumns.
// A nil update list updates every inserted column outside conflictColumns;
// an empty non-nil list leaves the existing row untouched.
func (qb *QueryBuilder) Upsert(table string, columns map[string]any, conflictColumns, update []string) (string, Params, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: upsert into %s without columns", ErrInvalidQuery, table)
	}
	sql, params, err := qb.Insert(table, columns)
	if err != nil {
		return "", nil, err
	}

	if update == nil {
		conflict := make(map[string]struct{}, len(conflictColumns))
		for _, c := range conflictColumns {
			conflict[c] = struct{}{}
		}
		update = []string{}
		for _, name := range sortedKeys(columns) {
			if _, ok := conflict[name]; !ok {
				update = append(update, name)
			}
		}
	}

	quotedConflict := make([]string, len(conflictColumns))
	for i, c := range conflictColumns {
		quotedConflict[i] = qb.QuoteColumnName(c)
	}
	quotedUpdate := make([]string, len(update))
	for i, c := range update {
		quotedUpdate[i] = qb.QuoteColumnName(c)
	}
	return sql + qb.dialect.UpsertSQL(quotedConflict, quotedUpdate), params, nil
}

// Update builds an UPDATE statement. where accepts the same forms as
// Query.Where; params supplies values for named placeholders in it.
func (qb *QueryBuilder) Update(table string, columns map[string]any, where any, params Params) (string, Params, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: update of %s without columns", ErrInvalidQuery, table)
	}
	whereCond := toCondition(where, nil)
	s, err := qb.newState(params, columns, whereCond)
	if err != nil {
		return "", nil, err
	}
	names := sortedKeys(columns)
	sets := make([]string, len(names))
	for i, name := range names {
		v, err := s.value(columns[name])
		if err != nil {
			return "", nil, err
		}
		sets[i] = qb.QuoteColumnName(name) + "=" + v
	}
	sql := "UPDATE " + qb.QuoteTableName(table) + " SET " + strings.Join(sets, ", ")

	cond, err := s.cond(whereCond)
	if err != nil {
		return "", nil, err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	return sql, s.params, nil
}

// Delete builds a DELETE statement.
func (qb *QueryBuilder) Delete(table string, where any, params Params) (string, Params, error) {
	whereCond := toCondition(where, nil)
	s, err := qb.newState(params, whereCond)
	if err != nil {
		return "", nil, err
	}
	sql := "DELETE FROM " + qb.QuoteTableName(table)
	cond, err := s.cond(whereCond)
	if err != nil {
		return "", nil, err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	return sql, s.params, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
