package core

import (
	"database/sql"
	"fmt"
	"sort"
)

// Row is one result row keyed by column name. Driver []byte values are
// converted to string.
//
// Example:
//
//	row, err := conn.CreateCommand("SELECT * FROM {{user}} WHERE id=:id").QueryRow(daokit.Params{":id": 1})
//	name := row.String("name")  // "" if NULL
//	if !row.IsNull("email") {
//	    email := row.String("email")
//	}
type Row map[string]any

// String returns the value formatted as a string, or "" when it is NULL or
// missing.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// IsNull checks if the value for the given key is NULL or doesn't exist.
func (r Row) IsNull(key string) bool {
	return r[key] == nil
}

// Has checks if the key exists in the row (regardless of NULL status).
func (r Row) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns all column names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value for the given key and whether it exists.
func (r Row) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// resultSet is a fully read result; it is also the query cache payload.
type resultSet struct {
	Columns []string `msgpack:"c"`
	Rows    [][]any  `msgpack:"r"`
}

func (rs *resultSet) row(i int) Row {
	row := make(Row, len(rs.Columns))
	for j, col := range rs.Columns {
		row[col] = rs.Rows[i][j]
	}
	return row
}

func (rs *resultSet) all() []Row {
	out := make([]Row, len(rs.Rows))
	for i := range rs.Rows {
		out[i] = rs.row(i)
	}
	return out
}

func (rs *resultSet) column() []any {
	out := make([]any, len(rs.Rows))
	for i, r := range rs.Rows {
		if len(r) > 0 {
			out[i] = r[0]
		}
	}
	return out
}

// readAll drains rows; limit > 0 stops after that many rows.
func readAll(rows *sql.Rows, limit int) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &resultSet{Columns: cols}
	for rows.Next() {
		values, err := scanValues(rows, len(cols))
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
		if limit > 0 && len(rs.Rows) >= limit {
			break
		}
	}
	return rs, rows.Err()
}

func scanValues(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

// Rows is a lazy cursor returned by Command.Query. It is never served from
// the query cache. Close must be called when done.
type Rows struct {
	rows    *sql.Rows
	columns []string
	done    func(count int, err error)
	count   int
	closed  bool
}

// Next prepares the next row for reading.
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	if r.rows.Next() {
		r.count++
		return true
	}
	return false
}

// Columns returns the column names.
func (r *Rows) Columns() ([]string, error) {
	if r.columns == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, err
		}
		r.columns = cols
	}
	return r.columns, nil
}

// Row reads the current row as a map.
func (r *Rows) Row() (Row, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}
	values, err := scanValues(r.rows, len(cols))
	if err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	return row, nil
}

// Scan copies the current row into dest.
func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Err returns the error, if any, encountered during iteration.
func (r *Rows) Err() error {
	return r.rows.Err()
}

// Close closes the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	if r.done != nil {
		iterErr := r.rows.Err()
		if iterErr == nil {
			iterErr = err
		}
		r.done(r.count, iterErr)
	}
	return err
}
