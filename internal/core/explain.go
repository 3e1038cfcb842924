package core

import (
	"fmt"

	"github.com/coregx/daokit/internal/analyzer"
)

// Plan is the summarized EXPLAIN output of a statement.
type Plan = analyzer.Plan

// Explain asks the database how it would run the statement and summarizes
// the plan. The statement itself is not executed. Bound and call-site
// values are sent along, so the plan matches the values given.
func (c *Command) Explain(params ...Params) (*Plan, error) {
	d, err := c.conn.Dialect()
	if err != nil {
		return nil, err
	}
	sql, err := c.expandedSQL()
	if err != nil {
		return nil, err
	}
	stmt, err := analyzer.Statement(d.Name(), sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSupported, err)
	}

	explain := &Command{
		conn:   c.conn,
		sql:    stmt,
		params: c.mergedParams(params),
		args:   c.args,
		ctx:    c.ctx,
	}
	defer explain.Cancel()

	rows, err := explain.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row, err := rows.Row()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.log().Debug("explained SQL", "sql", sql)
	return analyzer.Parse(d.Name(), out)
}
