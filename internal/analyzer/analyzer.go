// Package analyzer summarizes the EXPLAIN output of the bundled engines
// into a common Plan.
package analyzer

import (
	"errors"
	"fmt"
)

// ErrNoPlan is returned when EXPLAIN produced nothing that could be parsed.
var ErrNoPlan = errors.New("empty EXPLAIN output")

// Plan is the engine-independent summary of a query plan.
type Plan struct {
	Dialect string

	// Cost is the engine's own estimate; SQLite reports none.
	Cost          float64
	EstimatedRows int64

	UsesIndex bool
	// Index is the first index the plan reads through.
	Index    string
	FullScan bool
	// Tables lists the scanned tables in plan order.
	Tables []string

	Raw string
}

type parser func(rows []map[string]any) (*Plan, error)

var explainers = map[string]struct {
	prefix string
	parse  parser
}{
	"postgres": {"EXPLAIN (FORMAT JSON) ", parsePostgres},
	"mysql":    {"EXPLAIN FORMAT=JSON ", parseMySQL},
	"sqlite":   {"EXPLAIN QUERY PLAN ", parseSQLite},
}

// Supported reports whether plans can be read for the dialect.
func Supported(dialect string) bool {
	_, ok := explainers[dialect]
	return ok
}

// Statement prefixes sql with the dialect's EXPLAIN form.
func Statement(dialect, sql string) (string, error) {
	e, ok := explainers[dialect]
	if !ok {
		return "", fmt.Errorf("analyzer: no EXPLAIN support for %q", dialect)
	}
	return e.prefix + sql, nil
}

// Parse reads the rows returned by the statement built with Statement.
func Parse(dialect string, rows []map[string]any) (*Plan, error) {
	e, ok := explainers[dialect]
	if !ok {
		return nil, fmt.Errorf("analyzer: no EXPLAIN support for %q", dialect)
	}
	if len(rows) == 0 {
		return nil, ErrNoPlan
	}
	plan, err := e.parse(rows)
	if err != nil {
		return nil, err
	}
	plan.Dialect = dialect
	return plan, nil
}

func (p *Plan) useIndex(name string) {
	p.UsesIndex = true
	if p.Index == "" {
		p.Index = name
	}
}

func (p *Plan) addTable(name string) {
	if name == "" {
		return
	}
	for _, t := range p.Tables {
		if t == name {
			return
		}
	}
	p.Tables = append(p.Tables, name)
}

// singleText returns the only text value of a one-column EXPLAIN result.
func singleText(rows []map[string]any) (string, error) {
	for _, v := range rows[0] {
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	}
	return "", ErrNoPlan
}
