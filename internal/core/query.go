package core

import (
	"fmt"
	"strings"
)

// Join types understood by Query.Join.
const (
	InnerJoinType   = "INNER JOIN"
	LeftJoinType    = "LEFT JOIN"
	RightJoinType   = "RIGHT JOIN"
	CrossJoinType   = "CROSS JOIN"
	NaturalJoinType = "NATURAL JOIN"
)

// JoinInfo is one JOIN clause.
type JoinInfo struct {
	Type  string
	Table string
	On    Condition
}

// Query is a mutable, declarative SELECT statement plus the named parameter
// values it carries. Setters return the same *Query for chaining; hand a
// Clone to other code that should not observe later changes.
//
// Example:
//
//	q := daokit.NewQuery().
//	    Select("id", "name").
//	    From("tbl_user").
//	    Where(daokit.HashExp{"status": 1}).
//	    OrderBy("name").
//	    Limit(10)
type Query struct {
	selects      []string
	selectOption string
	distinct     bool
	from         []string
	joins        []JoinInfo
	where        Condition
	groupBy      []string
	having       Condition
	orderBy      []string
	limit        int64
	offset       int64
	unions       []any
	params       Params
}

// NewQuery returns an empty query selecting "*".
func NewQuery() *Query {
	q := &Query{}
	q.Reset()
	return q
}

// Reset returns the query to its defaults.
func (q *Query) Reset() *Query {
	*q = Query{limit: -1, offset: -1, params: Params{}}
	return q
}

// Select sets the selected columns. Each argument may hold several
// comma-separated columns; an empty list selects "*".
func (q *Query) Select(cols ...string) *Query {
	q.selects = splitColumns(cols)
	return q
}

// AddSelect appends selected columns.
func (q *Query) AddSelect(cols ...string) *Query {
	q.selects = append(q.selects, splitColumns(cols)...)
	return q
}

// SelectOption sets a keyword placed after SELECT, e.g. "SQL_CALC_FOUND_ROWS".
func (q *Query) SelectOption(option string) *Query {
	q.selectOption = option
	return q
}

// Distinct toggles SELECT DISTINCT.
func (q *Query) Distinct(v bool) *Query {
	q.distinct = v
	return q
}

// From sets the tables to select from. Aliases may be written as
// "tbl_user u" or "tbl_user AS u".
func (q *Query) From(tables ...string) *Query {
	q.from = splitColumns(tables)
	return q
}

// Where sets the WHERE condition. cond may be a Condition, a raw SQL string
// with optional positional args, a map (treated as HashExp), or nil to clear.
func (q *Query) Where(cond any, args ...any) *Query {
	q.where = toCondition(cond, args)
	return q
}

// AndWhere combines cond with the existing WHERE using AND.
func (q *Query) AndWhere(cond any, args ...any) *Query {
	q.where = combine(q.where, toCondition(cond, args), And)
	return q
}

// OrWhere combines cond with the existing WHERE using OR.
func (q *Query) OrWhere(cond any, args ...any) *Query {
	q.where = combine(q.where, toCondition(cond, args), Or)
	return q
}

// Join appends a JOIN clause of the given type.
func (q *Query) Join(typ, table string, on any, args ...any) *Query {
	q.joins = append(q.joins, JoinInfo{Type: typ, Table: table, On: toCondition(on, args)})
	return q
}

// InnerJoin appends an INNER JOIN.
func (q *Query) InnerJoin(table string, on any, args ...any) *Query {
	return q.Join(InnerJoinType, table, on, args...)
}

// LeftJoin appends a LEFT JOIN.
func (q *Query) LeftJoin(table string, on any, args ...any) *Query {
	return q.Join(LeftJoinType, table, on, args...)
}

// RightJoin appends a RIGHT JOIN.
func (q *Query) RightJoin(table string, on any, args ...any) *Query {
	return q.Join(RightJoinType, table, on, args...)
}

// CrossJoin appends a CROSS JOIN.
func (q *Query) CrossJoin(table string) *Query {
	return q.Join(CrossJoinType, table, nil)
}

// NaturalJoin appends a NATURAL JOIN.
func (q *Query) NaturalJoin(table string) *Query {
	return q.Join(NaturalJoinType, table, nil)
}

// GroupBy sets the GROUP BY columns.
func (q *Query) GroupBy(cols ...string) *Query {
	q.groupBy = splitColumns(cols)
	return q
}

// AddGroupBy appends GROUP BY columns.
func (q *Query) AddGroupBy(cols ...string) *Query {
	q.groupBy = append(q.groupBy, splitColumns(cols)...)
	return q
}

// Having sets the HAVING condition; it accepts the same forms as Where.
func (q *Query) Having(cond any, args ...any) *Query {
	q.having = toCondition(cond, args)
	return q
}

// AndHaving combines cond with the existing HAVING using AND.
func (q *Query) AndHaving(cond any, args ...any) *Query {
	q.having = combine(q.having, toCondition(cond, args), And)
	return q
}

// OrHaving combines cond with the existing HAVING using OR.
func (q *Query) OrHaving(cond any, args ...any) *Query {
	q.having = combine(q.having, toCondition(cond, args), Or)
	return q
}

// OrderBy sets the ORDER BY columns, e.g. OrderBy("name", "id DESC").
func (q *Query) OrderBy(cols ...string) *Query {
	q.orderBy = splitColumns(cols)
	return q
}

// AddOrderBy appends ORDER BY columns.
func (q *Query) AddOrderBy(cols ...string) *Query {
	q.orderBy = append(q.orderBy, splitColumns(cols)...)
	return q
}

// Limit sets LIMIT; a negative value removes it.
func (q *Query) Limit(n int64) *Query {
	q.limit = normalizeLimit(n)
	return q
}

// Offset sets OFFSET; a negative value removes it.
func (q *Query) Offset(n int64) *Query {
	q.offset = normalizeLimit(n)
	return q
}

// Union appends a UNION member: a raw SQL string or a *Query.
func (q *Query) Union(sub any) *Query {
	switch sub.(type) {
	case string, *Query:
		q.unions = append(q.unions, sub)
	default:
		panic(fmt.Sprintf("Query.Union expects string or *Query, got %T", sub))
	}
	return q
}

// AddParams merges named parameter values, overwriting existing names.
func (q *Query) AddParams(params Params) *Query {
	if q.params == nil {
		q.params = Params{}
	}
	for k, v := range params {
		q.params[normalizeParamName(k)] = v
	}
	return q
}

// Params returns the named parameters bound to the query.
func (q *Query) Params() Params {
	return q.params
}

// GetLimit returns the LIMIT value, or -1 when unset.
func (q *Query) GetLimit() int64 { return q.limit }

// GetOffset returns the OFFSET value, or -1 when unset.
func (q *Query) GetOffset() int64 { return q.offset }

// GetWhere returns the WHERE condition tree.
func (q *Query) GetWhere() Condition { return q.where }

// MergeWith merges other into q. Selected columns are united; WHERE and
// HAVING are combined with AND (useAnd) or OR when both are set; LIMIT and
// OFFSET are taken from other when set; ORDER BY, GROUP BY, JOIN and UNION
// are concatenated.
func (q *Query) MergeWith(other *Query, useAnd bool) *Query {
	if other == nil {
		return q
	}
	op := Or
	if useAnd {
		op = And
	}

	if len(q.selects) == 0 {
		q.selects = append([]string(nil), other.selects...)
	} else if len(other.selects) > 0 {
		q.selects = appendUnique(q.selects, other.selects)
	}
	if other.selectOption != "" {
		q.selectOption = other.selectOption
	}
	q.distinct = q.distinct || other.distinct
	q.from = appendUnique(q.from, other.from)

	q.where = combine(q.where, other.where, op)
	q.having = combine(q.having, other.having, op)

	if other.limit >= 0 {
		q.limit = other.limit
	}
	if other.offset >= 0 {
		q.offset = other.offset
	}

	q.orderBy = append(q.orderBy, other.orderBy...)
	q.groupBy = append(q.groupBy, other.groupBy...)
	q.joins = append(q.joins, other.joins...)
	q.unions = append(q.unions, other.unions...)
	return q.AddParams(other.params)
}

// Clone returns a deep copy of the query. Condition trees are shared; they
// are not modified after construction.
func (q *Query) Clone() *Query {
	c := *q
	c.selects = cloneStrings(q.selects)
	c.from = cloneStrings(q.from)
	c.groupBy = cloneStrings(q.groupBy)
	c.orderBy = cloneStrings(q.orderBy)
	if q.joins != nil {
		c.joins = append([]JoinInfo(nil), q.joins...)
	}
	if q.unions != nil {
		c.unions = make([]any, len(q.unions))
		for i, u := range q.unions {
			if sub, ok := u.(*Query); ok {
				u = sub.Clone()
			}
			c.unions[i] = u
		}
	}
	c.params = make(Params, len(q.params))
	for k, v := range q.params {
		c.params[k] = v
	}
	return &c
}

// Map keys used by ToMap and QueryFromMap.
const (
	KeySelect       = "select"
	KeySelectOption = "selectOption"
	KeyDistinct     = "distinct"
	KeyFrom         = "from"
	KeyJoin         = "join"
	KeyWhere        = "where"
	KeyGroup        = "group"
	KeyHaving       = "having"
	KeyOrder        = "order"
	KeyLimit        = "limit"
	KeyOffset       = "offset"
	KeyUnion        = "union"
	KeyParams       = "params"
)

// ToMap exports the non-default clauses of the query.
func (q *Query) ToMap() map[string]any {
	m := make(map[string]any)
	if len(q.selects) > 0 {
		m[KeySelect] = cloneStrings(q.selects)
	}
	if q.selectOption != "" {
		m[KeySelectOption] = q.selectOption
	}
	if q.distinct {
		m[KeyDistinct] = true
	}
	if len(q.from) > 0 {
		m[KeyFrom] = cloneStrings(q.from)
	}
	if len(q.joins) > 0 {
		m[KeyJoin] = append([]JoinInfo(nil), q.joins...)
	}
	if q.where != nil {
		m[KeyWhere] = q.where
	}
	if len(q.groupBy) > 0 {
		m[KeyGroup] = cloneStrings(q.groupBy)
	}
	if q.having != nil {
		m[KeyHaving] = q.having
	}
	if len(q.orderBy) > 0 {
		m[KeyOrder] = cloneStrings(q.orderBy)
	}
	if q.limit >= 0 {
		m[KeyLimit] = q.limit
	}
	if q.offset >= 0 {
		m[KeyOffset] = q.offset
	}
	if len(q.unions) > 0 {
		m[KeyUnion] = append([]any(nil), q.unions...)
	}
	if len(q.params) > 0 {
		params := make(Params, len(q.params))
		for k, v := range q.params {
			params[k] = v
		}
		m[KeyParams] = params
	}
	return m
}

// QueryFromMap builds a query from the keys produced by ToMap. String
// values are accepted wherever a list is expected.
func QueryFromMap(m map[string]any) (*Query, error) {
	q := NewQuery()
	for key, v := range m {
		var err error
		switch key {
		case KeySelect:
			q.selects, err = stringList(key, v)
		case KeySelectOption:
			q.selectOption, err = stringValue(key, v)
		case KeyDistinct:
			b, ok := v.(bool)
			if !ok {
				err = badMapValue(key, v)
			}
			q.distinct = b
		case KeyFrom:
			q.from, err = stringList(key, v)
		case KeyJoin:
			joins, ok := v.([]JoinInfo)
			if !ok {
				err = badMapValue(key, v)
			}
			q.joins = append([]JoinInfo(nil), joins...)
		case KeyWhere:
			q.where = toCondition(v, nil)
		case KeyGroup:
			q.groupBy, err = stringList(key, v)
		case KeyHaving:
			q.having = toCondition(v, nil)
		case KeyOrder:
			q.orderBy, err = stringList(key, v)
		case KeyLimit:
			q.limit, err = intValue(key, v)
		case KeyOffset:
			q.offset, err = intValue(key, v)
		case KeyUnion:
			unions, ok := v.([]any)
			if !ok {
				err = badMapValue(key, v)
			}
			for _, u := range unions {
				switch u.(type) {
				case string, *Query:
					q.unions = append(q.unions, u)
				default:
					err = badMapValue(key, u)
				}
			}
		case KeyParams:
			switch p := v.(type) {
			case Params:
				q.AddParams(p)
			case map[string]any:
				q.AddParams(p)
			default:
				err = badMapValue(key, v)
			}
		default:
			err = fmt.Errorf("%w: unknown query key %q", ErrInvalidQuery, key)
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// toCondition normalizes the forms accepted by Where/Having/Join.
func toCondition(cond any, args []any) Condition {
	switch c := cond.(type) {
	case nil:
		return nil
	case Condition:
		return c
	case string:
		if strings.TrimSpace(c) == "" {
			return nil
		}
		return &Exp{SQL: c, Args: args}
	case map[string]any:
		return HashExp(c)
	case Params:
		return HashExp(c)
	default:
		panic(fmt.Sprintf("condition must be string, map or Condition, got %T", cond))
	}
}

func combine(left, right Condition, op func(...Condition) *AndOrExp) Condition {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	default:
		return op(left, right)
	}
}

// splitColumns splits comma-separated column lists unless the text holds
// an expression.
func splitColumns(cols []string) []string {
	var out []string
	for _, c := range cols {
		if strings.Contains(c, "(") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
			continue
		}
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			dst = append(dst, s)
		}
	}
	return dst
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func normalizeLimit(n int64) int64 {
	if n < 0 {
		return -1
	}
	return n
}

func badMapValue(key string, v any) error {
	return fmt.Errorf("%w: unexpected %T for key %q", ErrInvalidQuery, v, key)
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", badMapValue(key, v)
	}
	return s, nil
}

func stringList(key string, v any) ([]string, error) {
	switch s := v.(type) {
	case string:
		return splitColumns([]string{s}), nil
	case []string:
		return cloneStrings(s), nil
	default:
		return nil, badMapValue(key, v)
	}
}

func intValue(key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return normalizeLimit(int64(n)), nil
	case int64:
		return normalizeLimit(n), nil
	case int32:
		return normalizeLimit(int64(n)), nil
	default:
		return 0, badMapValue(key, v)
	}
}
