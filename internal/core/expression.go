// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

// Condition is a node of a WHERE/HAVING condition tree. The set of variants
// is closed: Exp, HashExp, CompareExp, InExp, BetweenExp, LikeExp, AndOrExp,
// NotExp and ExistsExp. The QueryBuilder compiles them to SQL with named
// placeholders.
//
// Example:
//
//	q.Where(daokit.And(
//	    daokit.HashExp{"status": 1},
//	    daokit.GreaterThan("age", 18),
//	))
type Condition interface {
	condition()
}

// Exp is a raw SQL fragment emitted verbatim. Positional "?" placeholders in
// SQL take their values from Args; named placeholders take theirs from Params.
// An Exp may also be used as a value, e.g. Insert(..., {"created": NewExp("NOW()")}).
type Exp struct {
	SQL    string
	Args   []any
	Params Params
}

// NewExp creates a raw SQL expression with optional positional arguments.
func NewExp(sql string, args ...any) *Exp {
	return &Exp{SQL: sql, Args: args}
}

// Bind attaches named parameter values to the expression.
func (e *Exp) Bind(params Params) *Exp {
	if e.Params == nil {
		e.Params = Params{}
	}
	for k, v := range params {
		e.Params[normalizeParamName(k)] = v
	}
	return e
}

func (e *Exp) String() string { return e.SQL }

// HashExp is a column → value map joined with AND. Keys are compiled in
// sorted order. A nil value means IS NULL, a slice means IN, and a Condition
// is nested in parentheses.
//
// Example:
//
//	daokit.HashExp{
//	    "status":     1,              // "status"=:p0
//	    "age":        []int{18, 19},  // "age" IN (:p1, :p2)
//	    "deleted_at": nil,            // "deleted_at" IS NULL
//	}
type HashExp map[string]any

// CompareExp compares a column with a value (=, <>, >, <, >=, <=).
type CompareExp struct {
	Col      string
	Operator string
	Value    any
}

// Eq generates "col=value", or "col IS NULL" for a nil value.
func Eq(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: "=", Value: value}
}

// NotEq generates "col<>value", or "col IS NOT NULL" for a nil value.
func NotEq(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: "<>", Value: value}
}

// GreaterThan generates "col>value".
func GreaterThan(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: ">", Value: value}
}

// LessThan generates "col<value".
func LessThan(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: "<", Value: value}
}

// GreaterOrEqual generates "col>=value".
func GreaterOrEqual(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: ">=", Value: value}
}

// LessOrEqual generates "col<=value".
func LessOrEqual(col string, value any) *CompareExp {
	return &CompareExp{Col: col, Operator: "<=", Value: value}
}

// InExp is an IN or NOT IN predicate over values or a sub-query.
type InExp struct {
	Col    string
	Values []any
	Not    bool
}

// In generates "col IN (...)". An empty list yields "0=1"; a single value
// yields "col=value". A single *Query value becomes a sub-select.
func In(col string, values ...any) *InExp {
	return &InExp{Col: col, Values: values}
}

// NotIn generates "col NOT IN (...)". An empty list yields no condition;
// a single value yields "col<>value".
func NotIn(col string, values ...any) *InExp {
	return &InExp{Col: col, Values: values, Not: true}
}

// BetweenExp is a BETWEEN or NOT BETWEEN predicate.
type BetweenExp struct {
	Col      string
	From, To any
	Not      bool
}

// Between generates "col BETWEEN from AND to".
func Between(col string, from, to any) *BetweenExp {
	return &BetweenExp{Col: col, From: from, To: to}
}

// NotBetween generates "col NOT BETWEEN from AND to".
func NotBetween(col string, from, to any) *BetweenExp {
	return &BetweenExp{Col: col, From: from, To: to, Not: true}
}

// LikeExp matches a column against one or more patterns. Special characters
// in the values are escaped and wildcards added per Match.
type LikeExp struct {
	Col         string
	Values      []string
	Like        string // "LIKE" or "NOT LIKE"
	Or          bool
	Left, Right bool
	Escape      []string
}

// DefaultLikeEscape specifies the default special character escaping for LIKE expressions.
// The strings at 2i positions are the special characters to be escaped while those at 2i+1
// positions are the corresponding escaped versions.
var DefaultLikeEscape = []string{"\\", "\\\\", "%", "\\%", "_", "\\_"}

// Like generates "col LIKE :p0 AND col LIKE :p1 ..." with values wrapped in %.
func Like(col string, values ...string) *LikeExp {
	return &LikeExp{
		Col:    col,
		Values: values,
		Like:   "LIKE",
		Left:   true,
		Right:  true,
		Escape: DefaultLikeEscape,
	}
}

// NotLike generates NOT LIKE predicates joined with AND.
func NotLike(col string, values ...string) *LikeExp {
	exp := Like(col, values...)
	exp.Like = "NOT LIKE"
	return exp
}

// OrLike generates LIKE predicates joined with OR.
func OrLike(col string, values ...string) *LikeExp {
	exp := Like(col, values...)
	exp.Or = true
	return exp
}

// OrNotLike generates NOT LIKE predicates joined with OR.
func OrNotLike(col string, values ...string) *LikeExp {
	exp := NotLike(col, values...)
	exp.Or = true
	return exp
}

// Match sets wildcard matching on the left and/or right of the values.
// Match(false, true) generates "value%".
func (e *LikeExp) Match(left, right bool) *LikeExp {
	e.Left, e.Right = left, right
	return e
}

// EscapeChars replaces the escaping pairs: [special1, escaped1, special2, escaped2, ...].
// Passing no pairs disables escaping.
func (e *LikeExp) EscapeChars(chars ...string) *LikeExp {
	if len(chars)%2 != 0 {
		panic("LikeExp.EscapeChars requires even number of strings")
	}
	e.Escape = chars
	return e
}

// AndOrExp joins conditions with AND or OR, parenthesising each non-empty one.
type AndOrExp struct {
	Conds []Condition
	Op    string
}

// And joins conditions with AND. Nil and empty conditions are dropped.
func And(conds ...Condition) *AndOrExp {
	return &AndOrExp{Conds: conds, Op: "AND"}
}

// Or joins conditions with OR. Nil and empty conditions are dropped.
func Or(conds ...Condition) *AndOrExp {
	return &AndOrExp{Conds: conds, Op: "OR"}
}

// NotExp negates a condition.
type NotExp struct {
	Cond Condition
}

// Not generates "NOT (cond)".
func Not(cond Condition) *NotExp {
	return &NotExp{Cond: cond}
}

// ExistsExp is an EXISTS or NOT EXISTS sub-query predicate.
type ExistsExp struct {
	Query *Query
	Not   bool
}

// Exists generates "EXISTS (sub-query)".
func Exists(q *Query) *ExistsExp {
	return &ExistsExp{Query: q}
}

// NotExists generates "NOT EXISTS (sub-query)".
func NotExists(q *Query) *ExistsExp {
	return &ExistsExp{Query: q, Not: true}
}

func (*Exp) condition()        {}
func (HashExp) condition()     {}
func (*CompareExp) condition() {}
func (*InExp) condition()      {}
func (*BetweenExp) condition() {}
func (*LikeExp) condition()    {}
func (*AndOrExp) condition()   {}
func (*NotExp) condition()     {}
func (*ExistsExp) condition()  {}
