package core

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/daokit/internal/dialects"
)

// QueryBuilder compiles Query objects and DML/DDL requests into SQL for one
// dialect. Values are bound as generated named placeholders (:p0, :p1, ...)
// that never collide with names already present in the query's params.
type QueryBuilder struct {
	dialect dialects.Dialect
}

// NewQueryBuilder creates a builder for the dialect.
func NewQueryBuilder(d dialects.Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: d}
}

// Dialect returns the builder's dialect.
func (qb *QueryBuilder) Dialect() dialects.Dialect {
	return qb.dialect
}

var (
	aliasRe    = regexp.MustCompile(`^(.*?)(?i:\s+as\s+|\s+)([\w\-.]+)$`)
	orderDirRe = regexp.MustCompile(`(?i)^(.*?)\s+(asc|desc)$`)
)

// QuoteTableName quotes a possibly schema-qualified table name. Names that
// contain "(" or a "{{" placeholder are returned unchanged.
func (qb *QueryBuilder) QuoteTableName(name string) string {
	if strings.Contains(name, "(") || strings.Contains(name, "{{") {
		return name
	}
	if !strings.Contains(name, ".") {
		return qb.dialect.QuoteSimpleTableName(name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = qb.dialect.QuoteSimpleTableName(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// QuoteColumnName quotes a possibly table-qualified column name. "*" and
// names containing "(", "[[" or "{{" are returned unchanged.
func (qb *QueryBuilder) QuoteColumnName(name string) string {
	if strings.Contains(name, "(") || strings.Contains(name, "[[") || strings.Contains(name, "{{") {
		return name
	}
	if pos := strings.LastIndex(name, "."); pos >= 0 {
		return qb.QuoteTableName(name[:pos]) + "." + qb.dialect.QuoteSimpleColumnName(name[pos+1:])
	}
	return qb.dialect.QuoteSimpleColumnName(name)
}

// ColumnType maps an abstract column type to the dialect's native type.
func (qb *QueryBuilder) ColumnType(abstract string) string {
	return qb.dialect.ColumnType(abstract)
}

// Build compiles q into SQL and the full parameter set (the query's own
// params plus generated ones).
func (qb *QueryBuilder) Build(q *Query) (string, Params, error) {
	s, err := qb.newState(nil, q)
	if err != nil {
		return "", nil, err
	}
	sql, err := s.query(q)
	if err != nil {
		return "", nil, err
	}
	return sql, s.params, nil
}

// buildState carries the parameter set of one compilation.
type buildState struct {
	qb        *QueryBuilder
	params    Params
	generated map[string]struct{}
	counter   int
}

// newState seeds the parameter set with params and with every user
// parameter nested in roots, so generated names skip all of them.
func (qb *QueryBuilder) newState(params Params, roots ...any) (*buildState, error) {
	s := &buildState{qb: qb, params: make(Params, len(params)), generated: map[string]struct{}{}}
	if err := s.merge(params); err != nil {
		return nil, err
	}
	for _, r := range roots {
		if err := s.reserve(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *buildState) merge(params Params) error {
	for k, v := range params {
		name := normalizeParamName(k)
		if _, ok := s.generated[name]; ok {
			return fmt.Errorf("%w: parameter %s collides with a generated placeholder", ErrInvalidQuery, name)
		}
		s.params[name] = v
	}
	return nil
}

// reserve merges the params of every query and expression reachable from v.
func (s *buildState) reserve(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case *Query:
		if x == nil {
			return nil
		}
		if err := s.merge(x.params); err != nil {
			return err
		}
		for _, j := range x.joins {
			if err := s.reserve(j.On); err != nil {
				return err
			}
		}
		if err := s.reserve(x.where); err != nil {
			return err
		}
		if err := s.reserve(x.having); err != nil {
			return err
		}
		for _, u := range x.unions {
			if err := s.reserve(u); err != nil {
				return err
			}
		}
	case *Exp:
		if x == nil {
			return nil
		}
		if err := s.merge(x.Params); err != nil {
			return err
		}
		return s.reserveAll(x.Args)
	case HashExp:
		for _, val := range x {
			if values, ok := sliceValues(val); ok {
				if err := s.reserveAll(values); err != nil {
					return err
				}
				continue
			}
			if err := s.reserve(val); err != nil {
				return err
			}
		}
	case map[string]any:
		return s.reserve(HashExp(x))
	case *CompareExp:
		return s.reserve(x.Value)
	case *InExp:
		return s.reserveAll(flattenValues(x.Values))
	case *BetweenExp:
		if err := s.reserve(x.From); err != nil {
			return err
		}
		return s.reserve(x.To)
	case *AndOrExp:
		for _, c := range x.Conds {
			if err := s.reserve(c); err != nil {
				return err
			}
		}
	case *NotExp:
		return s.reserve(x.Cond)
	case *ExistsExp:
		return s.reserve(x.Query)
	}
	return nil
}

func (s *buildState) reserveAll(values []any) error {
	for _, v := range values {
		if err := s.reserve(v); err != nil {
			return err
		}
	}
	return nil
}

// bind stores v under the next free generated name.
func (s *buildState) bind(v any) string {
	for {
		name := ":p" + strconv.Itoa(s.counter)
		s.counter++
		if _, taken := s.params[name]; !taken {
			s.params[name] = v
			s.generated[name] = struct{}{}
			return name
		}
	}
}

// value renders v as a placeholder, an inlined expression or a sub-select.
func (s *buildState) value(v any) (string, error) {
	switch x := v.(type) {
	case *Exp:
		return s.exp(x)
	case *Query:
		sub, err := s.query(x)
		if err != nil {
			return "", err
		}
		return "(" + sub + ")", nil
	default:
		return s.bind(v), nil
	}
}

// exp merges the expression's params and turns its positional "?" markers
// into generated names. Without Args the markers are left for the caller.
func (s *buildState) exp(e *Exp) (string, error) {
	if err := s.merge(e.Params); err != nil {
		return "", err
	}
	if len(e.Args) == 0 {
		return e.SQL, nil
	}
	var sb strings.Builder
	next := 0
	sql := e.SQL
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch c {
		case '\'', '"', '`':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				sb.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			sb.WriteString(sql[i : i+end+2])
			i += end + 1
		case '?':
			if next >= len(e.Args) {
				return "", fmt.Errorf("%w: %q has more placeholders than arguments", ErrInvalidQuery, e.SQL)
			}
			ph, err := s.value(e.Args[next])
			if err != nil {
				return "", err
			}
			next++
			sb.WriteString(ph)
		default:
			sb.WriteByte(c)
		}
	}
	if next != len(e.Args) {
		return "", fmt.Errorf("%w: %q has %d placeholders but %d arguments", ErrInvalidQuery, e.SQL, next, len(e.Args))
	}
	return sb.String(), nil
}

func (s *buildState) query(q *Query) (string, error) {
	if err := s.merge(q.params); err != nil {
		return "", err
	}
	qb := s.qb

	clauses := []string{qb.buildSelect(q)}
	if len(q.from) > 0 {
		clauses = append(clauses, "FROM "+qb.quoteTableNames(q.from))
	}

	for _, j := range q.joins {
		clause := j.Type + " " + qb.quoteTableNames([]string{j.Table})
		on, err := s.cond(j.On)
		if err != nil {
			return "", err
		}
		if on != "" {
			clause += " ON " + on
		}
		clauses = append(clauses, clause)
	}

	where, err := s.cond(q.where)
	if err != nil {
		return "", err
	}
	if where != "" {
		clauses = append(clauses, "WHERE "+where)
	}

	if len(q.groupBy) > 0 {
		clauses = append(clauses, "GROUP BY "+qb.quoteColumns(q.groupBy))
	}

	having, err := s.cond(q.having)
	if err != nil {
		return "", err
	}
	if having != "" {
		clauses = append(clauses, "HAVING "+having)
	}

	if len(q.orderBy) > 0 {
		clauses = append(clauses, "ORDER BY "+qb.buildOrderBy(q.orderBy))
	}

	if lo := qb.dialect.LimitOffset(q.limit, q.offset); lo != "" {
		clauses = append(clauses, lo)
	}

	for _, u := range q.unions {
		switch sub := u.(type) {
		case string:
			clauses = append(clauses, qb.dialect.Union(sub))
		case *Query:
			subSQL, err := s.query(sub)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, qb.dialect.Union(subSQL))
		}
	}

	return strings.Join(clauses, "\n"), nil
}

func (qb *QueryBuilder) buildSelect(q *Query) string {
	sql := "SELECT"
	if q.distinct {
		sql += " DISTINCT"
	}
	if q.selectOption != "" {
		sql += " " + q.selectOption
	}
	if len(q.selects) == 0 {
		return sql + " *"
	}
	cols := make([]string, len(q.selects))
	for i, col := range q.selects {
		cols[i] = qb.quoteSelectColumn(col)
	}
	return sql + " " + strings.Join(cols, ", ")
}

func (qb *QueryBuilder) quoteSelectColumn(col string) string {
	if strings.Contains(col, "(") {
		return col
	}
	if m := aliasRe.FindStringSubmatch(col); m != nil {
		return qb.QuoteColumnName(m[1]) + " AS " + qb.QuoteColumnName(m[2])
	}
	return qb.QuoteColumnName(col)
}

func (qb *QueryBuilder) quoteTableNames(tables []string) string {
	out := make([]string, len(tables))
	for i, t := range tables {
		switch {
		case strings.Contains(t, "("):
			out[i] = t
		default:
			if m := aliasRe.FindStringSubmatch(t); m != nil {
				out[i] = qb.QuoteTableName(m[1]) + " " + qb.QuoteTableName(m[2])
			} else {
				out[i] = qb.QuoteTableName(t)
			}
		}
	}
	return strings.Join(out, ", ")
}

func (qb *QueryBuilder) quoteColumns(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = qb.QuoteColumnName(c)
	}
	return strings.Join(out, ", ")
}

func (qb *QueryBuilder) buildOrderBy(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if strings.Contains(c, "(") {
			out[i] = c
			continue
		}
		if m := orderDirRe.FindStringSubmatch(c); m != nil {
			out[i] = qb.QuoteColumnName(m[1]) + " " + strings.ToUpper(m[2])
		} else {
			out[i] = qb.QuoteColumnName(c)
		}
	}
	return strings.Join(out, ", ")
}

// cond compiles a condition tree; an empty result means "no condition".
func (s *buildState) cond(c Condition) (string, error) {
	qb := s.qb
	switch e := c.(type) {
	case nil:
		return "", nil
	case *Exp:
		if e == nil {
			return "", nil
		}
		return s.exp(e)
	case HashExp:
		return s.hash(e)
	case *CompareExp:
		col := qb.QuoteColumnName(e.Col)
		if e.Value == nil {
			switch e.Operator {
			case "=":
				return col + " IS NULL", nil
			case "<>":
				return col + " IS NOT NULL", nil
			}
		}
		v, err := s.value(e.Value)
		if err != nil {
			return "", err
		}
		return col + e.Operator + v, nil
	case *InExp:
		return s.in(e.Col, flattenValues(e.Values), e.Not)
	case *BetweenExp:
		op := "BETWEEN"
		if e.Not {
			op = "NOT BETWEEN"
		}
		from, err := s.value(e.From)
		if err != nil {
			return "", err
		}
		to, err := s.value(e.To)
		if err != nil {
			return "", err
		}
		return qb.QuoteColumnName(e.Col) + " " + op + " " + from + " AND " + to, nil
	case *LikeExp:
		return s.like(e), nil
	case *AndOrExp:
		var parts []string
		for _, sub := range e.Conds {
			sql, err := s.cond(sub)
			if err != nil {
				return "", err
			}
			if sql != "" {
				parts = append(parts, sql)
			}
		}
		switch len(parts) {
		case 0:
			return "", nil
		case 1:
			return parts[0], nil
		}
		return "(" + strings.Join(parts, ") "+e.Op+" (") + ")", nil
	case *NotExp:
		sql, err := s.cond(e.Cond)
		if err != nil || sql == "" {
			return "", err
		}
		return "NOT (" + sql + ")", nil
	case *ExistsExp:
		if e.Query == nil {
			return "", fmt.Errorf("%w: EXISTS without sub-query", ErrInvalidQuery)
		}
		sub, err := s.query(e.Query)
		if err != nil {
			return "", err
		}
		op := "EXISTS"
		if e.Not {
			op = "NOT EXISTS"
		}
		return op + " (" + sub + ")", nil
	default:
		return "", fmt.Errorf("%w: unsupported condition %T", ErrInvalidQuery, c)
	}
}

func (s *buildState) hash(e HashExp) (string, error) {
	if len(e) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		var (
			sql string
			err error
		)
		switch v := e[key].(type) {
		case nil:
			sql = s.qb.QuoteColumnName(key) + " IS NULL"
		case *Query:
			sql, err = s.in(key, []any{v}, false)
		case *Exp:
			var ph string
			ph, err = s.exp(v)
			sql = s.qb.QuoteColumnName(key) + "=" + ph
		case Condition:
			if sql, err = s.cond(v); sql != "" {
				sql = "(" + sql + ")"
			}
		default:
			if values, ok := sliceValues(v); ok {
				sql, err = s.in(key, values, false)
			} else {
				var ph string
				ph, err = s.value(v)
				sql = s.qb.QuoteColumnName(key) + "=" + ph
			}
		}
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (s *buildState) in(col string, values []any, not bool) (string, error) {
	if len(values) == 0 {
		if not {
			return "", nil
		}
		return "0=1", nil
	}

	col = s.qb.QuoteColumnName(col)
	op := "IN"
	if not {
		op = "NOT IN"
	}

	if len(values) == 1 {
		switch v := values[0].(type) {
		case nil:
			if not {
				return col + " IS NOT NULL", nil
			}
			return col + " IS NULL", nil
		case *Query:
			sub, err := s.query(v)
			if err != nil {
				return "", err
			}
			return col + " " + op + " (" + sub + ")", nil
		default:
			ph, err := s.value(v)
			if err != nil {
				return "", err
			}
			if not {
				return col + "<>" + ph, nil
			}
			return col + "=" + ph, nil
		}
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			placeholders[i] = "NULL"
			continue
		}
		ph, err := s.value(v)
		if err != nil {
			return "", err
		}
		placeholders[i] = ph
	}
	return col + " " + op + " (" + strings.Join(placeholders, ", ") + ")", nil
}

func (s *buildState) like(e *LikeExp) string {
	if len(e.Values) == 0 {
		return ""
	}
	col := s.qb.QuoteColumnName(e.Col)
	escape := ""
	if len(e.Escape) > 0 && s.qb.dialect.Name() == "sqlite" {
		escape = ` ESCAPE '\'`
	}
	parts := make([]string, len(e.Values))
	for i, val := range e.Values {
		for j := 0; j+1 < len(e.Escape); j += 2 {
			val = strings.ReplaceAll(val, e.Escape[j], e.Escape[j+1])
		}
		if e.Left {
			val = "%" + val
		}
		if e.Right {
			val += "%"
		}
		parts[i] = col + " " + e.Like + " " + s.bind(val) + escape
	}
	join := " AND "
	if e.Or {
		join = " OR "
	}
	return strings.Join(parts, join)
}

// flattenValues expands In("id", []int{1, 2}) into individual values.
func flattenValues(values []any) []any {
	if len(values) != 1 {
		return values
	}
	if expanded, ok := sliceValues(values[0]); ok {
		return expanded
	}
	return values
}

// sliceValues reports whether v is a slice or array other than []byte and
// returns its elements.
func sliceValues(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
