package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coregx/daokit/internal/dialects"
)

// Params represents named parameter values for query binding. Keys carry a
// leading colon (":id"); names given without one are normalized on entry.
//
// Example:
//
//	conn.CreateCommand("SELECT * FROM {{user}} WHERE [[id]]=:id").
//	    Bind(daokit.Params{":id": 1}).
//	    QueryRow()
type Params map[string]any

// quoteRegex matches table and column quoting syntax.
// {{table_name}} - prefixed and quoted table name
// [[column_name]] - quoted column name
var quoteRegex = regexp.MustCompile(`(\{\{[\w\-. %]+\}\}|\[\[[\w\-. ]+\]\])`)

func normalizeParamName(name string) string {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
	if !strings.HasPrefix(name, ":") {
		return ":" + name
	}
	return name
}

// expandIdentifiers replaces {{table}} with the prefixed, quoted table name
// and [[column]] with the quoted column name.
func expandIdentifiers(sql, prefix string, quoteTable, quoteColumn func(string) string) string {
	if !strings.Contains(sql, "{{") && !strings.Contains(sql, "[[") {
		return sql
	}
	return quoteRegex.ReplaceAllStringFunc(sql, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if match[0] == '{' {
			if strings.Contains(name, "%") {
				return quoteTable(strings.ReplaceAll(name, "%", prefix))
			}
			return quoteTable(prefix + name)
		}
		return quoteColumn(name)
	})
}

// paramRef is one placeholder occurrence: a named value or the index of a
// positional argument.
type paramRef struct {
	name  string
	index int
}

// bindPlan is a statement rewritten into the dialect's placeholder style
// together with the order in which values must be supplied.
type bindPlan struct {
	sql  string
	refs []paramRef
}

// compileBindPlan rewrites :name, {:name} and ? placeholders into dialect
// placeholders. Quoted strings, quoted identifiers and "::" casts are
// copied untouched.
func compileBindPlan(sql string, d dialects.Dialect) *bindPlan {
	plan := &bindPlan{}
	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	positional := 0

	emit := func(ref paramRef) {
		plan.refs = append(plan.refs, ref)
		sb.WriteString(d.Placeholder(len(plan.refs)))
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				sb.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			sb.WriteString(sql[i : i+end+2])
			i += end + 1
		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			sb.WriteString("::")
			i++
		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isIdentChar(sql[j]) {
				j++
			}
			emit(paramRef{name: sql[i:j], index: -1})
			i = j - 1
		case c == '{' && strings.HasPrefix(sql[i:], "{:"):
			end := strings.IndexByte(sql[i:], '}')
			name := ""
			if end > 2 {
				name = sql[i+2 : i+end]
			}
			if name == "" || !validIdent(name) {
				sb.WriteByte(c)
				continue
			}
			emit(paramRef{name: ":" + name, index: -1})
			i += end
		case c == '?':
			emit(paramRef{index: positional})
			positional++
		default:
			sb.WriteByte(c)
		}
	}
	plan.sql = sb.String()
	return plan
}

// values orders the bound values for execution.
func (p *bindPlan) values(params Params, args []any) ([]any, error) {
	if len(p.refs) == 0 {
		return nil, nil
	}
	values := make([]any, len(p.refs))
	for i, ref := range p.refs {
		if ref.index >= 0 {
			if ref.index >= len(args) {
				return nil, fmt.Errorf("%w: positional argument %d", ErrMissingParam, ref.index+1)
			}
			values[i] = args[ref.index]
			continue
		}
		v, ok := params[ref.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, ref.name)
		}
		values[i] = v
	}
	return values, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func validIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
