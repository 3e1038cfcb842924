// Package security guards raw statements against injected SQL and writes
// an audit trail of executed statements.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL is returned when a statement or bound value matches an
// injection rule.
var ErrUnsafeSQL = errors.New("unsafe SQL rejected")

type rule struct {
	name string
	re   *regexp.Regexp
}

// Rules are matched against the upper-cased statement after string
// literals have been blanked, so values written inside quotes never trip them.
var defaultRules = compileRules([][2]string{
	{"line comment", `--\s`},
	{"block comment", `/\*`},
	{"hash comment", `#\s`},
	{"stacked statement", `;\s*(DROP|DELETE|TRUNCATE|ALTER|CREATE|INSERT|UPDATE|GRANT)\b`},
	{"tautology", `\bOR\s+1\s*=\s*1\b`},
	{"tautology", `\bOR\s+''\s*=\s*''`},
	{"contradiction", `\bAND\s+1\s*=\s*0\b`},
	{"timing function", `\b(PG_SLEEP|SLEEP|BENCHMARK)\s*\(`},
	{"timing function", `\bWAITFOR\s+DELAY\b`},
	{"command execution", `\bXP_CMDSHELL\b|\bSP_EXECUTESQL\b|\bEXEC(UTE)?\s*\(`},
})

// strictRules may reject legitimate statements.
var strictRules = compileRules([][2]string{
	{"union select", `\bUNION\s+(ALL\s+)?\(?\s*SELECT\b`},
	{"catalog access", `\bINFORMATION_SCHEMA\b|\bPG_CATALOG\b|\bSQLITE_MASTER\b`},
	{"exec", `\bEXEC(UTE)?\b`},
})

// valueIndicators flag bound string values that look like an attempt to
// break out of a literal.
var valueIndicators = []string{"'--", "';", "' OR ", "' AND ", "' UNION ", "' DROP ", "/*", "*/", "XP_"}

// Validator checks statement text and bound values against injection rules.
type Validator struct {
	rules       []rule
	checkValues bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStrict adds rules that reject UNION selects, catalog access and EXEC.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		if strict {
			v.rules = append(v.rules, strictRules...)
		}
	}
}

// WithValueChecks makes CheckValues inspect bound string values too.
func WithValueChecks(enabled bool) ValidatorOption {
	return func(v *Validator) {
		v.checkValues = enabled
	}
}

// NewValidator creates a validator with the default rules.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{rules: append([]rule(nil), defaultRules...)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CheckSQL returns an error wrapping ErrUnsafeSQL when the statement
// matches a rule.
func (v *Validator) CheckSQL(sql string) error {
	normalized := strings.ToUpper(blankLiterals(sql))
	for _, r := range v.rules {
		if r.re.MatchString(normalized) {
			return fmt.Errorf("%w: %s", ErrUnsafeSQL, r.name)
		}
	}
	return nil
}

// CheckValues inspects string values when value checks are enabled.
func (v *Validator) CheckValues(values []any) error {
	if !v.checkValues {
		return nil
	}
	for i, value := range values {
		s, ok := value.(string)
		if !ok {
			continue
		}
		upper := strings.ToUpper(s)
		for _, ind := range valueIndicators {
			if strings.Contains(upper, ind) {
				return fmt.Errorf("%w: suspicious value at position %d", ErrUnsafeSQL, i+1)
			}
		}
	}
	return nil
}

// blankLiterals empties single-quoted literals, honouring doubled quotes.
// An unterminated literal is kept as is.
func blankLiterals(sql string) string {
	if !strings.Contains(sql, "'") {
		return sql
	}
	var sb strings.Builder
	sb.Grow(len(sql))
	for i := 0; i < len(sql); i++ {
		if sql[i] != '\'' {
			sb.WriteByte(sql[i])
			continue
		}
		end := -1
		for j := i + 1; j < len(sql); j++ {
			if sql[j] != '\'' {
				continue
			}
			if j+1 < len(sql) && sql[j+1] == '\'' {
				j++
				continue
			}
			end = j
			break
		}
		if end < 0 {
			sb.WriteString(sql[i:])
			break
		}
		sb.WriteString("''")
		i = end
	}
	return sb.String()
}

func compileRules(defs [][2]string) []rule {
	rules := make([]rule, len(defs))
	for i, d := range defs {
		rules[i] = rule{name: d[0], re: regexp.MustCompile(d[1])}
	}
	return rules
}
