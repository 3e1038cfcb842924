package logger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MaskValue replaces sensitive values in logged parameter dumps.
const MaskValue = "***REDACTED***"

// Sanitizer masks sensitive statement parameters before they are logged.
// Named parameters are matched by their own name, by the column they are
// compared with, or by their position in an INSERT column list. Positional
// arguments are masked wholesale once the statement mentions a sensitive column.
type Sanitizer struct {
	sensitiveFields []string
	patterns        []*regexp.Regexp
}

// DefaultSensitiveFields lists column names masked when none are configured.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

var (
	comparedParamRe = regexp.MustCompile(`(?i)([\w]+)[` + "`" + `"\]]?\s*(?:=|<>|!=|<=|>=|<|>|\bLIKE\b|\bIN\s*\()\s*(:\w+)`)
	insertListRe    = regexp.MustCompile(`(?is)\(([^()]*)\)\s*VALUES\s*\(([^()]*)\)`)
)

// NewSanitizer creates a sanitizer for the given column names, or for
// DefaultSensitiveFields when none are provided.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}
	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}
	return &Sanitizer{sensitiveFields: sensitiveFields, patterns: patterns}
}

func (s *Sanitizer) sensitive(text string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of params with sensitive values replaced by MaskValue.
func (s *Sanitizer) MaskParams(sql string, params map[string]any) map[string]any {
	if len(params) == 0 {
		return params
	}

	flagged := make(map[string]bool)
	for _, m := range comparedParamRe.FindAllStringSubmatch(sql, -1) {
		if s.sensitive(m[1]) {
			flagged[m[2]] = true
		}
	}
	for _, m := range insertListRe.FindAllStringSubmatch(sql, -1) {
		cols := strings.Split(m[1], ",")
		vals := strings.Split(m[2], ",")
		for i := 0; i < len(cols) && i < len(vals); i++ {
			if s.sensitive(strings.Trim(strings.TrimSpace(cols[i]), "`\"[]")) {
				flagged[strings.TrimSpace(vals[i])] = true
			}
		}
	}

	masked := make(map[string]any, len(params))
	for name, value := range params {
		key := name
		if !strings.HasPrefix(key, ":") {
			key = ":" + key
		}
		if flagged[key] || s.sensitive(strings.TrimPrefix(key, ":")) {
			masked[name] = MaskValue
		} else {
			masked[name] = value
		}
	}
	return masked
}

// MaskArgs masks positional arguments. Their columns cannot be resolved
// reliably, so every argument is masked when sql mentions a sensitive column.
func (s *Sanitizer) MaskArgs(sql string, args []any) []any {
	if len(args) == 0 || !s.sensitive(sql) {
		return args
	}
	masked := make([]any, len(args))
	for i := range masked {
		masked[i] = MaskValue
	}
	return masked
}

// FormatParams renders named parameters in name order.
func (s *Sanitizer) FormatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + formatValue(params[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatArgs renders positional arguments.
func (s *Sanitizer) FormatArgs(args []any) string {
	if len(args) == 0 {
		return "[]"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue truncates long values to keep records readable.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	var str string
	switch val := v.(type) {
	case []byte:
		str = string(val)
	case string:
		str = "'" + val + "'"
	default:
		str = fmt.Sprintf("%v", v)
	}
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
