// Package schema describes database tables and columns, coerces driver
// values to column types, and loads and caches table metadata per engine.
package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// Type is the abstract, engine-independent column type.
type Type string

// Abstract column types.
const (
	TypeString    Type = "string"
	TypeText      Type = "text"
	TypeSmallInt  Type = "smallint"
	TypeInteger   Type = "integer"
	TypeBigInt    Type = "bigint"
	TypeFloat     Type = "float"
	TypeDecimal   Type = "decimal"
	TypeDatetime  Type = "datetime"
	TypeTimestamp Type = "timestamp"
	TypeTime      Type = "time"
	TypeDate      Type = "date"
	TypeBinary    Type = "binary"
	TypeBoolean   Type = "boolean"
	TypeMoney     Type = "money"
)

// Kind is the Go representation a column's values are coerced to.
type Kind int

// Value kinds.
const (
	KindString Kind = iota
	KindInteger
	KindBoolean
	KindDouble
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindDouble:
		return "double"
	default:
		return "string"
	}
}

// KindOf maps an abstract type to its value kind. Unsigned bigints stay
// strings since they may overflow int64.
func KindOf(t Type, unsigned bool) Kind {
	switch t {
	case TypeSmallInt, TypeInteger:
		return KindInteger
	case TypeBigInt:
		if unsigned {
			return KindString
		}
		return KindInteger
	case TypeBoolean:
		return KindBoolean
	case TypeFloat:
		return KindDouble
	default:
		return KindString
	}
}

// dbType is a parsed native column type like "decimal(10,2) unsigned".
type dbType struct {
	base      string
	size      int
	precision int
	scale     int
	unsigned  bool
	enum      []string
}

var (
	dbTypeRe = regexp.MustCompile(`^([\w ]+?)\s*(?:\((.+)\))?\s*((?:unsigned|zerofill|\s)*)$`)
	enumRe   = regexp.MustCompile(`'((?:[^']|'')*)'`)
)

func parseDBType(native string) dbType {
	native = strings.ToLower(strings.TrimSpace(native))
	var t dbType
	m := dbTypeRe.FindStringSubmatch(native)
	if m == nil {
		t.base = native
		return t
	}
	t.base = strings.TrimSpace(m[1])
	t.unsigned = strings.Contains(m[3], "unsigned")

	args := m[2]
	if args == "" {
		return t
	}
	if t.base == "enum" || t.base == "set" {
		for _, v := range enumRe.FindAllStringSubmatch(args, -1) {
			t.enum = append(t.enum, strings.ReplaceAll(v[1], "''", "'"))
		}
		return t
	}
	parts := strings.Split(args, ",")
	n, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	t.size, t.precision = n, n
	if len(parts) > 1 {
		t.scale, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return t
}
