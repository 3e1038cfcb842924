package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ColumnSchema describes one table column. It is not modified after loading.
type ColumnSchema struct {
	Name         string
	QuotedName   string
	AllowNull    bool
	Type         Type
	Kind         Kind
	DBType       string
	DefaultValue any
	EnumValues   []string
	Size         int
	Precision    int
	Scale        int
	IsPrimaryKey bool
	// AutoIncrement is set for auto-increment and serial columns.
	AutoIncrement bool
	Unsigned      bool
	Comment       string
}

// Typecast converts a value read from the driver, or supplied by a caller,
// to the column's Kind. Values that cannot be converted are returned as is.
// An empty string becomes nil for every non-textual column.
func (c *ColumnSchema) Typecast(value any) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && s == "" &&
		c.Type != TypeString && c.Type != TypeText && c.Type != TypeBinary {
		return nil
	}

	switch c.Kind {
	case KindInteger:
		return toInteger(value)
	case KindBoolean:
		return toBoolean(value)
	case KindDouble:
		return toDouble(value)
	default:
		return c.toString(value)
	}
}

func (c *ColumnSchema) toString(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		if c.Type == TypeBinary {
			return v
		}
		return string(v)
	case time.Time:
		switch c.Type {
		case TypeDate:
			return v.Format(time.DateOnly)
		case TypeTime:
			return v.Format(time.TimeOnly)
		default:
			return v.Format(time.DateTime)
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

func toInteger(value any) any {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v)
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v)
		}
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case []byte:
		return toInteger(string(v))
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return value
}

func toBoolean(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case []byte:
		return toBoolean(string(v))
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "f", "false", "n", "no", "off":
			return false
		default:
			return true
		}
	}
	if n, ok := toInteger(value).(int64); ok {
		return n != 0
	}
	return value
}

func toDouble(value any) any {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case []byte:
		return toDouble(string(v))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return value
	}
	if n, ok := toInteger(value).(int64); ok {
		return float64(n)
	}
	return value
}
