package plipsql

import (
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// SQLType is the target SQL type a Param is bound as.
type SQLType int

const (
	Other SQLType = iota
	Null
	Varchar
	SmallInt
	Integer
	BigInt
	Real
	Double
	Boolean
	Timestamp
	Decimal
	Numeric
)

// String returns the SQL name of the type.
func (t SQLType) String() string {
	switch t {
	case Null:
		return "NULL"
	case Varchar:
		return "VARCHAR"
	case SmallInt:
		return "SMALLINT"
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Real:
		return "REAL"
	case Double:
		return "DOUBLE PRECISION"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	case Decimal:
		return "DECIMAL"
	case Numeric:
		return "NUMERIC"
	default:
		return "OTHER"
	}
}

// Param is a value tagged with the SQL type it should be bound as.
// A nil value binds a NULL of that type.
type Param struct {
	value    any
	sqlType  SQLType
	typeName string
	scale    int
	hasScale bool
}

// NewParam returns a Param binding v as t.
func NewParam(v any, t SQLType) Param {
	return Param{value: v, sqlType: t}
}

// NewParamNamed is NewParam with an explicit, human-readable type name.
func NewParamNamed(v any, t SQLType, typeName string) Param {
	return Param{value: v, sqlType: t, typeName: typeName}
}

// NewParamScaled returns a Param with a scale (Decimal, Numeric) or length qualifier.
func NewParamScaled(v any, t SQLType, typeName string, scaleOrLength int) Param {
	return Param{value: v, sqlType: t, typeName: typeName, scale: scaleOrLength, hasScale: true}
}

// Typed constructors for the common Go types.

func String(v string) Param   { return NewParamNamed(v, Varchar, "VARCHAR") }
func Short(v int16) Param     { return NewParamNamed(v, SmallInt, "SMALLINT") }
func Int32(v int32) Param     { return NewParamNamed(v, Integer, "INTEGER") }
func Int64(v int64) Param     { return NewParamNamed(v, BigInt, "BIGINT") }
func Float32(v float32) Param { return NewParamNamed(v, Real, "REAL") }
func Float64(v float64) Param { return NewParamNamed(v, Double, "DOUBLE PRECISION") }
func Bool(v bool) Param       { return NewParamNamed(v, Boolean, "BOOLEAN") }
func Time(v time.Time) Param  { return NewParamNamed(v, Timestamp, "TIMESTAMP") }
func NullOf(t SQLType) Param  { return NewParamNamed(nil, t, t.String()) }
func Value(v any) Param       { return NewParam(v, Other) }

// DecimalOf binds v as DECIMAL with scale fractional digits.
func DecimalOf(v any, scale int) Param {
	return NewParamScaled(v, Decimal, "DECIMAL", scale)
}

// NumericOf binds v as NUMERIC with scale fractional digits.
func NumericOf(v any, scale int) Param {
	return NewParamScaled(v, Numeric, "NUMERIC", scale)
}

// Value returns the raw value, possibly nil.
func (p Param) Value() any { return p.value }

// Type returns the target SQL type.
func (p Param) Type() SQLType { return p.sqlType }

// TypeName returns the type name given at construction, or the SQL type's name.
func (p Param) TypeName() string {
	if p.typeName != "" {
		return p.typeName
	}
	return p.sqlType.String()
}

// ScaleOrLength returns the scale or length qualifier, if any.
func (p Param) ScaleOrLength() (int, bool) { return p.scale, p.hasScale }

// IsNull reports whether p binds a NULL.
func (p Param) IsNull() bool { return p.value == nil }

// driverValue converts p into the argument handed to database/sql.
func (p Param) driverValue() (any, error) {
	if p.value == nil {
		return p.sqlType.nullValue(), nil
	}
	if p.hasScale && (p.sqlType == Decimal || p.sqlType == Numeric) {
		return formatScaled(p.value, p.scale)
	}
	return p.value, nil
}

// nullValue returns the typed NULL for t.
func (t SQLType) nullValue() any {
	switch t {
	case Varchar, Decimal, Numeric:
		return sql.NullString{}
	case SmallInt:
		return sql.NullInt16{}
	case Integer:
		return sql.NullInt32{}
	case BigInt:
		return sql.NullInt64{}
	case Real, Double:
		return sql.NullFloat64{}
	case Boolean:
		return sql.NullBool{}
	case Timestamp:
		return sql.NullTime{}
	default:
		return nil
	}
}

// formatScaled renders a numeric value as fixed-point text with scale fractional digits.
func formatScaled(v any, scale int) (any, error) {
	if scale < 0 {
		return nil, fmt.Errorf("plipsql: negative scale %d", scale)
	}
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', scale, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', scale, 32), nil
	case *big.Float:
		return x.Text('f', scale), nil
	case *big.Rat:
		return x.FloatString(scale), nil
	case *big.Int:
		return new(big.Rat).SetInt(x).FloatString(scale), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		r, _ := new(big.Rat).SetString(fmt.Sprint(x))
		return r.FloatString(scale), nil
	default:
		return v, nil
	}
}
