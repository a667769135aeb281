package schema

import (
	"fmt"
	"strings"
)

// Kind is the semantic class of a result column.
type Kind string

// Column kinds recognised by the serializer. Anything the dialects do not
// map to one of the first three kinds is exported as text.
const (
	KindNumeric   Kind = "NUMERIC"
	KindDate      Kind = "DATE"
	KindTimestamp Kind = "TIMESTAMP"
	KindText      Kind = "TEXT"
)

// ScaleUnconstrained marks a numeric column whose scale is not fixed by its
// declared type: floating point columns and bare NUMERIC/DECIMAL.
const ScaleUnconstrained = -127

// Precisions assumed when the catalog does not report one.
const (
	IntegerPrecision   = 19   // 64-bit integers
	FloatPrecision     = 53   // IEEE 754 double mantissa bits
	UnboundedPrecision = 1000 // PostgreSQL's NUMERIC limit
)

// ColumnType is the per-query type of a result column.
// Precision and Scale are only meaningful for KindNumeric.
type ColumnType struct {
	Kind      Kind
	Precision int
	Scale     int
}

// Numeric returns a numeric column type.
func Numeric(precision, scale int) ColumnType {
	return ColumnType{Kind: KindNumeric, Precision: precision, Scale: scale}
}

// Date returns a date-only column type.
func Date() ColumnType { return ColumnType{Kind: KindDate} }

// Timestamp returns a date-and-time column type.
func Timestamp() ColumnType { return ColumnType{Kind: KindTimestamp} }

// Text returns a text column type.
func Text() ColumnType { return ColumnType{Kind: KindText} }

// IsDecimal reports whether values of the column are rendered with a
// fractional part. Numeric columns with a nonzero scale, or with an
// unconstrained scale and a positive precision, render as decimals; every
// other numeric column renders as an integer.
func (t ColumnType) IsDecimal() bool {
	if t.Kind != KindNumeric {
		return false
	}
	if t.Scale == ScaleUnconstrained {
		return t.Precision > 0
	}
	return t.Scale != 0
}

// HasFixedScale reports whether decimal values must be padded or rounded
// to exactly Scale fractional digits.
func (t ColumnType) HasFixedScale() bool {
	return t.Kind == KindNumeric && t.Scale > 0
}

func (t ColumnType) String() string {
	switch t.Kind {
	case KindNumeric:
		if t.Scale == ScaleUnconstrained {
			return fmt.Sprintf("NUMERIC(%d,*)", t.Precision)
		}
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
	case "":
		return string(KindText)
	default:
		return string(t.Kind)
	}
}

// ColumnDescriptor describes one column of a query result.
type ColumnDescriptor struct {
	Name string
	Type ColumnType
}

func (c ColumnDescriptor) String() string {
	return c.Name + " " + c.Type.String()
}

// ParseSQLType splits a declared SQL type such as "NUMERIC(10,2)" or
// "varchar(40)" into its lower-cased base name and parameters.
// For single-parameter types the parameter is returned as length.
func ParseSQLType(sqlType string) (baseType string, length, precision, scale int) {
	sqlType = strings.ToLower(strings.TrimSpace(sqlType))

	baseType = sqlType
	idx := strings.Index(sqlType, "(")
	if idx == -1 {
		return strings.TrimSpace(baseType), 0, 0, 0
	}
	baseType = strings.TrimSpace(sqlType[:idx])

	params := sqlType[idx+1:]
	if end := strings.Index(params, ")"); end != -1 {
		params = params[:end]
	}
	if strings.Contains(params, ",") {
		fmt.Sscanf(strings.ReplaceAll(params, " ", ""), "%d,%d", &precision, &scale)
	} else {
		fmt.Sscanf(strings.TrimSpace(params), "%d", &length)
	}

	return baseType, length, precision, scale
}
