package mysql

import (
	"strings"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

// ColumnType конвертирует DATA_TYPE из information_schema в schema.ColumnType
func (dialect) ColumnType(dataType string, precision, scale *int) schema.ColumnType {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	// Целочисленные типы
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return schema.Numeric(adapters.IntOr(precision, schema.IntegerPrecision), 0)

	case "year":
		return schema.Numeric(4, 0)

	case "decimal", "numeric":
		return schema.Numeric(adapters.IntOr(precision, 65), adapters.IntOr(scale, 0))

	// FLOAT(M,D) сообщает scale, обычный FLOAT/DOUBLE - NULL
	case "float", "double", "real":
		if scale != nil && *scale > 0 {
			return schema.Numeric(adapters.IntOr(precision, schema.FloatPrecision), *scale)
		}
		return schema.Numeric(adapters.IntOr(precision, schema.FloatPrecision), schema.ScaleUnconstrained)

	// Временные типы
	case "date":
		return schema.Date()

	case "datetime", "timestamp":
		return schema.Timestamp()

	default:
		return schema.Text()
	}
}
