package sqlite

import (
	"github.com/ruslano69/partarch/pkg/core/schema"
)

// ColumnType конвертирует объявленный тип колонки SQLite в schema.ColumnType.
// SQLite не сообщает precision/scale отдельно: они извлекаются из
// объявления вида NUMERIC(10,2).
func (dialect) ColumnType(dataType string, _, _ *int) schema.ColumnType {
	baseType, length, precision, scale := schema.ParseSQLType(dataType)

	switch baseType {
	case "integer", "int", "tinyint", "smallint", "mediumint", "bigint",
		"int2", "int8", "unsigned big int":
		return schema.Numeric(schema.IntegerPrecision, 0)

	case "numeric", "decimal", "num":
		switch {
		case precision > 0:
			return schema.Numeric(precision, scale)
		case length > 0:
			return schema.Numeric(length, 0)
		default:
			return schema.Numeric(schema.UnboundedPrecision, schema.ScaleUnconstrained)
		}

	case "real", "float", "double", "double precision":
		return schema.Numeric(schema.FloatPrecision, schema.ScaleUnconstrained)

	case "date":
		return schema.Date()

	case "datetime", "timestamp":
		return schema.Timestamp()

	default:
		// SQLite динамическая типизация - по умолчанию TEXT
		return schema.Text()
	}
}
