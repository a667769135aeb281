package postgres

import (
	"strings"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

// mapColumnType конвертирует data_type из information_schema в schema.ColumnType.
// Для целых типов information_schema сообщает precision в битах, поэтому она
// игнорируется.
func mapColumnType(dataType string, precision, scale *int) schema.ColumnType {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	// Integer types
	case "smallint", "integer", "bigint":
		return schema.Numeric(schema.IntegerPrecision, 0)

	// Floating point types
	case "real":
		return schema.Numeric(adapters.IntOr(precision, 24), schema.ScaleUnconstrained)
	case "double precision":
		return schema.Numeric(adapters.IntOr(precision, schema.FloatPrecision), schema.ScaleUnconstrained)

	// Numeric/Decimal: без модификатора типа scale не ограничен
	case "numeric", "decimal":
		if precision == nil {
			return schema.Numeric(schema.UnboundedPrecision, schema.ScaleUnconstrained)
		}
		return schema.Numeric(*precision, adapters.IntOr(scale, 0))

	// Date/Time types
	case "date":
		return schema.Date()
	case "timestamp without time zone", "timestamp with time zone":
		return schema.Timestamp()

	default:
		return schema.Text()
	}
}
