package mssql

import (
	"strings"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

// Type mapping for MS SQL Server 2012+
//
// SQL Server Type           Column Type      Notes
// ──────────────────────────────────────────────────────────
// TINYINT..BIGINT           NUMERIC(p,0)
// BIT                       NUMERIC(1,0)     0/1
// DECIMAL, NUMERIC          NUMERIC(p,s)
// MONEY                     NUMERIC(19,4)
// SMALLMONEY                NUMERIC(10,4)
// FLOAT, REAL               NUMERIC(p,*)     unconstrained scale
// DATE                      DATE
// DATETIME, DATETIME2       TIMESTAMP
// SMALLDATETIME             TIMESTAMP
// DATETIMEOFFSET            TIMESTAMP        offset is dropped
// everything else           TEXT

// ColumnType converts INFORMATION_SCHEMA.COLUMNS.DATA_TYPE to schema.ColumnType.
func (dialect) ColumnType(dataType string, precision, scale *int) schema.ColumnType {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	// Integer types
	case "tinyint", "smallint", "int", "bigint":
		return schema.Numeric(adapters.IntOr(precision, schema.IntegerPrecision), 0)

	case "bit":
		return schema.Numeric(1, 0)

	// Decimal types
	case "decimal", "numeric":
		return schema.Numeric(adapters.IntOr(precision, 18), adapters.IntOr(scale, 0))

	// Money types
	case "money":
		return schema.Numeric(19, 4)

	case "smallmoney":
		return schema.Numeric(10, 4)

	// Float types
	case "float", "real":
		return schema.Numeric(adapters.IntOr(precision, schema.FloatPrecision), schema.ScaleUnconstrained)

	// Date/time types
	case "date":
		return schema.Date()

	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return schema.Timestamp()

	default:
		return schema.Text()
	}
}
