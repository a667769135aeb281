// Package mssql provides a Microsoft SQL Server engine for partition exports.
//
// The adapter supports SQL Server 2012 and higher.
//
// Features:
//   - Helper views created in a configurable schema (dbo by default)
//   - Column description through INFORMATION_SCHEMA.COLUMNS
//   - UNIQUEIDENTIFIER values rendered in canonical form
//   - rowversion values rendered as hex without leading zeros
//
// Usage:
//
//	import (
//	    "context"
//	    "github.com/ruslano69/partarch/pkg/adapters"
//	    _ "github.com/ruslano69/partarch/pkg/adapters/mssql"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    cfg := adapters.Config{
//	        Type:   "mssql",
//	        DSN:    "server=localhost;user id=sa;password=pass;database=mydb",
//	        Schema: "archive",
//	    }
//
//	    engine, err := adapters.New(ctx, cfg)
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer engine.Close(ctx)
//	}
//
// CREATE VIEW must be the only statement of its batch, so every helper view
// is created by a separate ExecContext call.
package mssql
