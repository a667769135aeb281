/*
Package adapters предоставляет универсальный интерфейс к СУБД для экспорта партиций.

# Архитектура двухуровневого адаптера

	┌─────────────────────────────────────────┐
	│    Export orchestration                 │
	│  - serialize.Resolver / Serializer      │
	│  - session.Session (helper views)       │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Level 1: Engine interface              │  ← pkg/adapters/adapter.go
	│    Connect / Close / Ping               │
	│    CreateView / DropView / DescribeView │
	│    Query                                │
	└─────────────────┬───────────────────────┘
	                  │
	   ┌──────────┬───┴──────┬──────────┐
	┌──▼─────┐ ┌──▼──────┐ ┌─▼─────┐ ┌──▼────┐
	│ SQLite │ │PostgreSQL│ │ MySQL │ │MS SQL │  ← Level 2: dialects
	└────────┘ └──────────┘ └───────┘ └───────┘

SQLite, MySQL и MS SQL построены на base.SQLEngine (database/sql) и
отличаются только диалектом. PostgreSQL использует pgxpool напрямую.

# Использование

	import (
	    "github.com/ruslano69/partarch/pkg/adapters"
	    _ "github.com/ruslano69/partarch/pkg/adapters/sqlite"
	)

	engine, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: "app.db"})
	if err != nil {
	    return err
	}
	defer engine.Close(ctx)

Адаптеры регистрируются в глобальной фабрике в init(), поэтому достаточно
пустого импорта пакета нужной СУБД.
*/
package adapters
