package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/adapters/base"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Engine
var _ adapters.Engine = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("sqlite", func() adapters.Engine {
		return NewAdapter()
	})
}

// Adapter представляет адаптер для работы с SQLite
type Adapter struct {
	*base.SQLEngine
}

// NewAdapter создает неподключенный адаптер SQLite
func NewAdapter() *Adapter {
	return &Adapter{SQLEngine: base.NewSQLEngine(dialect{})}
}

// Connect устанавливает подключение к SQLite
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if err := a.Open(ctx, cfg.DSN, ""); err != nil {
		return err
	}

	// In-memory база существует только в рамках одного соединения
	if isMemoryDSN(cfg.DSN) {
		a.DB().SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		a.DB().SetMaxOpenConns(cfg.MaxConns)
	}

	a.applyPragmas(ctx, cfg.Logger)
	return nil
}

// applyPragmas применяет PRAGMA настройки для чтения больших таблиц.
// Режим журнала не меняется: экспорт не должен модифицировать файл БД.
func (a *Adapter) applyPragmas(ctx context.Context, logger zerolog.Logger) {
	pragmas := []string{
		// Ждать до 5с, если файл заблокирован писателем
		"PRAGMA busy_timeout = 5000",

		// Cache size: 64 MB кеша (по умолчанию ~2 MB)
		"PRAGMA cache_size = -64000",

		// Temp store в памяти для сортировки ORDER BY
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := a.DB().ExecContext(ctx, pragma); err != nil {
			logger.Warn().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// dialect - синтаксис SQLite для base.SQLEngine
type dialect struct{}

func (dialect) Name() string       { return "sqlite" }
func (dialect) DriverName() string { return driverSqlite }

// QuoteIdentifier экранирует идентификатор двойными кавычками
func (dialect) QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// IsPermanentConnectError: файл БД нельзя открыть (нет каталога, нет прав)
func (dialect) IsPermanentConnectError(err error) bool {
	var e *sqlitedrv.Error
	return errors.As(err, &e) && e.Code()&0xff == sqlite3.SQLITE_CANTOPEN
}

// SQLite не ограничивает длину имен; 128 совпадает с MS SQL
func (dialect) MaxIdentifierLength() int { return 128 }

// DescribeSQL читает объявленные типы колонок view через pragma_table_info.
// Table-valued pragma не принимает параметры схемы, имя подставляется литералом.
func (dialect) DescribeSQL(_, viewName string) (string, []any) {
	literal := strings.ReplaceAll(viewName, "'", "''")
	return fmt.Sprintf("SELECT name, type, NULL, NULL FROM pragma_table_info('%s') ORDER BY cid", literal), nil
}

func (dialect) VersionSQL() string {
	return "SELECT 'SQLite ' || sqlite_version()"
}
