package mysql

import (
	"context"
	"errors"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/adapters/base"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

var _ adapters.Engine = (*Adapter)(nil)

// Adapter реализует adapters.Engine для MySQL
type Adapter struct {
	*base.SQLEngine
}

func init() {
	// Регистрируем MySQL адаптер в фабрике
	adapters.Register(AdapterType, func() adapters.Engine {
		return NewAdapter()
	})
}

// NewAdapter создает неподключенный адаптер MySQL
func NewAdapter() *Adapter {
	return &Adapter{SQLEngine: base.NewSQLEngine(dialect{})}
}

// Connect подключается к MySQL базе данных.
// View создаются в базе из DSN, поэтому cfg.Schema игнорируется.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if err := a.Open(ctx, cfg.DSN, ""); err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		a.DB().SetMaxOpenConns(cfg.MaxConns)
	}
	return nil
}

// dialect - синтаксис MySQL для base.SQLEngine
type dialect struct{}

func (dialect) Name() string       { return AdapterType }
func (dialect) DriverName() string { return "mysql" }

// QuoteIdentifier экранирует идентификатор обратными кавычками
func (dialect) QuoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (dialect) MaxIdentifierLength() int { return 64 }

// IsPermanentConnectError: 1044/1045 - доступ запрещен, 1049 - неизвестная база
func (dialect) IsPermanentConnectError(err error) bool {
	var e *mysqldrv.MySQLError
	if !errors.As(err, &e) {
		return false
	}
	switch e.Number {
	case 1044, 1045, 1049:
		return true
	}
	return false
}

func (dialect) DescribeSQL(_, viewName string) (string, []any) {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, NUMERIC_PRECISION, NUMERIC_SCALE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	return query, []any{viewName}
}

func (dialect) VersionSQL() string { return "SELECT VERSION()" }
