package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
	"github.com/ruslano69/partarch/pkg/retry"
)

// DefaultSchema - схема для вспомогательных view по умолчанию
const DefaultSchema = "public"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Engine
var _ adapters.Engine = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("postgres", func() adapters.Engine {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с PostgreSQL
type Adapter struct {
	pool   *pgxpool.Pool
	schema string // public, custom, etc.
}

// Connect устанавливает подключение к PostgreSQL
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	// Парсим connection string
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to parse connection string: %w", err))
	}

	// Настраиваем pool из конфига
	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 4 // default
	}
	if cfg.Timeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	// Создаем connection pool
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		err = fmt.Errorf("failed to ping database: %w", err)
		if isPermanentConnectError(err) {
			return retry.Permanent(err)
		}
		return err
	}

	a.pool = pool
	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = DefaultSchema
	}

	return nil
}

// isPermanentConnectError: ошибки аутентификации (класс 28) и
// неизвестная база (3D000) повтором не исправить
func isPermanentConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "28") || pgErr.Code == "3D000"
}

// Close закрывает connection pool
func (a *Adapter) Close(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return adapters.ErrNotConnected
	}
	return a.pool.Ping(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return "postgres"
}

// GetDatabaseVersion возвращает версию PostgreSQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	if a.pool == nil {
		return "", adapters.ErrNotConnected
	}
	var version string
	err := a.pool.QueryRow(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// Schema возвращает текущую схему
func (a *Adapter) Schema() string {
	return a.schema
}

// QuoteIdentifier экранирует идентификатор двойными кавычками
func (a *Adapter) QuoteIdentifier(identifier string) string {
	return pgx.Identifier{identifier}.Sanitize()
}

// MaxIdentifierLength - NAMEDATALEN-1
func (a *Adapter) MaxIdentifierLength() int { return 63 }

// QualifiedName возвращает "schema"."name"
func (a *Adapter) QualifiedName(name string) string {
	return pgx.Identifier{a.schema, name}.Sanitize()
}

// CreateView создает вспомогательный view в текущей схеме
func (a *Adapter) CreateView(ctx context.Context, name, selectSQL string) error {
	if a.pool == nil {
		return adapters.ErrNotConnected
	}
	sql := fmt.Sprintf("CREATE VIEW %s AS %s", a.QualifiedName(name), selectSQL)
	if _, err := a.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create view %s: %w", name, err)
	}
	return nil
}

// DropView удаляет вспомогательный view
func (a *Adapter) DropView(ctx context.Context, name string) error {
	if a.pool == nil {
		return adapters.ErrNotConnected
	}
	sql := fmt.Sprintf("DROP VIEW %s", a.QualifiedName(name))
	if _, err := a.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop view %s: %w", name, err)
	}
	return nil
}

// DescribeView читает колонки view из information_schema
func (a *Adapter) DescribeView(ctx context.Context, name string) ([]schema.ColumnDescriptor, error) {
	if a.pool == nil {
		return nil, adapters.ErrNotConnected
	}

	query := `
		SELECT column_name::text, data_type::text,
		       numeric_precision::int4, numeric_scale::int4
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, a.schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe view %s: %w", name, err)
	}
	defer rows.Close()

	var columns []schema.ColumnDescriptor
	for rows.Next() {
		var (
			columnName string
			dataType   string
			precision  *int32
			scale      *int32
		)
		if err := rows.Scan(&columnName, &dataType, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, schema.ColumnDescriptor{
			Name: columnName,
			Type: mapColumnType(dataType, intPtr(precision), intPtr(scale)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("view %s not found or has no columns", name)
	}

	return columns, nil
}

// Query выполняет SQL запрос и возвращает курсор
func (a *Adapter) Query(ctx context.Context, sql string) (adapters.Rows, error) {
	if a.pool == nil {
		return nil, adapters.ErrNotConnected
	}
	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return newPgRows(rows), nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
