package base

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
	"github.com/ruslano69/partarch/pkg/retry"
)

// Dialect описывает синтаксис конкретной СУБД для SQLEngine
type Dialect interface {
	adapters.TypeMapper

	// Name возвращает тип СУБД: "sqlite", "mysql", "mssql"
	Name() string

	// DriverName возвращает имя драйвера database/sql
	DriverName() string

	// QuoteIdentifier экранирует идентификатор
	QuoteIdentifier(identifier string) string

	// MaxIdentifierLength возвращает максимальную длину имени объекта
	MaxIdentifierLength() int

	// DescribeSQL returns a catalog query for the columns of a view.
	// The query must return (column_name, data_type, numeric_precision,
	// numeric_scale) ordered by column position.
	DescribeSQL(schemaName, viewName string) (string, []any)

	// VersionSQL returns a single-value query reporting the server version.
	VersionSQL() string
}

// ValueNormalizer - необязательный интерфейс диалекта: приводит значения,
// которые драйвер возвращает в неудобном виде (например, UNIQUEIDENTIFIER
// в MS SQL приходит как []byte со смешанным порядком байт)
type ValueNormalizer interface {
	NormalizeValue(column *sql.ColumnType, value any) any
}

// ConnectErrorClassifier - необязательный интерфейс диалекта: ошибки
// подключения, которые не исправятся повтором (неверный пароль,
// неизвестная база), Open помечает через retry.Permanent
type ConnectErrorClassifier interface {
	IsPermanentConnectError(err error) bool
}

// SQLEngine реализует общую часть adapters.Engine поверх database/sql.
// Адаптеры MySQL, MS SQL и SQLite встраивают его и добавляют Connect.
type SQLEngine struct {
	db      *sql.DB
	dialect Dialect
	schema  string // "" для SQLite/MySQL, "dbo" или другая схема для MS SQL
}

// NewSQLEngine создает SQLEngine для заданного диалекта
func NewSQLEngine(dialect Dialect) *SQLEngine {
	return &SQLEngine{dialect: dialect}
}

// Open открывает подключение и проверяет его
func (e *SQLEngine) Open(ctx context.Context, dsn, schemaName string) error {
	db, err := sql.Open(e.dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database: %w", err)
		if c, ok := e.dialect.(ConnectErrorClassifier); ok && c.IsPermanentConnectError(err) {
			return retry.Permanent(err)
		}
		return err
	}

	e.UseDB(db, schemaName)
	return nil
}

// UseDB подключает уже открытый *sql.DB (используется в тестах с sqlmock)
func (e *SQLEngine) UseDB(db *sql.DB, schemaName string) {
	e.db = db
	e.schema = schemaName
}

// DB возвращает *sql.DB для прямого доступа
func (e *SQLEngine) DB() *sql.DB {
	return e.db
}

// Close закрывает соединение с БД
func (e *SQLEngine) Close(ctx context.Context) error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (e *SQLEngine) Ping(ctx context.Context) error {
	if e.db == nil {
		return adapters.ErrNotConnected
	}
	return e.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (e *SQLEngine) GetDatabaseType() string {
	return e.dialect.Name()
}

// GetDatabaseVersion возвращает версию СУБД
func (e *SQLEngine) GetDatabaseVersion(ctx context.Context) (string, error) {
	if e.db == nil {
		return "", adapters.ErrNotConnected
	}
	var version string
	if err := e.db.QueryRowContext(ctx, e.dialect.VersionSQL()).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// QuoteIdentifier экранирует идентификатор
func (e *SQLEngine) QuoteIdentifier(identifier string) string {
	return e.dialect.QuoteIdentifier(identifier)
}

// MaxIdentifierLength возвращает максимальную длину имени объекта
func (e *SQLEngine) MaxIdentifierLength() int {
	return e.dialect.MaxIdentifierLength()
}

// QualifiedName возвращает имя объекта с префиксом схемы (если она задана)
func (e *SQLEngine) QualifiedName(name string) string {
	if e.schema == "" {
		return e.dialect.QuoteIdentifier(name)
	}
	return e.dialect.QuoteIdentifier(e.schema) + "." + e.dialect.QuoteIdentifier(name)
}

// CreateView создает вспомогательный view
func (e *SQLEngine) CreateView(ctx context.Context, name, selectSQL string) error {
	if e.db == nil {
		return adapters.ErrNotConnected
	}
	stmt := fmt.Sprintf("CREATE VIEW %s AS %s", e.QualifiedName(name), selectSQL)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create view %s: %w", name, err)
	}
	return nil
}

// DropView удаляет вспомогательный view
func (e *SQLEngine) DropView(ctx context.Context, name string) error {
	if e.db == nil {
		return adapters.ErrNotConnected
	}
	stmt := fmt.Sprintf("DROP VIEW %s", e.QualifiedName(name))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop view %s: %w", name, err)
	}
	return nil
}

// DescribeView читает колонки view из каталога СУБД
func (e *SQLEngine) DescribeView(ctx context.Context, name string) ([]schema.ColumnDescriptor, error) {
	if e.db == nil {
		return nil, adapters.ErrNotConnected
	}

	query, args := e.dialect.DescribeSQL(e.schema, name)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe view %s: %w", name, err)
	}
	defer rows.Close()

	var columns []schema.ColumnDescriptor
	for rows.Next() {
		var (
			columnName string
			dataType   sql.NullString
			precision  sql.NullInt64
			scale      sql.NullInt64
		)
		if err := rows.Scan(&columnName, &dataType, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}

		columns = append(columns, schema.ColumnDescriptor{
			Name: columnName,
			Type: e.dialect.ColumnType(dataType.String, nullableInt(precision), nullableInt(scale)),
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
func (e *SQLEngine) Query(ctx context.Context, query string) (adapters.Rows, error) {
	if e.db == nil {
		return nil, adapters.ErrNotConnected
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	columns, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &sqlRows{rows: rows, columns: columns}
	if n, ok := e.dialect.(ValueNormalizer); ok {
		result.normalizer = n
	}
	return result, nil
}

// sqlRows - обертка *sql.Rows для реализации adapters.Rows
type sqlRows struct {
	rows       *sql.Rows
	columns    []*sql.ColumnType
	normalizer ValueNormalizer
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

// Values сканирует текущую строку без конвертации;
// database/sql копирует []byte при сканировании в *any.
func (r *sqlRows) Values() ([]any, error) {
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	if r.normalizer != nil {
		for i, v := range values {
			if v != nil {
				values[i] = r.normalizer.NormalizeValue(r.columns[i], v)
			}
		}
	}
	return values, nil
}

func (r *sqlRows) Err() error   { return r.rows.Err() }
func (r *sqlRows) Close() error { return r.rows.Close() }

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
