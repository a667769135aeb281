package mssql

import (
	"context"
	"errors"
	"strconv"
	"strings"

	mssqldb "github.com/denisenkom/go-mssqldb"
	"github.com/rs/zerolog"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/adapters/base"
)

// AdapterType идентификатор MS SQL адаптера
const AdapterType = "mssql"

// DefaultSchema - схема для вспомогательных view, если в конфиге не задана
const DefaultSchema = "dbo"

var _ adapters.Engine = (*Adapter)(nil)

// Adapter implements adapters.Engine for Microsoft SQL Server.
type Adapter struct {
	*base.SQLEngine
	logger zerolog.Logger

	// Version information
	serverVersion    int    // Major version: 11=2012, 13=2016, 14=2017, 15=2019, 16=2022
	serverVersionStr string // Full version string
}

func init() {
	// Register MS SQL Server adapter in factory
	adapters.Register(AdapterType, func() adapters.Engine {
		return NewAdapter()
	})
}

// NewAdapter creates an unconnected MS SQL adapter.
func NewAdapter() *Adapter {
	return &Adapter{SQLEngine: base.NewSQLEngine(dialect{})}
}

// Connect implements adapters.Engine interface.
// Connects to MS SQL Server and detects the server version.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	schemaName := cfg.Schema
	if schemaName == "" {
		schemaName = DefaultSchema
	}

	if err := a.Open(ctx, cfg.DSN, schemaName); err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		a.DB().SetMaxOpenConns(cfg.MaxConns)
	}
	a.logger = cfg.Logger

	version, err := a.GetDatabaseVersion(ctx)
	if err != nil {
		// версия нужна только для диагностики
		a.logger.Warn().Err(err).Msg("mssql: server version unavailable")
		return nil
	}
	a.serverVersionStr = version
	a.serverVersion = parseServerVersion(version)
	if a.serverVersion > 0 && a.serverVersion < 11 {
		a.logger.Warn().Str("version", version).Msg("mssql: server older than SQL Server 2012 is not supported")
	}

	return nil
}

// ServerVersion returns the detected major version (0 when unknown).
func (a *Adapter) ServerVersion() int {
	return a.serverVersion
}

// parseServerVersion parses SQL Server version string to major version number.
// Examples:
//   - "11.0.2100.60" → 11 (SQL Server 2012)
//   - "13.0.5026.0"  → 13 (SQL Server 2016)
//   - "15.0.2000.5"  → 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	parts := strings.Split(version, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return major
}

// dialect - синтаксис T-SQL для base.SQLEngine
type dialect struct{}

func (dialect) Name() string       { return AdapterType }
func (dialect) DriverName() string { return "mssql" }

// QuoteIdentifier экранирует идентификатор квадратными скобками
func (dialect) QuoteIdentifier(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

func (dialect) MaxIdentifierLength() int { return 128 }

// IsPermanentConnectError: 18456 - login failed, 4060 - cannot open database
func (dialect) IsPermanentConnectError(err error) bool {
	var e mssqldb.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Number == 18456 || e.Number == 4060
}

func (dialect) DescribeSQL(schemaName, viewName string) (string, []any) {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, NUMERIC_PRECISION, NUMERIC_SCALE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	return query, []any{schemaName, viewName}
}

func (dialect) VersionSQL() string {
	return "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))"
}
