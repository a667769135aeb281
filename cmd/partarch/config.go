package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/archive"
	"github.com/ruslano69/partarch/pkg/export"
	"github.com/ruslano69/partarch/pkg/resultlog"
	"github.com/ruslano69/partarch/pkg/retry"
)

// DefaultConfigFile - путь конфигурации по умолчанию
const DefaultConfigFile = "partarch.yaml"

// PasswordEnv переопределяет database.password
const PasswordEnv = "PARTARCH_DB_PASSWORD"

// Config represents the main configuration structure
type Config struct {
	Database  DatabaseConfig     `yaml:"database"`
	Export    ExportConfig       `yaml:"export,omitempty"`
	Tables    []export.TableSpec `yaml:"tables"`
	Archive   archive.Config     `yaml:"archive,omitempty"`
	ResultLog resultlog.Config   `yaml:"result_log,omitempty"`
}

// ExportConfig contains export settings
type ExportConfig struct {
	PartitionPrefix string `yaml:"partition_prefix"` // default: P
	ChunkSizeMB     int    `yaml:"chunk_size_mb"`    // default: 50
	Extension       string `yaml:"extension"`        // default: csv
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Type        string `yaml:"type"`                   // sqlite, postgres, mssql, mysql
	Host        string `yaml:"host,omitempty"`         // For network databases
	Port        int    `yaml:"port,omitempty"`         // Database port
	Database    string `yaml:"database"`               // Database name or file path
	User        string `yaml:"user,omitempty"`         // Username
	Password    string `yaml:"password,omitempty"`     // Password
	Schema      string `yaml:"schema,omitempty"`       // Schema for helper views (PostgreSQL, MS SQL)
	WindowsAuth bool   `yaml:"windows_auth,omitempty"` // MS SQL Windows authentication
	SSLMode     string `yaml:"sslmode,omitempty"`      // PostgreSQL SSL mode

	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	MaxConns       int           `yaml:"max_conns,omitempty"`

	ConnectRetry retry.Config `yaml:"connect_retry,omitempty"`
}

// LoadConfig loads configuration from YAML file and applies defaults
// and the password environment override.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if password, ok := os.LookupEnv(PasswordEnv); ok {
		config.Database.Password = password
	}
	config.applyDefaults()

	return &config, nil
}

// tablesComment поясняет правила шаблонов таблиц в сохраненном конфиге
const tablesComment = `select: SELECT without ORDER BY; {partition} or {partition_key} is replaced per run.
order_by: output columns of the select (names or positions) without a table
prefix such as o.id; rows are read back through a helper view.`

// SaveConfig saves configuration to YAML file, with a comment on the
// tables section
func SaveConfig(filename string, config *Config) error {
	var node yaml.Node
	if err := node.Encode(config); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "tables" {
			root.Content[i].HeadComment = tablesComment
		}
	}

	data, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Database.Type = adapters.CanonicalType(c.Database.Type)
	if c.Export.PartitionPrefix == "" {
		c.Export.PartitionPrefix = "P"
	}
	if c.Export.ChunkSizeMB == 0 {
		c.Export.ChunkSizeMB = 50
	}
	if c.Export.Extension == "" {
		c.Export.Extension = export.DefaultExtension
	}
}

// Validate проверяет конфигурацию целиком, включая шаблоны таблиц
func (c *Config) Validate() error {
	if !adapters.IsRegistered(c.Database.Type) {
		return fmt.Errorf("database.type: unsupported type '%s' (supported: %v)",
			c.Database.Type, adapters.GetRegisteredTypes())
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if err := c.Database.ConnectRetry.Validate(); err != nil {
		return fmt.Errorf("database.connect_retry: %w", err)
	}

	if c.Export.ChunkSizeMB < 0 {
		return fmt.Errorf("export.chunk_size_mb must be >= 0, got %d", c.Export.ChunkSizeMB)
	}

	if len(c.Tables) == 0 {
		return errors.New("tables: at least one table is required")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tables[%d]: %w", i, err)
		}
		name := t.FileName(c.Export.Extension)
		if seen[name] {
			return fmt.Errorf("tables[%d]: duplicate table %s", i, t.Name)
		}
		seen[name] = true
	}

	if c.ResultLog.Enabled() {
		if err := c.ResultLog.Validate(); err != nil {
			return fmt.Errorf("result_log: %w", err)
		}
	}
	return nil
}

// ChunkThreshold возвращает порог разбиения в байтах
func (c *Config) ChunkThreshold() int64 {
	return int64(c.Export.ChunkSizeMB) << 20
}

// AdapterConfig собирает adapters.Config из секции database
func (c *DatabaseConfig) AdapterConfig() adapters.Config {
	return adapters.Config{
		Type:     c.Type,
		DSN:      c.BuildDSN(),
		Schema:   c.Schema,
		Timeout:  c.ConnectTimeout,
		MaxConns: c.MaxConns,
	}
}

// CreateSampleConfig creates sample configuration for different database types
func CreateSampleConfig(dbType string) *Config {
	config := &Config{
		Database: DatabaseConfig{
			Type:         dbType,
			ConnectRetry: retry.EnableRetry(3, time.Second),
		},
		Export: ExportConfig{
			PartitionPrefix: "P",
			ChunkSizeMB:     50,
			Extension:       export.DefaultExtension,
		},
		Tables: []export.TableSpec{
			{
				Name:    "orders",
				Select:  "SELECT id, amount, created_at FROM orders WHERE part_key = '{partition_key}'",
				OrderBy: "id",
			},
		},
	}

	switch dbType {
	case "postgres":
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "mydb"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Schema = "public"
		config.Database.SSLMode = "disable"

	case "mssql":
		config.Database.Host = "localhost"
		config.Database.Port = 1433
		config.Database.Database = "mydb"
		config.Database.User = "sa"
		config.Database.Password = "YourPassword123"
		config.Database.Schema = "dbo"

	case "sqlite":
		config.Database.Database = "database.db"
		config.Database.ConnectRetry = retry.DefaultConfig()

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "mydb"
		config.Database.User = "root"
		config.Database.Password = "password"
	}

	return config
}

// BuildDSN constructs database connection string from config
func (c *DatabaseConfig) BuildDSN() string {
	switch c.Type {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		query := url.Values{}
		query.Set("sslmode", sslMode)
		if c.Schema != "" {
			query.Set("search_path", c.Schema)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.hostPort(),
			Path:     "/" + c.Database,
			RawQuery: query.Encode(),
		}
		return u.String()

	case "mssql":
		query := url.Values{}
		query.Set("database", c.Database)
		u := url.URL{Scheme: "sqlserver", Host: c.hostPort()}
		if c.WindowsAuth {
			query.Set("integrated security", "SSPI")
		} else {
			u.User = url.UserPassword(c.User, c.Password)
		}
		u.RawQuery = query.Encode()
		return u.String()

	case "sqlite":
		return c.Database

	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = c.hostPort()
		cfg.DBName = c.Database
		cfg.ParseTime = true
		return cfg.FormatDSN()

	default:
		return ""
	}
}

func (c *DatabaseConfig) hostPort() string {
	if c.Port == 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
