package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/partarch/pkg/adapters"
	_ "github.com/ruslano69/partarch/pkg/adapters/mssql"
	_ "github.com/ruslano69/partarch/pkg/adapters/mysql"
	_ "github.com/ruslano69/partarch/pkg/adapters/postgres"
	_ "github.com/ruslano69/partarch/pkg/adapters/sqlite"
	"github.com/ruslano69/partarch/pkg/archive"
	"github.com/ruslano69/partarch/pkg/export"
	"github.com/ruslano69/partarch/pkg/resultlog"
	"github.com/ruslano69/partarch/pkg/retry"
	"github.com/ruslano69/partarch/pkg/session"
)

// Коды завершения
const (
	exitOK          = 0
	exitWarnings    = 1
	exitUsage       = 2
	exitCollision   = 3
	exitSetup       = 4
	exitFatal       = 5
	exitInterrupted = 130
)

// publishTimeout ограничивает запись результата в Redis после отмены запуска
const publishTimeout = 10 * time.Second

// UsageError - неверные аргументы командной строки
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// configError - ошибка чтения или проверки конфигурации
type configError struct {
	path string
	err  error
}

func (e *configError) Error() string { return fmt.Sprintf("config %s: %v", e.path, e.err) }
func (e *configError) Unwrap() error { return e.err }

// connectError - не удалось подключиться к БД
type connectError struct {
	err error
}

func (e *connectError) Error() string { return "connect: " + e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one partarch invocation and returns the process exit code.
func run(parent context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := ParseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		PrintUsage(stderr)
		return exitUsage
	}

	switch {
	case flags.Help:
		PrintHelp(stdout)
		return exitOK
	case flags.Version:
		PrintVersion(stdout)
		return exitOK
	case flags.CreateConfig != "":
		return createConfigTemplate(flags, stdout, stderr)
	}

	logger := setupLogger(stderr, flags)

	config, partitions, err := prepare(flags)
	if err != nil {
		return report(stdout, stderr, nil, err)
	}

	ctx, stop := session.WatchSignals(parent, logger)
	defer stop()

	summary, err := execute(ctx, config, flags, partitions, stdout, logger)
	return report(stdout, stderr, summary, err)
}

// setupLogger настраивает консольный zerolog на stderr
func setupLogger(w io.Writer, flags *Flags) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case flags.Verbose:
		level = zerolog.DebugLevel
	case flags.Quiet:
		level = zerolog.WarnLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// prepare loads the configuration and resolves the tables and partitions
// of the run. Nothing touches the database yet.
func prepare(flags *Flags) (*Config, []export.Partition, error) {
	if len(flags.Partitions) == 0 {
		return nil, nil, &UsageError{Err: errors.New("no partitions given")}
	}

	config, err := LoadConfig(flags.Config)
	if err != nil {
		return nil, nil, &configError{path: flags.Config, err: err}
	}
	if err := config.Validate(); err != nil {
		return nil, nil, &configError{path: flags.Config, err: err}
	}

	if flags.ChunkSize > 0 {
		config.Export.ChunkSizeMB = flags.ChunkSize
	}

	if filter := flags.TableFilter(); len(filter) > 0 {
		tables, err := selectTables(config.Tables, filter)
		if err != nil {
			return nil, nil, &UsageError{Err: err}
		}
		config.Tables = tables
	}

	partitions, err := parsePartitions(flags.Partitions, config.Export.PartitionPrefix)
	if err != nil {
		return nil, nil, &UsageError{Err: err}
	}
	return config, partitions, nil
}

// selectTables returns the configured tables named in filter, in
// configuration order. Names are matched case-insensitively.
func selectTables(tables []export.TableSpec, filter []string) ([]export.TableSpec, error) {
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[strings.ToLower(name)] = true
	}

	var selected []export.TableSpec
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if wanted[key] {
			selected = append(selected, t)
			delete(wanted, key)
		}
	}

	if len(wanted) > 0 {
		var unknown []string
		for _, name := range filter {
			if wanted[strings.ToLower(name)] {
				unknown = append(unknown, name)
			}
		}
		return nil, fmt.Errorf("--tables: unknown table(s): %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func parsePartitions(ids []string, prefix string) ([]export.Partition, error) {
	partitions := make([]export.Partition, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, "-") {
			return nil, fmt.Errorf("option %s after partitions: options must come first", id)
		}
		p, err := export.ParsePartition(id, prefix)
		if err != nil {
			return nil, err
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("partition %s given twice", id)
		}
		seen[p.Key] = true
		partitions = append(partitions, p)
	}
	return partitions, nil
}

// execute connects, opens the session and runs the export matrix.
// Session teardown and disconnect happen before it returns, on every path.
func execute(ctx context.Context, config *Config, flags *Flags, partitions []export.Partition, stdout io.Writer, logger zerolog.Logger) (*export.Summary, error) {
	engine, err := connect(ctx, &config.Database, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := engine.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("failed to close database connection")
		}
	}()

	sess, err := session.Open(ctx, engine, session.Options{Logger: logger})
	if sess != nil {
		defer sess.Teardown(ctx)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("session", sess.Token()).Msg("session opened")

	opts := export.Options{
		OutputDir:      flags.Output,
		Extension:      config.Export.Extension,
		Force:          flags.Force,
		Metadata:       flags.Metadata,
		ChunkThreshold: config.ChunkThreshold(),
		Out:            operatorWriter(stdout, flags.Quiet),
		Logger:         logger,
	}

	if config.Archive.Enabled() {
		uploader, err := archive.NewS3Uploader(ctx, config.Archive, logger)
		if err != nil {
			return nil, &session.SetupError{Op: "archive", Err: err}
		}
		opts.Uploader = uploader
	}

	orch := export.New(engine, sess, config.Tables, opts)
	summary, runErr := orch.Run(ctx, partitions)

	if config.ResultLog.Enabled() {
		publish(ctx, config.ResultLog, summary, runErr, logger)
	}
	return summary, runErr
}

// connect подключается к БД с повторами из database.connect_retry
func connect(ctx context.Context, db *DatabaseConfig, logger zerolog.Logger) (adapters.Engine, error) {
	engine, err := adapters.NewWithoutConnect(db.Type)
	if err != nil {
		return nil, &connectError{err: err}
	}

	retryCfg := db.ConnectRetry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("database connection failed, retrying")
	}
	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return nil, &connectError{err: err}
	}

	adapterCfg := db.AdapterConfig()
	adapterCfg.Logger = logger.With().Str("adapter", db.Type).Logger()
	err = retryer.Do(ctx, func(ctx context.Context) error {
		connectCtx := ctx
		if adapterCfg.Timeout > 0 {
			var cancel context.CancelFunc
			connectCtx, cancel = context.WithTimeout(ctx, adapterCfg.Timeout)
			defer cancel()
		}
		return engine.Connect(connectCtx, adapterCfg)
	})
	if err != nil {
		return nil, &connectError{err: err}
	}

	if version, err := engine.GetDatabaseVersion(ctx); err == nil {
		logger.Info().Str("type", engine.GetDatabaseType()).Str("version", version).Msg("connected")
	} else {
		logger.Debug().Err(err).Msg("failed to read database version")
	}
	return engine, nil
}

// publish записывает итог запуска в Redis; ошибка не меняет код завершения
func publish(ctx context.Context, cfg resultlog.Config, summary *export.Summary, runErr error, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	publisher := resultlog.NewRedisPublisher(cfg)
	defer publisher.Close()

	if err := publisher.Publish(ctx, summary, runErr); err != nil {
		logger.Warn().Err(err).Str("key", publisher.StateKey()).Msg("failed to publish run result")
		return
	}
	logger.Debug().Str("key", publisher.StateKey()).Msg("run result published")
}

// report prints the final operator message and maps the outcome of the
// run to an exit code.
func report(stdout, stderr io.Writer, summary *export.Summary, err error) int {
	var (
		usageErr     *UsageError
		configErr    *configError
		connectErr   *connectError
		setupErr     *session.SetupError
		collisionErr *export.DestinationCollisionError
		interrupted  *export.InterruptedError
	)

	switch {
	case err == nil:
		fmt.Fprintln(stdout, summary.StatusLine())
		if summary.HasWarnings() {
			return exitWarnings
		}
		return exitOK

	case errors.As(err, &interrupted), errors.Is(err, context.Canceled):
		fmt.Fprintf(stderr, "✗ Export interrupted: %v\n", err)
		if summary != nil {
			fmt.Fprintf(stderr, "  %d job(s) finished before the interruption\n", len(summary.Outcomes))
		}
		return exitInterrupted

	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		PrintUsage(stderr)
		return exitUsage

	case errors.As(err, &collisionErr):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Use --force to overwrite existing output.")
		return exitCollision

	case errors.As(err, &configErr), errors.As(err, &connectErr), errors.As(err, &setupErr):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup

	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
}

// createConfigTemplate writes a sample config to --config
func createConfigTemplate(flags *Flags, stdout, stderr io.Writer) int {
	dbType := adapters.CanonicalType(flags.CreateConfig)
	if !adapters.IsRegistered(dbType) {
		fmt.Fprintf(stderr, "Error: unsupported database type '%s' (supported: %v)\n", dbType, adapters.GetRegisteredTypes())
		return exitUsage
	}

	if _, err := os.Stat(flags.Config); err == nil && !flags.Force {
		fmt.Fprintf(stderr, "Error: %s already exists (use --force to overwrite)\n", flags.Config)
		return exitCollision
	}

	if err := SaveConfig(flags.Config, CreateSampleConfig(dbType)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	fmt.Fprintf(stdout, "✓ Created sample %s config: %s\n", dbType, flags.Config)
	fmt.Fprintln(stdout, "Edit the file to match your database and tables.")
	return exitOK
}

// operatorWriter returns the writer for per-job operator lines. In quiet
// mode only warning lines get through.
func operatorWriter(w io.Writer, quiet bool) io.Writer {
	if !quiet {
		return w
	}
	return warningsOnly{w: w}
}

type warningsOnly struct {
	w io.Writer
}

// Write ожидает одну строку за вызов, как пишет export
func (q warningsOnly) Write(p []byte) (int, error) {
	if strings.HasPrefix(string(p), "✓") {
		return len(p), nil
	}
	return q.w.Write(p)
}
