// Package export runs the partition × table export matrix.
//
// Each job goes through Pending → Describing → Serializing → Success/Failed,
// then Success → Writing → Chunking → Done. Describe, execution, chunking
// and upload failures are recorded on the job and the run continues; a
// destination collision or an interruption aborts the run.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/chunker"
	"github.com/ruslano69/partarch/pkg/serialize"
	"github.com/ruslano69/partarch/pkg/session"
)

// DefaultExtension - расширение итоговых файлов
const DefaultExtension = "csv"

// Uploader копирует готовый файл в архивное хранилище
type Uploader interface {
	// Upload stores the file at path and returns the object location.
	Upload(ctx context.Context, partition Partition, path string) (string, error)
}

// Options - параметры запуска
type Options struct {
	OutputDir string // корень вывода, по умолчанию "."
	Extension string // по умолчанию DefaultExtension

	Force    bool // перезаписывать существующие файлы и части
	Metadata bool // писать итоговый запрос в <TABLE>.sql

	ChunkThreshold int64 // 0 - chunker.DefaultThreshold

	// Uploader - необязательная выгрузка в архив
	Uploader Uploader

	// Out получает строки для оператора (✓/⚠); nil - не выводить
	Out io.Writer

	Logger zerolog.Logger
}

// Orchestrator выполняет задания последовательно, одно за другим
type Orchestrator struct {
	engine     adapters.Engine
	session    *session.Session
	tables     []TableSpec
	opts       Options
	resolver   *serialize.Resolver
	serializer *serialize.Serializer
	chunker    *chunker.Chunker
	logger     zerolog.Logger
}

// New creates an orchestrator for tables. The tables are expected to be
// validated with TableSpec.Validate.
func New(engine adapters.Engine, sess *session.Session, tables []TableSpec, opts Options) *Orchestrator {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	logger := opts.Logger.With().Str("session", sess.Token()).Logger()
	return &Orchestrator{
		engine:     engine,
		session:    sess,
		tables:     tables,
		opts:       opts,
		resolver:   serialize.NewResolver(engine),
		serializer: serialize.NewSerializer(engine, logger),
		chunker: chunker.New(chunker.Config{
			Threshold: opts.ChunkThreshold,
			Overwrite: opts.Force,
			Logger:    logger,
		}),
		logger: logger,
	}
}

// Destination returns the output path of one job:
// <output>/<partition key>/<TABLE>.<ext>.
func (o *Orchestrator) Destination(p Partition, t TableSpec) string {
	return filepath.Join(o.opts.OutputDir, p.Key, t.FileName(o.opts.Extension))
}

// MetadataPath returns the path of the resolved query file of dest.
func MetadataPath(dest string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ".sql"
}

// Preflight checks every destination of the matrix before any job runs.
// Without Force, an existing output file, part set or (with Metadata)
// query file is a *DestinationCollisionError; two jobs sharing one
// destination always are.
func (o *Orchestrator) Preflight(partitions []Partition) error {
	var collisions []string
	seen := make(map[string]bool)

	for _, p := range partitions {
		for _, t := range o.tables {
			dest := o.Destination(p, t)
			if seen[dest] {
				collisions = append(collisions, dest)
				continue
			}
			seen[dest] = true

			if o.opts.Force {
				continue
			}
			existing, err := o.existingOutput(dest)
			if err != nil {
				return err
			}
			collisions = append(collisions, existing...)
		}
	}

	if len(collisions) > 0 {
		return &DestinationCollisionError{Paths: collisions}
	}
	return nil
}

// existingOutput возвращает файл назначения, его части и, с Metadata,
// файл запроса, если они есть
func (o *Orchestrator) existingOutput(dest string) ([]string, error) {
	candidates := []string{dest}
	if o.opts.Metadata {
		candidates = append(candidates, MetadataPath(dest))
	}

	var found []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	parts, err := chunker.ExistingParts(dest)
	if err != nil {
		return nil, err
	}
	return append(found, parts...), nil
}

// Run exports every table for every partition, partition by partition.
// The summary is returned even when the run is aborted; the error is one
// of *DestinationCollisionError, *InterruptedError or nil.
func (o *Orchestrator) Run(ctx context.Context, partitions []Partition) (*Summary, error) {
	summary := &Summary{Session: o.session.Token(), StartedAt: time.Now()}
	for _, p := range partitions {
		summary.Partitions = append(summary.Partitions, p.ID)
	}
	for _, t := range o.tables {
		summary.Tables = append(summary.Tables, t.Name)
	}

	finish := func(err error) (*Summary, error) {
		summary.FinishedAt = time.Now()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
		if err != nil {
			summary.Error = err.Error()
		}
		return summary, err
	}

	if err := o.Preflight(partitions); err != nil {
		return finish(err)
	}

	for _, p := range partitions {
		for _, t := range o.tables {
			if ctx.Err() != nil {
				return finish(interrupted(ctx))
			}

			outcome, err := o.runJob(ctx, p, t)
			summary.Outcomes = append(summary.Outcomes, outcome)
			o.report(&outcome)
			if err != nil {
				return finish(err)
			}
		}
	}

	return finish(nil)
}

func interrupted(ctx context.Context) error {
	return &InterruptedError{Cause: context.Cause(ctx)}
}

// runJob выполняет одно задание. Ошибка возвращается только для
// прерывания запуска; сбои задания записываются в Outcome.
func (o *Orchestrator) runJob(ctx context.Context, p Partition, t TableSpec) (out Outcome, _ error) {
	started := time.Now()
	out = Outcome{Partition: p.ID, Table: t.Name, State: StatePending}
	logger := o.logger.With().Str("partition", p.ID).Str("table", t.Name).Logger()
	defer func() { out.Duration = time.Since(started) }()

	// сбой задания, или прерывание, если контекст отменен
	failed := func(err error) (Outcome, error) {
		if ctx.Err() != nil {
			out.fail(interrupted(ctx))
			return out, out.Err
		}
		out.fail(err)
		logger.Debug().Err(err).Msg("job failed")
		return out, nil
	}

	// Pending → Describing
	o.transition(&out, StateDescribing, logger)
	bound := t.Bind(p)
	view, err := o.session.CreateHelper(ctx, t.Name, bound)
	if err != nil {
		return failed(&serialize.DescribeError{Query: bound, Err: err})
	}
	defer func() {
		if err := o.session.ReleaseHelper(context.WithoutCancel(ctx), view); err != nil {
			logger.Debug().Err(err).Str("view", view).Msg("helper view left for teardown")
		}
	}()

	columns, err := o.resolver.Describe(ctx, view)
	if err != nil {
		return failed(err)
	}

	// Describing → Serializing
	o.transition(&out, StateSerializing, logger)
	dest := o.Destination(p, t)
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", o.engine.QualifiedName(view), strings.TrimSpace(t.OrderBy))
	staging, stats, err := o.serializer.SerializeToFile(ctx, query, columns, dest, o.session.Token())
	if err != nil {
		return failed(err)
	}
	out.Rows, out.Bytes = stats.Rows, stats.Bytes
	o.transition(&out, StateSuccess, logger)

	// Success → Writing
	o.transition(&out, StateWriting, logger)
	if err := o.promote(staging, dest); err != nil {
		out.fail(err)
		var collision *DestinationCollisionError
		if errors.As(err, &collision) {
			return out, err
		}
		return out, nil
	}
	if o.opts.Metadata {
		if err := writeMetadata(MetadataPath(dest), t.ResolvedQuery(p)); err != nil {
			out.warn("metadata: %v", err)
		}
	}

	// Writing → Chunking
	o.transition(&out, StateChunking, logger)
	result, err := o.chunker.Split(ctx, dest)
	if err != nil {
		return failed(fmt.Errorf("chunking: %w", err))
	}
	out.Files = result.Parts
	for _, part := range result.Parts {
		logger.Info().
			Str("file", part.Path).
			Int64("records", part.Records).
			Int64("bytes", part.Bytes).
			Str("xxh3", part.Checksum).
			Msg("file written")
	}
	if result.Oversized > 0 {
		out.warn("%d record(s) larger than the part size", result.Oversized)
	}

	if o.opts.Uploader != nil {
		for _, part := range result.Parts {
			object, err := o.opts.Uploader.Upload(ctx, p, part.Path)
			if err != nil {
				if ctx.Err() != nil {
					return failed(err)
				}
				out.warn("upload %s: %v", filepath.Base(part.Path), err)
				continue
			}
			out.Objects = append(out.Objects, object)
		}
	}

	// Chunking → Done
	o.transition(&out, StateDone, logger)
	return out, nil
}

func (o *Orchestrator) transition(out *Outcome, to State, logger zerolog.Logger) {
	logger.Debug().Stringer("from", out.State).Stringer("to", to).Msg("job state")
	out.State = to
}

// promote переносит staging-файл на место назначения. Существующий файл
// без Force - коллизия (другой процесс успел записать после Preflight).
func (o *Orchestrator) promote(staging, dest string) error {
	existing, err := o.existingOutput(dest)
	if err == nil && len(existing) > 0 {
		if !o.opts.Force {
			os.Remove(staging)
			return &DestinationCollisionError{Paths: existing}
		}
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			os.Remove(staging)
			return fmt.Errorf("remove previous output: %w", err)
		}
		if err := chunker.RemoveParts(dest); err != nil {
			os.Remove(staging)
			return fmt.Errorf("remove previous parts: %w", err)
		}
		o.logger.Debug().Str("file", dest).Msg("previous output removed")
	} else if err != nil {
		os.Remove(staging)
		return err
	}

	if err := os.Rename(staging, dest); err != nil {
		os.Remove(staging)
		return fmt.Errorf("promote output: %w", err)
	}
	return nil
}

func writeMetadata(path, query string) error {
	return os.WriteFile(path, []byte(query+"\n"), 0o644)
}

// report печатает строку результата задания для оператора
func (o *Orchestrator) report(out *Outcome) {
	w := o.opts.Out
	name := out.Partition + "/" + strings.ToUpper(out.Table)

	switch {
	case out.Failed():
		var interrupt *InterruptedError
		if errors.As(out.Err, &interrupt) {
			fmt.Fprintf(w, "⚠ %s: interrupted\n", name)
			return
		}
		fmt.Fprintf(w, "⚠ %s: %v\n", name, out.Err)
	default:
		files := "1 file"
		if len(out.Files) > 1 {
			files = fmt.Sprintf("%d parts", len(out.Files))
		}
		fmt.Fprintf(w, "✓ %s: %d rows, %s, %s\n", name, out.Rows, files, out.Duration.Round(time.Millisecond))
		for _, warning := range out.Warnings {
			fmt.Fprintf(w, "⚠ %s: %s\n", name, warning)
		}
	}
}
