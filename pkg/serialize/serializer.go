package serialize

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

const (
	writeBufferSize = 1 << 20

	// как часто проверять отмену между строками
	cancelCheckEvery = 1024
)

// Stats - итог сериализации одного запроса
type Stats struct {
	Rows     int64 // строк данных, без заголовка
	Bytes    int64 // включая заголовок
	Duration time.Duration
}

// Serializer выгружает результат запроса в текст с разделителем ';'
type Serializer struct {
	engine adapters.Engine
	logger zerolog.Logger
}

// NewSerializer создает Serializer. Нулевой logger ничего не пишет.
func NewSerializer(engine adapters.Engine, logger zerolog.Logger) *Serializer {
	return &Serializer{engine: engine, logger: logger}
}

// Header returns the header line for columns, without the line terminator.
func Header(columns []schema.ColumnDescriptor) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = Escape(c.Name)
	}
	return strings.Join(names, Separator)
}

// Serialize streams query rows into w: the header line first, then one
// line per row. Engine and decode failures are returned as *ExecutionError.
func (s *Serializer) Serialize(ctx context.Context, query string, columns []schema.ColumnDescriptor, w io.Writer) (Stats, error) {
	started := time.Now()
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, writeBufferSize)

	var stats Stats
	finish := func(err error) (Stats, error) {
		if err == nil {
			if ferr := bw.Flush(); ferr != nil {
				err = &ExecutionError{Row: stats.Rows, Err: fmt.Errorf("write output: %w", ferr)}
			}
		}
		stats.Bytes = cw.n
		stats.Duration = time.Since(started)
		return stats, err
	}

	if _, err := bw.WriteString(Header(columns) + "\n"); err != nil {
		return finish(&ExecutionError{Err: fmt.Errorf("write header: %w", err)})
	}

	rows, err := s.engine.Query(ctx, query)
	if err != nil {
		return finish(&ExecutionError{Err: err})
	}
	defer rows.Close()

	fields := make([]string, len(columns))
	for rows.Next() {
		row := stats.Rows + 1
		if row%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return finish(&ExecutionError{Row: row, Err: err})
			}
		}

		values, err := rows.Values()
		if err != nil {
			return finish(&ExecutionError{Row: row, Err: err})
		}
		if len(values) != len(columns) {
			return finish(&ExecutionError{Row: row, Err: fmt.Errorf("row has %d values, expected %d", len(values), len(columns))})
		}

		for i, v := range values {
			field, err := FormatValue(v, columns[i].Type)
			if err != nil {
				return finish(&ExecutionError{Row: row, Err: fmt.Errorf("column %s: %w", columns[i].Name, err)})
			}
			fields[i] = field
		}

		if _, err := bw.WriteString(strings.Join(fields, Separator) + "\n"); err != nil {
			return finish(&ExecutionError{Row: row, Err: fmt.Errorf("write output: %w", err)})
		}
		stats.Rows = row
	}

	if err := rows.Err(); err != nil {
		return finish(&ExecutionError{Row: stats.Rows, Err: err})
	}

	stats, err = finish(nil)
	s.logger.Debug().
		Int64("rows", stats.Rows).
		Int64("bytes", stats.Bytes).
		Dur("duration", stats.Duration).
		Msg("query serialized")
	return stats, err
}

// StagingPath returns the staging file used for dest by the session token.
// It lives in the destination directory so promotion is a rename.
func StagingPath(dest, token string) string {
	return dest + ".partarch-" + token + ".tmp"
}

// SerializeToFile serializes into the staging file of dest and returns its
// path. The staging file is removed on any error; dest is never touched.
func (s *Serializer) SerializeToFile(ctx context.Context, query string, columns []schema.ColumnDescriptor, dest, token string) (string, Stats, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", Stats{}, fmt.Errorf("create output directory: %w", err)
	}

	staging := StagingPath(dest, token)
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", Stats{}, fmt.Errorf("create staging file: %w", err)
	}

	stats, err := s.Serialize(ctx, query, columns, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &ExecutionError{Row: stats.Rows, Err: fmt.Errorf("close staging file: %w", cerr)}
	}
	if err != nil {
		if rerr := os.Remove(staging); rerr != nil && !os.IsNotExist(rerr) {
			s.logger.Warn().Err(rerr).Str("file", staging).Msg("failed to remove staging file")
		}
		return "", stats, err
	}

	return staging, stats, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
