// Package chunker splits oversized export files into numbered parts.
//
// Every part starts with the header line of the source file and stays
// within the size threshold; records are never split across parts.
// Parts of orders.csv are named orders.001.csv, orders.002.csv, ...
package chunker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/processors"
)

// DefaultThreshold - максимальный размер файла/части по умолчанию (50 MiB)
const DefaultThreshold int64 = 50 << 20

const (
	bufferSize       = 1 << 20
	cancelCheckEvery = 4096
)

// Part описывает один итоговый файл
type Part struct {
	Path     string `json:"path"`
	Records  int64  `json:"records"` // строк данных, без заголовка
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"xxh3"`
}

// Result - итог Split
type Result struct {
	Source string
	Split  bool   // false: файл в пределах порога и не изменялся
	Parts  []Part // при Split == false - единственный элемент, сам файл

	// Oversized - число записей длиннее допустимого размера части;
	// каждая из них записана в отдельную часть, превышающую порог
	Oversized int
}

// Records returns the total number of data lines over all parts.
func (r *Result) Records() int64 {
	var n int64
	for _, p := range r.Parts {
		n += p.Records
	}
	return n
}

// CollisionError is returned when parts of a previous split already exist
// and overwriting is not allowed. Nothing is modified in that case.
type CollisionError struct {
	Path     string
	Existing []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %d part file(s) already exist (first: %s)", e.Path, len(e.Existing), e.Existing[0])
}

// Config - параметры Chunker
type Config struct {
	Threshold int64 // 0 - DefaultThreshold
	Overwrite bool
	Logger    zerolog.Logger
}

// Chunker splits files larger than the threshold.
type Chunker struct {
	threshold int64
	overwrite bool
	logger    zerolog.Logger
}

// New создает Chunker
func New(cfg Config) *Chunker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Chunker{threshold: cfg.Threshold, overwrite: cfg.Overwrite, logger: cfg.Logger}
}

// Threshold returns the effective size threshold in bytes.
func (c *Chunker) Threshold() int64 { return c.threshold }

// Split splits path into parts if it is larger than the threshold.
// On success the source file is removed and only the parts remain; on
// failure the source file is left as it was and no part is left behind.
func (c *Chunker) Split(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.Size() <= c.threshold {
		part, err := describeFile(path)
		if err != nil {
			return nil, err
		}
		return &Result{Source: path, Parts: []Part{part}}, nil
	}

	existing, err := ExistingParts(path)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if !c.overwrite {
			return nil, &CollisionError{Path: path, Existing: existing}
		}
		if err := removeFiles(existing); err != nil {
			return nil, fmt.Errorf("remove previous parts: %w", err)
		}
		c.logger.Debug().Str("file", path).Int("parts", len(existing)).Msg("previous parts removed")
	}

	result, temps, err := c.writeParts(ctx, path)
	if err != nil {
		if rerr := removeFiles(temps); rerr != nil {
			c.logger.Warn().Err(rerr).Msg("failed to remove temporary parts")
		}
		return nil, err
	}

	width := max(3, len(fmt.Sprint(len(temps))))
	var renamed []string
	for i, tmp := range temps {
		final := PartName(path, i+1, width)
		if err := os.Rename(tmp, final); err != nil {
			removeFiles(temps[i:])
			removeFiles(renamed)
			return nil, fmt.Errorf("rename part: %w", err)
		}
		renamed = append(renamed, final)
		result.Parts[i].Path = final
	}

	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("remove split source: %w", err)
	}

	return result, nil
}

// writeParts пишет части во временные файлы рядом с источником.
// Возвращает пути временных файлов, в том числе при ошибке.
func (c *Chunker) writeParts(ctx context.Context, path string) (*Result, []string, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	r := bufio.NewReaderSize(src, bufferSize)
	header, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = strings.TrimRight(header, "\r\n")

	// часть = заголовок + '\n' + строки данных <= threshold
	limit := c.threshold - int64(len(header)) - 1
	if limit <= 0 {
		return nil, nil, fmt.Errorf("header of %s (%d bytes) does not fit into %d bytes", path, len(header), c.threshold)
	}

	result := &Result{Source: path, Split: true}
	var temps []string
	var cur *partWriter

	closeCurrent := func() error {
		if cur == nil {
			return nil
		}
		part, err := cur.finish()
		cur = nil
		if err != nil {
			return err
		}
		result.Parts = append(result.Parts, part)
		return nil
	}

	var lineNo int64
	for {
		line, rerr := r.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if lineNo%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					closeCurrent()
					return nil, temps, err
				}
			}

			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			size := int64(len(line))

			if cur != nil && cur.body+size > limit {
				if err := closeCurrent(); err != nil {
					return nil, temps, err
				}
			}
			if cur == nil {
				tmp := fmt.Sprintf("%s.chunk%d.tmp", path, len(temps)+1)
				temps = append(temps, tmp)
				if cur, err = newPartWriter(tmp, header); err != nil {
					return nil, temps, err
				}
			}
			if size > limit {
				result.Oversized++
				c.logger.Warn().
					Str("file", path).
					Int64("line", lineNo+1).
					Int64("bytes", size).
					Msg("record exceeds part size, written to its own part")
			}
			if err := cur.write(line); err != nil {
				closeCurrent()
				return nil, temps, err
			}
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			closeCurrent()
			return nil, temps, fmt.Errorf("read %s: %w", path, rerr)
		}
	}

	if err := closeCurrent(); err != nil {
		return nil, temps, err
	}
	return result, temps, nil
}

// partWriter пишет одну часть и считает записи, размер и контрольную сумму
type partWriter struct {
	path    string
	f       *os.File
	w       *bufio.Writer
	sum     *processors.Checksum
	body    int64
	bytes   int64
	records int64
}

func newPartWriter(path, header string) (*partWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	sum := processors.NewChecksum()
	p := &partWriter{path: path, f: f, sum: sum, w: bufio.NewWriterSize(io.MultiWriter(f, sum), bufferSize)}

	h := header + "\n"
	if _, err := p.w.WriteString(h); err != nil {
		f.Close()
		return nil, fmt.Errorf("write part header: %w", err)
	}
	p.bytes = int64(len(h))
	return p, nil
}

func (p *partWriter) write(line []byte) error {
	if _, err := p.w.Write(line); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	p.body += int64(len(line))
	p.bytes += int64(len(line))
	p.records++
	return nil
}

func (p *partWriter) finish() (Part, error) {
	err := p.w.Flush()
	if cerr := p.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Part{}, fmt.Errorf("write part: %w", err)
	}
	return Part{Path: p.path, Records: p.records, Bytes: p.bytes, Checksum: p.sum.Sum()}, nil
}

// describeFile считает строки данных и контрольную сумму файла без изменений
func describeFile(path string) (Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return Part{}, err
	}
	defer f.Close()

	sum := processors.NewChecksum()
	r := bufio.NewReaderSize(io.TeeReader(f, sum), bufferSize)

	var lines, size int64
	var last byte
	buf := make([]byte, 64<<10)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				lines++
			}
		}
		if n > 0 {
			last = buf[n-1]
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Part{}, err
		}
	}
	if size > 0 && last != '\n' {
		lines++
	}

	records := lines - 1 // заголовок
	if records < 0 {
		records = 0
	}
	return Part{Path: path, Records: records, Bytes: size, Checksum: sum.Sum()}, nil
}
