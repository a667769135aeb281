// File: pkg/processors/compression.go

package processors

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel - уровень zstd по умолчанию, хороший баланс скорости и сжатия
const DefaultCompressionLevel = 3

// CompressionStats содержит статистику сжатия.
type CompressionStats struct {
	OriginalSize   int64         `json:"original_size"`
	CompressedSize int64         `json:"compressed_size"`
	Ratio          float64       `json:"ratio"`
	Time           time.Duration `json:"time"`
}

// CompressStream сжимает src в dst с помощью zstd.
// level: 1 (самый быстрый) - 22 (лучшее сжатие); 0 означает DefaultCompressionLevel.
func CompressStream(dst io.Writer, src io.Reader, level int) (CompressionStats, error) {
	if level <= 0 {
		level = DefaultCompressionLevel
	}

	opts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(4), // Использовать до 4 ядер для сжатия
	}

	counter := &countingWriter{w: dst}
	encoder, err := zstd.NewWriter(counter, opts...)
	if err != nil {
		return CompressionStats{}, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	start := time.Now()
	n, err := io.Copy(encoder, src)
	if err != nil {
		encoder.Close()
		return CompressionStats{}, fmt.Errorf("failed to compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return CompressionStats{}, fmt.Errorf("failed to finish zstd frame: %w", err)
	}

	return GetCompressionStats(n, counter.n, time.Since(start)), nil
}

// DecompressStream распаковывает zstd поток src в dst.
// Возвращает количество распакованных байт.
func DecompressStream(dst io.Writer, src io.Reader) (int64, error) {
	decoder, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(4))
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	n, err := io.Copy(dst, decoder)
	if err != nil {
		return n, fmt.Errorf("failed to decompress zstd: %w", err)
	}
	return n, nil
}

// GetCompressionStats вычисляет статистику сжатия.
func GetCompressionStats(original, compressed int64, compressTime time.Duration) CompressionStats {
	stats := CompressionStats{
		OriginalSize:   original,
		CompressedSize: compressed,
		Time:           compressTime,
	}

	if compressed > 0 {
		stats.Ratio = float64(original) / float64(compressed)
	}

	return stats
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
