// File: pkg/processors/checksum.go

package processors

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Checksum вычисляет xxh3 (64-bit) потока данных.
// Реализует io.Writer, поэтому может стоять в io.MultiWriter рядом с файлом.
type Checksum struct {
	h *xxh3.Hasher
}

// NewChecksum создает пустой Checksum
func NewChecksum() *Checksum {
	return &Checksum{h: xxh3.New()}
}

// Write добавляет данные к хешу. Никогда не возвращает ошибку.
func (c *Checksum) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Sum возвращает hex-encoded хеш записанных данных (16 символов)
func (c *Checksum) Sum() string {
	return hex.EncodeToString(uint64ToBytes(c.h.Sum64()))
}

// uint64ToBytes конвертирует uint64 в байтовый массив (big-endian).
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
