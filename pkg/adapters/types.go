package adapters

import (
	"strings"

	"github.com/ruslano69/partarch/pkg/core/schema"
)

// TypeMapper - интерфейс для маппинга типов данных каталога в типы колонок
// Каждый адаптер реализует свой TypeMapper
type TypeMapper interface {
	// ColumnType конвертирует тип колонки из каталога СУБД в schema.ColumnType
	// precision и scale равны nil, если каталог их не сообщает
	// Пример:
	//   PostgreSQL: ("numeric", 10, 2) → Numeric(10,2)
	//   SQLite:     ("DATE", nil, nil) → Date
	ColumnType(dataType string, precision, scale *int) schema.ColumnType
}

// SanitizeIdentifier lower-cases name and replaces every character outside
// [a-z0-9_] with an underscore, so it can be embedded in a helper object name
// in any supported dialect.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IntOr returns *p, or def when p is nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
