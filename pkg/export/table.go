package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/partarch/pkg/security"
)

// Плейсхолдеры шаблона выборки
const (
	PlaceholderPartition    = "{partition}"     // идентификатор партиции как задан
	PlaceholderPartitionKey = "{partition_key}" // без префикса
)

var (
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	qualifiedRef  = regexp.MustCompile("[\\w\\]\"`]\\s*\\.\\s*[A-Za-z_\\[\"`]")
)

// TableSpec - шаблон выгрузки одной таблицы
type TableSpec struct {
	// Name - имя таблицы; в верхнем регистре становится именем файла
	Name string `yaml:"name"`

	// Select - тело запроса с плейсхолдером партиции, без ORDER BY
	Select string `yaml:"select"`

	// OrderBy - обязательный порядок строк: одинаковая партиция
	// выгружается побайтно одинаково. Строки читаются из вспомогательного
	// view, поэтому допустимы только колонки результата select (или их
	// номера), без префикса таблицы.
	OrderBy string `yaml:"order_by"`
}

// Validate checks the template: a valid name, a read-only SELECT that
// references the partition, and a non-empty ordering clause over
// unqualified output columns.
func (t TableSpec) Validate() error {
	if err := security.ValidateTableName(t.Name); err != nil {
		return err
	}
	if !strings.Contains(t.Select, PlaceholderPartition) && !strings.Contains(t.Select, PlaceholderPartitionKey) {
		return fmt.Errorf("table %s: select must contain %s or %s", t.Name, PlaceholderPartition, PlaceholderPartitionKey)
	}

	validator := security.NewSQLValidator()
	if err := validator.Validate(t.Select); err != nil {
		return fmt.Errorf("table %s: select: %w", t.Name, err)
	}
	if strings.TrimSpace(t.OrderBy) == "" {
		return fmt.Errorf("table %s: order_by is required", t.Name)
	}
	if err := validator.ValidateFragment(t.OrderBy); err != nil {
		return fmt.Errorf("table %s: order_by: %w", t.Name, err)
	}
	if ref := qualifiedRef.FindString(stringLiteral.ReplaceAllString(t.OrderBy, "''")); ref != "" {
		return fmt.Errorf("table %s: order_by must name output columns of the select without a table prefix (found %q)", t.Name, ref)
	}
	return nil
}

// Bind substitutes the partition placeholders into the select template.
func (t TableSpec) Bind(p Partition) string {
	r := strings.NewReplacer(
		PlaceholderPartitionKey, p.Key,
		PlaceholderPartition, p.ID,
	)
	return strings.TrimSpace(r.Replace(t.Select))
}

// ResolvedQuery returns the complete partition query, as written to the
// metadata file.
func (t TableSpec) ResolvedQuery(p Partition) string {
	return t.Bind(p) + " ORDER BY " + strings.TrimSpace(t.OrderBy)
}

// FileName returns the output file name: the upper-cased table name with ext.
func (t TableSpec) FileName(ext string) string {
	return strings.ToUpper(t.Name) + "." + ext
}

// Partition - партиция для выгрузки
type Partition struct {
	ID  string // как задан в командной строке, например P20240105
	Key string // без префикса: 20240105; имя каталога вывода
}

// ParsePartition validates id and strips prefix from it to form the key.
func ParsePartition(id, prefix string) (Partition, error) {
	if err := security.ValidatePartitionID(id); err != nil {
		return Partition{}, err
	}
	key := strings.TrimPrefix(id, prefix)
	if key == "" || key == "." || key == ".." {
		return Partition{}, fmt.Errorf("partition %q has an empty key after removing prefix %q", id, prefix)
	}
	return Partition{ID: id, Key: key}, nil
}

func (p Partition) String() string { return p.ID }
