package serialize

import (
	"context"
	"fmt"

	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

// Resolver определяет колонки результата запроса по каталогу СУБД.
// Запрос материализован вспомогательным view, поэтому описание не
// выполняет выборку данных. Результат не кэшируется: каждый вызов
// читает каталог заново.
type Resolver struct {
	engine adapters.Engine
}

// NewResolver создает Resolver поверх подключенного engine
func NewResolver(engine adapters.Engine) *Resolver {
	return &Resolver{engine: engine}
}

// Describe returns the ordered column descriptors of a helper view.
// Any failure is reported as *DescribeError.
func (r *Resolver) Describe(ctx context.Context, view string) ([]schema.ColumnDescriptor, error) {
	columns, err := r.engine.DescribeView(ctx, view)
	if err != nil {
		return nil, &DescribeError{Query: view, Err: err}
	}

	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, &DescribeError{Query: view, Err: fmt.Errorf("column %d has no name", i+1)}
		}
		if seen[c.Name] {
			return nil, &DescribeError{Query: view, Err: fmt.Errorf("duplicate column name %q", c.Name)}
		}
		seen[c.Name] = true
	}

	return columns, nil
}
