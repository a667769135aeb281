package export

import (
	"fmt"
	"strings"
)

// DestinationCollisionError - файл назначения уже существует, а --force не
// задан. Прерывает весь запуск: вероятно, партиция уже выгружалась.
type DestinationCollisionError struct {
	Paths []string
}

func (e *DestinationCollisionError) Error() string {
	if len(e.Paths) == 1 {
		return fmt.Sprintf("destination already exists: %s (use --force to overwrite)", e.Paths[0])
	}
	return fmt.Sprintf("%d destinations already exist: %s (use --force to overwrite)",
		len(e.Paths), strings.Join(e.Paths, ", "))
}

// InterruptedError - запуск прерван отменой контекста (сигналом)
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("export interrupted: %v", e.Cause)
}

func (e *InterruptedError) Unwrap() error { return e.Cause }
