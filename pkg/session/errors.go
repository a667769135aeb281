package session

import (
	"fmt"
	"os"
)

// SetupError означает, что сессию не удалось подготовить: нет прав на
// создание view, недоступна схема и т.п. Запуск прерывается до первого задания.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session setup failed (%s): %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// SignalError - причина отмены контекста при получении сигнала
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("interrupted by signal %s", e.Signal)
}
