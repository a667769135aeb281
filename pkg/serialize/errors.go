package serialize

import "fmt"

// DescribeError означает, что колонки запроса не удалось описать
// (синтаксическая ошибка, неизвестная таблица или партиция).
// Прерывает одно задание, не весь запуск.
type DescribeError struct {
	Query string
	Err   error
}

func (e *DescribeError) Error() string {
	return fmt.Sprintf("describe failed: %v", e.Err)
}

func (e *DescribeError) Unwrap() error { return e.Err }

// ExecutionError означает ошибку СУБД или декодирования строки во время
// выгрузки. Row - номер строки данных (с 1), 0 если ошибка до первой строки.
type ExecutionError struct {
	Row int64
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("execution failed at row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
