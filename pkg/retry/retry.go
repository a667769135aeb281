package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryableFunc - функция которую можно retry
type RetryableFunc func(ctx context.Context) error

// Retryer выполняет retry логику
type Retryer struct {
	config Config
}

// NewRetryer создает новый Retryer
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	return &Retryer{config: config}, nil
}

// Permanent помечает ошибку как не требующую повтора
// (например, неверный пароль или неизвестная база)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent сообщает, помечена ли ошибка (или ошибка в ее цепочке) через Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do выполняет функцию с retry
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	if !r.config.Enabled {
		// Retry отключен, просто выполняем функцию
		return fn(ctx)
	}

	var lastErr error
	attempts := 0

	for {
		attempts++

		// Выполняем функцию
		err := fn(ctx)
		if err == nil {
			// Успех!
			return nil
		}

		lastErr = err

		// Проверяем нужен ли retry для этой ошибки
		if !r.isRetryableError(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		// Проверяем достигли ли максимального количества попыток
		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
		}

		// Проверяем context
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		// Вычисляем задержку
		delay := r.calculateDelay(attempts)

		// Callback перед retry
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		// Ждем перед следующей попыткой
		select {
		case <-time.After(delay):
			// Продолжаем
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// calculateDelay вычисляет задержку для текущей попытки
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffConstant:
		delay = r.config.InitialDelay

	case BackoffLinear:
		// Linear: delay = initial * attempt
		delay = r.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		// Exponential: delay = initial * multiplier^(attempt-1)
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)

	default:
		delay = r.config.InitialDelay
	}

	// Применяем max delay
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	// Добавляем jitter (случайность)
	if r.config.Jitter > 0 {
		jitter := time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		delay += jitter
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

// isRetryableError проверяет нужен ли retry для ошибки
func (r *Retryer) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if IsPermanent(err) {
		return false
	}

	// Отмена не лечится повтором
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Если список retryable errors пуст, retry все ошибки
	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	// Проверяем содержит ли ошибка один из retryable patterns
	errStr := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
