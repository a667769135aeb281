package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - линейное увеличение задержки
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - экспоненциальное увеличение задержки
	BackoffExponential BackoffStrategy = "exponential"
)

// Config - параметры повторов подключения к БД (секция database.connect_retry)
type Config struct {
	// Enabled - включить повторы; иначе функция выполняется один раз
	Enabled bool `yaml:"enabled"`

	// MaxAttempts - максимальное количество попыток (включая первую).
	// 0 = без ограничения, до отмены контекста
	MaxAttempts int `yaml:"max_attempts"`

	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`

	BackoffStrategy BackoffStrategy `yaml:"backoff"`

	// BackoffMultiplier - множитель для exponential backoff (обычно 2.0)
	BackoffMultiplier float64 `yaml:"multiplier"`

	// Jitter - случайное отклонение задержки (0.0 - 1.0)
	Jitter float64 `yaml:"jitter"`

	// RetryableErrors - подстроки текста ошибки, для которых нужен повтор.
	// Пустой список = повтор для всех ошибок
	RetryableErrors []string `yaml:"retryable_errors"`

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.BackoffStrategy {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	case "":
		c.BackoffStrategy = BackoffExponential
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию (повторы выключены)
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffStrategy:   BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// EnableRetry создает конфигурацию с включенными повторами
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	return config
}
