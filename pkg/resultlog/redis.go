// Package resultlog publishes the summary of an export run to Redis, so an
// external scheduler can poll or subscribe for the outcome.
package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruslano69/partarch/pkg/export"
)

// DefaultTTL - время жизни ключа состояния, секунд
const DefaultTTL = 3600

// Config - секция result_log конфигурации
type Config struct {
	Type     string `yaml:"type"`     // redis; пусто - отключено
	Address  string `yaml:"address"`  // например "127.0.0.1:6379"
	Name     string `yaml:"name"`     // имя результата (ключ/канал), например "ORDERS_DAILY"
	Password string `yaml:"password"` // опционально
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // секунд, 0 - DefaultTTL
}

// Enabled reports whether publishing is configured.
func (c *Config) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

// Validate проверяет корректность Config
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Type != "redis" {
		return fmt.Errorf("unsupported type '%s', must be 'redis'", c.Type)
	}
	if c.Address == "" {
		return fmt.Errorf("address is required when type is 'redis'")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required when type is 'redis'")
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be >= 0")
	}
	return nil
}

// RunResult - состояние запуска, публикуемое в Redis.
//
// Redis-ключи:
//
//	SET  partarch:run:<name>:state  <JSON>  EX <ttl>  - для опроса
//	PUB  partarch:run:<name>                          - для подписки
type RunResult struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"` // success | warnings | failed | interrupted
	DurationMs int64           `json:"duration_ms"`
	Rows       int64           `json:"rows"`
	Failed     int             `json:"failed_jobs"`
	Summary    *export.Summary `json:"summary"`
}

// Status values of RunResult.
const (
	StatusSuccess     = "success"
	StatusWarnings    = "warnings"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// RedisPublisher публикует итог запуска в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// StateKey returns the key holding the last run state.
func (p *RedisPublisher) StateKey() string {
	return fmt.Sprintf("partarch:run:%s:state", p.config.Name)
}

// Channel returns the pub/sub channel of run events.
func (p *RedisPublisher) Channel() string {
	return fmt.Sprintf("partarch:run:%s", p.config.Name)
}

// Publish stores and publishes the run summary. runErr is the fatal error
// of the run, if any.
func (p *RedisPublisher) Publish(ctx context.Context, summary *export.Summary, runErr error) error {
	result := RunResult{
		Name:       p.config.Name,
		Status:     status(summary, runErr),
		DurationMs: summary.Duration.Milliseconds(),
		Rows:       summary.Rows(),
		Failed:     summary.Failed(),
		Summary:    summary,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := p.config.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	if err := p.client.Set(ctx, p.StateKey(), payload, time.Duration(ttl)*time.Second).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

func status(summary *export.Summary, runErr error) string {
	var interrupted *export.InterruptedError
	switch {
	case runErr != nil && errors.As(runErr, &interrupted):
		return StatusInterrupted
	case runErr != nil:
		return StatusFailed
	case summary.HasWarnings():
		return StatusWarnings
	default:
		return StatusSuccess
	}
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
