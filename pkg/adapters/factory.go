package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// typeAliases - альтернативные имена СУБД в конфигурации
var typeAliases = map[string]string{
	"postgresql": "postgres",
	"pgx":        "postgres",
	"sqlserver":  "mssql",
	"sqlite3":    "sqlite",
	"mariadb":    "mysql",
}

// CanonicalType приводит тип СУБД к имени, под которым регистрируется адаптер:
// "PostgreSQL" → "postgres", "sqlserver" → "mssql".
func CanonicalType(dbType string) string {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if canonical, ok := typeAliases[t]; ok {
		return canonical
	}
	return t
}

// EngineConstructor - функция-конструктор адаптера
// Возвращает новый экземпляр адаптера (еще не подключенный к БД)
type EngineConstructor func() Engine

// Factory - фабрика для создания адаптеров
// Управляет регистрацией и созданием адаптеров различных типов
type Factory struct {
	registry map[string]EngineConstructor
	mu       sync.RWMutex
}

// NewFactory создает новую фабрику адаптеров
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]EngineConstructor),
	}
}

// Register регистрирует конструктор адаптера для определенного типа БД
//
// Пример:
//
//	factory.Register("postgres", func() adapters.Engine {
//	    return &postgres.Adapter{}
//	})
func (f *Factory) Register(dbType string, constructor EngineConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[dbType] = constructor
}

// IsRegistered проверяет, зарегистрирован ли адаптер для данного типа БД
func (f *Factory) IsRegistered(dbType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[CanonicalType(dbType)]
	return ok
}

// GetRegisteredTypes возвращает отсортированный список зарегистрированных типов БД
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for dbType := range f.registry {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// CreateWithoutConnect создает адаптер БЕЗ подключения к БД.
// Подключение выполняет вызывающая сторона: partarch подключается с retry.
// dbType может быть псевдонимом, см. CanonicalType.
func (f *Factory) CreateWithoutConnect(dbType string) (Engine, error) {
	f.mu.RLock()
	constructor, ok := f.registry[CanonicalType(dbType)]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database type: %s (available types: %v)",
			dbType, f.GetRegisteredTypes())
	}

	return constructor(), nil
}

// Create создает и подключает адаптер по конфигурации
func (f *Factory) Create(ctx context.Context, cfg Config) (Engine, error) {
	engine, err := f.CreateWithoutConnect(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := engine.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	return engine, nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register регистрирует адаптер в глобальной фабрике
// Эта функция обычно вызывается в init() функциях адаптеров
func Register(dbType string, constructor EngineConstructor) {
	globalFactory.Register(dbType, constructor)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(dbType string) bool {
	return globalFactory.IsRegistered(dbType)
}

// GetRegisteredTypes возвращает типы из глобальной фабрики
func GetRegisteredTypes() []string {
	return globalFactory.GetRegisteredTypes()
}

// New создает и подключает адаптер через глобальную фабрику
func New(ctx context.Context, cfg Config) (Engine, error) {
	return globalFactory.Create(ctx, cfg)
}

// NewWithoutConnect создает адаптер БЕЗ подключения через глобальную фабрику
func NewWithoutConnect(dbType string) (Engine, error) {
	return globalFactory.CreateWithoutConnect(dbType)
}
