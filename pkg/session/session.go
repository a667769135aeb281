package session

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/adapters"
)

const (
	// NamePrefix - общий префикс всех вспомогательных объектов
	NamePrefix = "partarch_"

	// DefaultTeardownTimeout ограничивает удаление view после отмены запуска
	DefaultTeardownTimeout = 30 * time.Second

	probeSelect = "SELECT 1 AS probe"
)

// Options - параметры сессии
type Options struct {
	// Token - токен сессии; пустой - NewToken()
	Token string

	// TeardownTimeout - 0 означает DefaultTeardownTimeout
	TeardownTimeout time.Duration

	Logger zerolog.Logger
}

// Session - состояние одного запуска экспорта
type Session struct {
	token   string
	engine  adapters.Engine
	logger  zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	helpers []string        // созданные и еще не удаленные view, в порядке создания
	used    map[string]bool // все выданные имена

	teardownOnce sync.Once
	teardownErr  error
}

// Open creates a session and checks that helper views can be created and
// dropped by creating a probe view. Failures are returned as *SetupError.
// If only the probe drop fails, the session is returned along with the
// error so the caller can still run Teardown.
func Open(ctx context.Context, engine adapters.Engine, opts Options) (*Session, error) {
	if opts.Token == "" {
		opts.Token = NewToken()
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}

	s := &Session{
		token:   opts.Token,
		engine:  engine,
		logger:  opts.Logger.With().Str("session", opts.Token).Logger(),
		timeout: opts.TeardownTimeout,
		used:    make(map[string]bool),
	}

	if err := engine.Ping(ctx); err != nil {
		return nil, &SetupError{Op: "ping", Err: err}
	}

	probe := s.nameWithin(NamePrefix+s.token+"_probe", engine.MaxIdentifierLength())
	if err := engine.CreateView(ctx, probe, probeSelect); err != nil {
		return nil, &SetupError{Op: "create probe view", Err: err}
	}
	if err := engine.DropView(ctx, probe); err != nil {
		// view остался в базе: пусть его удалит Teardown
		s.Track(probe)
		return s, &SetupError{Op: "drop probe view", Err: err}
	}

	s.logger.Debug().Str("engine", engine.GetDatabaseType()).Msg("session opened")
	return s, nil
}

// Token returns the session token.
func (s *Session) Token() string { return s.token }

// HelperName returns an unused helper view name for table:
// partarch_<token>_<table>, lower-cased, limited to the engine's identifier
// length and suffixed with _2, _3, ... when the name was already handed out.
func (s *Session) HelperName(table string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxLen := s.engine.MaxIdentifierLength()
	base := s.nameWithin(NamePrefix+s.token+"_"+adapters.SanitizeIdentifier(table), maxLen)
	name := base
	for n := 2; s.used[name]; n++ {
		suffix := "_" + strconv.Itoa(n)
		name = s.nameWithin(base, maxLen-len(suffix)) + suffix
	}
	s.used[name] = true
	return name
}

// nameWithin обрезает имя до maxLen байт; префикс с токеном не обрезается
func (s *Session) nameWithin(name string, maxLen int) string {
	minLen := len(NamePrefix) + len(s.token) + 2
	if maxLen < minLen {
		maxLen = minLen
	}
	if len(name) > maxLen {
		return name[:maxLen]
	}
	return name
}

// CreateHelper creates a helper view over selectSQL for table and tracks
// it for teardown.
func (s *Session) CreateHelper(ctx context.Context, table, selectSQL string) (string, error) {
	name := s.HelperName(table)
	if err := s.engine.CreateView(ctx, name, selectSQL); err != nil {
		return "", err
	}
	s.Track(name)
	s.logger.Debug().Str("view", name).Str("table", table).Msg("helper view created")
	return name, nil
}

// Track registers a helper object to be dropped by Teardown.
func (s *Session) Track(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.helpers, name) {
		s.helpers = append(s.helpers, name)
	}
}

// ReleaseHelper drops a helper view as soon as its job is finished. On
// failure the view stays tracked and Teardown retries it.
func (s *Session) ReleaseHelper(ctx context.Context, name string) error {
	if err := s.engine.DropView(ctx, name); err != nil {
		return err
	}
	s.mu.Lock()
	s.helpers = slices.DeleteFunc(s.helpers, func(h string) bool { return h == name })
	s.mu.Unlock()
	return nil
}

// Helpers returns the helper views that are still tracked.
func (s *Session) Helpers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.helpers)
}

// Teardown drops all tracked helper views. Only the first call does any
// work; later calls return the same result. ctx may already be cancelled:
// cleanup runs on a detached context limited by the teardown timeout.
// Failures are logged and returned for inspection, callers do not let them
// replace the run's own error.
func (s *Session) Teardown(ctx context.Context) error {
	s.teardownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		helpers := s.Helpers()
		var result *multierror.Error
		// в обратном порядке создания
		for i := len(helpers) - 1; i >= 0; i-- {
			name := helpers[i]
			if err := s.engine.DropView(ctx, name); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
				continue
			}
			s.logger.Debug().Str("view", name).Msg("helper view dropped")
		}

		s.mu.Lock()
		s.helpers = nil
		s.mu.Unlock()

		s.teardownErr = result.ErrorOrNil()
		if s.teardownErr != nil {
			s.logger.Warn().Err(s.teardownErr).Msg("session teardown incomplete, helper views may remain")
			return
		}
		s.logger.Debug().Int("views", len(helpers)).Msg("session closed")
	})
	return s.teardownErr
}
