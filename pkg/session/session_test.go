package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/adapters/sqlite"
)

func openSQLite(t *testing.T) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()

	engine := sqlite.NewAdapter()
	if err := engine.Connect(ctx, adapters.Config{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "session.db")}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { engine.Close(ctx) })

	if _, err := engine.DB().ExecContext(ctx, `CREATE TABLE orders (id INTEGER, part TEXT)`); err != nil {
		t.Fatal(err)
	}
	return engine
}

func views(t *testing.T, engine *sqlite.Adapter) []string {
	t.Helper()
	rows, err := engine.DB().Query(`SELECT name FROM sqlite_master WHERE type = 'view' ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		rows.Scan(&n)
		names = append(names, n)
	}
	return names
}

// fakeEngine записывает вызовы CreateView/DropView
type fakeEngine struct {
	adapters.Engine

	maxLen    int
	pingErr   error
	createErr error
	dropErr   map[string]error

	mu      sync.Mutex
	created []string
	dropped []string
}

func (f *fakeEngine) Ping(context.Context) error { return f.pingErr }
func (f *fakeEngine) GetDatabaseType() string    { return "fake" }
func (f *fakeEngine) MaxIdentifierLength() int   { return f.maxLen }

func (f *fakeEngine) CreateView(_ context.Context, name, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return nil
}

func (f *fakeEngine) DropView(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for prefix, err := range f.dropErr {
		if strings.Contains(name, prefix) {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, name)
	return nil
}

func TestNewToken(t *testing.T) {
	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		tok := NewToken()
		if len(tok) != TokenLength {
			t.Fatalf("token %q has length %d", tok, len(tok))
		}
		if strings.Trim(tok, "0123456789abcdef") != "" {
			t.Fatalf("token %q is not lower-case hex", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q after %d generations", tok, i)
		}
		seen[tok] = true
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("probe view is dropped", func(t *testing.T) {
		engine := openSQLite(t)
		s, err := Open(ctx, engine, Options{})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if len(s.Token()) != TokenLength {
			t.Errorf("Token() = %q", s.Token())
		}
		if v := views(t, engine); len(v) != 0 {
			t.Errorf("views left after Open: %v", v)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		_, err := Open(ctx, sqlite.NewAdapter(), Options{})
		var setupErr *SetupError
		if !errors.As(err, &setupErr) || setupErr.Op != "ping" {
			t.Fatalf("expected ping SetupError, got %v", err)
		}
		if !errors.Is(err, adapters.ErrNotConnected) {
			t.Errorf("SetupError must wrap the engine error")
		}
	})

	t.Run("create view denied", func(t *testing.T) {
		denied := errors.New("permission denied for schema public")
		_, err := Open(ctx, &fakeEngine{maxLen: 63, createErr: denied}, Options{})
		var setupErr *SetupError
		if !errors.As(err, &setupErr) || !errors.Is(err, denied) {
			t.Fatalf("expected SetupError wrapping %v, got %v", denied, err)
		}
	})

	t.Run("probe drop fails", func(t *testing.T) {
		engine := &fakeEngine{maxLen: 63, dropErr: map[string]error{"_probe": errors.New("locked")}}
		s, err := Open(ctx, engine, Options{Token: "abc"})
		var setupErr *SetupError
		if !errors.As(err, &setupErr) || s == nil {
			t.Fatalf("expected session and SetupError, got %v, %v", s, err)
		}
		if h := s.Helpers(); len(h) != 1 || h[0] != "partarch_abc_probe" {
			t.Errorf("probe must stay tracked for teardown, got %v", h)
		}
	})
}

func TestHelperName(t *testing.T) {
	engine := &fakeEngine{maxLen: 30}
	s, err := Open(context.Background(), engine, Options{Token: "0123456789ab"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		table string
		want  string
	}{
		{"Orders", "partarch_0123456789ab_orders"},
		{"Orders", "partarch_0123456789ab_orders_2"},
		{"Orders", "partarch_0123456789ab_orders_3"},
		{"Order Lines", "partarch_0123456789ab_order_li"},          // обрезано до 30
		{"Order-Lines", "partarch_0123456789ab_order__2"},          // та же основа после очистки
		{"very_long_table_name", "partarch_0123456789ab_very_lon"}, // обрезано до 30
	}
	for _, tt := range tests {
		got := s.HelperName(tt.table)
		if got != tt.want {
			t.Errorf("HelperName(%q) = %q, want %q", tt.table, got, tt.want)
		}
		if len(got) > 30 {
			t.Errorf("HelperName(%q) = %q exceeds identifier limit", tt.table, got)
		}
	}
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	engine := openSQLite(t)

	s, err := Open(ctx, engine, Options{})
	if err != nil {
		t.Fatal(err)
	}

	a, err := s.CreateHelper(ctx, "orders", "SELECT * FROM orders WHERE part = 'P1'")
	if err != nil {
		t.Fatalf("CreateHelper: %v", err)
	}
	b, err := s.CreateHelper(ctx, "orders", "SELECT * FROM orders WHERE part = 'P2'")
	if err != nil {
		t.Fatalf("CreateHelper: %v", err)
	}
	if a == b {
		t.Fatalf("helper names collide: %s", a)
	}
	if v := views(t, engine); len(v) != 2 {
		t.Fatalf("views = %v, want 2", v)
	}

	if err := s.ReleaseHelper(ctx, a); err != nil {
		t.Fatalf("ReleaseHelper: %v", err)
	}
	if h := s.Helpers(); len(h) != 1 || h[0] != b {
		t.Errorf("Helpers() = %v, want [%s]", h, b)
	}

	// контекст уже отменен, как после Ctrl+C
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Teardown(cancelled); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if v := views(t, engine); len(v) != 0 {
		t.Errorf("views left after teardown: %v", v)
	}
	if err := s.Teardown(ctx); err != nil {
		t.Errorf("second Teardown: %v", err)
	}
}

func TestTeardown_RunsOnce(t *testing.T) {
	engine := &fakeEngine{maxLen: 63, dropErr: map[string]error{"_bad": errors.New("in use")}}
	s, err := Open(context.Background(), engine, Options{Token: "t1", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"a", "bad", "c"} {
		if _, err := s.CreateHelper(context.Background(), table, "SELECT 1"); err != nil {
			t.Fatal(err)
		}
	}
	engine.dropped = nil

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Teardown(context.Background())
		}(i)
	}
	wg.Wait()

	if got := fmt.Sprint(engine.dropped); got != "[partarch_t1_c partarch_t1_a]" {
		t.Errorf("dropped = %s, want reverse creation order, each once", got)
	}
	for _, err := range errs {
		if err == nil || !strings.Contains(err.Error(), "partarch_t1_bad") {
			t.Errorf("Teardown error = %v, want failure for partarch_t1_bad", err)
		}
	}
	if len(s.Helpers()) != 0 {
		t.Errorf("Helpers() after teardown = %v", s.Helpers())
	}
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	engine := openSQLite(t)

	s1, err := Open(ctx, engine, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := Open(ctx, engine, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s1.Token() == s2.Token() {
		t.Fatal("sessions share a token")
	}

	v1, err := s1.CreateHelper(ctx, "orders", "SELECT * FROM orders WHERE part = 'P1'")
	if err != nil {
		t.Fatal(err)
	}
	v2, err := s2.CreateHelper(ctx, "orders", "SELECT * FROM orders WHERE part = 'P2'")
	if err != nil {
		t.Fatal(err)
	}

	s1.Teardown(ctx)
	if got := views(t, engine); len(got) != 1 || got[0] != v2 {
		t.Errorf("after first teardown views = %v, want [%s] (dropped %s)", got, v2, v1)
	}
	s2.Teardown(ctx)
	if got := views(t, engine); len(got) != 0 {
		t.Errorf("views left: %v", got)
	}
}

func TestWatch(t *testing.T) {
	t.Run("signal cancels with cause", func(t *testing.T) {
		ch := make(chan os.Signal, 1)
		released := make(chan struct{}, 2)
		ctx, stop := watch(context.Background(), ch, func() { released <- struct{}{} }, zerolog.Nop())
		defer stop()

		ch <- os.Interrupt
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("context not cancelled after signal")
		}

		var sigErr *SignalError
		if !errors.As(context.Cause(ctx), &sigErr) || sigErr.Signal != os.Interrupt {
			t.Errorf("Cause = %v, want SignalError(interrupt)", context.Cause(ctx))
		}
		select {
		case <-released:
		default:
			t.Error("signal handler must be released after the first signal")
		}
	})

	t.Run("stop without signal", func(t *testing.T) {
		ch := make(chan os.Signal, 1)
		ctx, stop := watch(context.Background(), ch, func() {}, zerolog.Nop())
		stop()
		stop()

		<-ctx.Done()
		if !errors.Is(context.Cause(ctx), context.Canceled) {
			t.Errorf("Cause = %v, want context.Canceled", context.Cause(ctx))
		}
	})
}
