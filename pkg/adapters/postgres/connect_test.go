package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ruslano69/partarch/pkg/adapters"
	"github.com/ruslano69/partarch/pkg/retry"
)

func TestIsPermanentConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid password", &pgconn.PgError{Code: "28P01"}, true},
		{"no pg_hba entry", fmt.Errorf("failed to ping database: %w", &pgconn.PgError{Code: "28000"}), true},
		{"unknown database", &pgconn.PgError{Code: "3D000"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanentConnectError(tt.err); got != tt.want {
				t.Errorf("isPermanentConnectError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConnect_MalformedDSNIsPermanent(t *testing.T) {
	a := &Adapter{}
	err := a.Connect(context.Background(), adapters.Config{Type: "postgres", DSN: "host=localhost port=notaport"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !retry.IsPermanent(err) {
		t.Errorf("error %v must not be retried", err)
	}
}
