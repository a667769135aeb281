package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ruslano69/partarch/pkg/export"
	"github.com/ruslano69/partarch/pkg/session"
)

func testSummary() *export.Summary {
	return &export.Summary{
		Session:    "0123456789ab",
		Partitions: []string{"P1"},
		Tables:     []string{"orders"},
		Duration:   1250 * time.Millisecond,
		Outcomes: []export.Outcome{
			{Partition: "P1", Table: "orders", State: export.StateDone, Rows: 42},
		},
	}
}

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	p := NewRedisPublisher(Config{Type: "redis", Address: mr.Addr(), Name: "ORDERS_DAILY", TTL: 600})
	defer p.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "partarch:run:ORDERS_DAILY")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := p.Publish(ctx, testSummary(), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	stored, err := mr.Get("partarch:run:ORDERS_DAILY:state")
	if err != nil {
		t.Fatalf("state key: %v", err)
	}
	if ttl := mr.TTL("partarch:run:ORDERS_DAILY:state"); ttl != 600*time.Second {
		t.Errorf("TTL = %v, want 10m", ttl)
	}

	var result struct {
		Name       string `json:"name"`
		Status     string `json:"status"`
		DurationMs int64  `json:"duration_ms"`
		Rows       int64  `json:"rows"`
		Summary    struct {
			Session  string `json:"session"`
			Outcomes []struct {
				State string `json:"state"`
			} `json:"outcomes"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stored), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Status != StatusSuccess || result.Rows != 42 || result.DurationMs != 1250 {
		t.Errorf("result = %+v", result)
	}
	if result.Summary.Session != "0123456789ab" || result.Summary.Outcomes[0].State != "done" {
		t.Errorf("summary = %+v", result.Summary)
	}

	select {
	case msg := <-pubsub.Channel():
		if msg.Payload != stored {
			t.Errorf("published payload differs from the stored state")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message published")
	}
}

func TestPublish_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewRedisPublisher(Config{Type: "redis", Address: mr.Addr(), Name: "X"})
	defer p.Close()

	if err := p.Publish(context.Background(), testSummary(), nil); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(p.StateKey()); ttl != DefaultTTL*time.Second {
		t.Errorf("TTL = %v", ttl)
	}
}

func TestPublish_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewRedisPublisher(Config{Type: "redis", Address: addr, Name: "X"})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, testSummary(), nil); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestStatus(t *testing.T) {
	warn := testSummary()
	warn.Outcomes = append(warn.Outcomes, export.Outcome{State: export.StateFailed})

	tests := []struct {
		name    string
		summary *export.Summary
		err     error
		want    string
	}{
		{"clean", testSummary(), nil, StatusSuccess},
		{"job failed", warn, nil, StatusWarnings},
		{"collision", testSummary(), &export.DestinationCollisionError{Paths: []string{"x"}}, StatusFailed},
		{"interrupted", testSummary(), &export.InterruptedError{Cause: &session.SignalError{Signal: os.Interrupt}}, StatusInterrupted},
		{"wrapped interrupt", testSummary(), errors.Join(errors.New("run"), &export.InterruptedError{}), StatusInterrupted},
	}
	for _, tt := range tests {
		if got := status(tt.summary, tt.err); got != tt.want {
			t.Errorf("%s: status = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Type: "none"}, false},
		{Config{Type: "redis", Address: "localhost:6379", Name: "X"}, false},
		{Config{Type: "kafka", Address: "x", Name: "X"}, true},
		{Config{Type: "redis", Name: "X"}, true},
		{Config{Type: "redis", Address: "x"}, true},
		{Config{Type: "redis", Address: "x", Name: "X", TTL: -1}, true},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}
