package health

import (
	"context"
	stderrors "errors"
	"testing"

	redis "github.com/redis/go-redis/v9"
)

type fakeRedis struct{ err error }

func (f fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeQueue bool

func (f fakeQueue) Connected() bool { return bool(f) }

func TestGetHealthStatus(t *testing.T) {
	down := stderrors.New("down")

	tests := []struct {
		name    string
		redis   error
		db      error
		queue   bool
		healthy bool
		failed  Component
	}{
		{name: "all up", queue: true, healthy: true},
		{name: "redis down", redis: down, queue: true, failed: ComponentRedis},
		{name: "db down", db: down, queue: true, failed: ComponentDB},
		{name: "queue down", failed: ComponentQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(fakeRedis{tt.redis}, fakeDB{tt.db}, fakeQueue(tt.queue), &Config{ID: "test"})

			if !c.GetHealthStatus().Healthy {
				t.Fatalf("expected healthy before the first check")
			}

			c.CheckNow(context.Background())

			status := c.GetHealthStatus()
			if status.Healthy != tt.healthy {
				t.Fatalf("expected healthy=%v, got %+v", tt.healthy, status)
			}
			if tt.failed != "" && status.Checks[tt.failed].Result {
				t.Errorf("expected %s to fail", tt.failed)
			}
		})
	}
}
