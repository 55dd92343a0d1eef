package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Config struct {
	RedisCheckInterval time.Duration
	DBCheckInterval    time.Duration
	QueueCheckInterval time.Duration
	ID                 string
}

type Component string

const (
	ComponentRedis Component = "redis"
	ComponentDB    Component = "db"
	ComponentQueue Component = "queue"
)

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

type QueueState interface {
	Connected() bool
}

type Checker struct {
	config *Config
	redis  RedisPinger
	db     DBPinger
	queue  QueueState
	log    *slog.Logger

	mu     sync.RWMutex
	checks HealthChecks
}

func NewChecker(redis RedisPinger, db DBPinger, queue QueueState, config *Config) *Checker {
	return &Checker{
		config: config,
		redis:  redis,
		db:     db,
		queue:  queue,
		log:    slog.With("pod", config.ID, "component", "health"),
		checks: HealthChecks{
			// if this code gets executed, we assume that there was an initial
			// check
			ComponentDB:    CheckResult{Timestamp: time.Now(), Result: true},
			ComponentRedis: CheckResult{Timestamp: time.Now(), Result: true},
			ComponentQueue: CheckResult{Timestamp: time.Now(), Result: true},
		},
	}
}

func (c *Checker) Run(ctx context.Context) error {
	c.log.Debug("Starting the health checker...")

	redisTicker := time.NewTicker(c.config.RedisCheckInterval)
	defer redisTicker.Stop()
	dbTicker := time.NewTicker(c.config.DBCheckInterval)
	defer dbTicker.Stop()
	queueTicker := time.NewTicker(c.config.QueueCheckInterval)
	defer queueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return nil
		case <-redisTicker.C:
			c.checkRedis(ctx)
		case <-dbTicker.C:
			c.checkDB(ctx)
		case <-queueTicker.C:
			c.set(ComponentQueue, c.queue.Connected())
		}
	}
}

func (c *Checker) checkRedis(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err := c.redis.Ping(checkCtx).Result()
	c.set(ComponentRedis, err == nil)
}

func (c *Checker) checkDB(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	err := c.db.Ping(checkCtx)
	c.set(ComponentDB, err == nil)
}

func (c *Checker) set(component Component, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[component] = CheckResult{
		Timestamp: time.Now(),
		Result:    ok,
	}
}

// CheckNow runs all checks once.
func (c *Checker) CheckNow(ctx context.Context) {
	c.checkRedis(ctx)
	c.checkDB(ctx)
	c.set(ComponentQueue, c.queue.Connected())
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
			c.log.Error("Component health check failed", "component", component)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}
