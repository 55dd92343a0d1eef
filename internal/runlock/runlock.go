// Package runlock makes sure only one collection run is assembled at a time
// across all instances of the service.
package runlock

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/redis/go-redis/v9"
)

const Key = "sepa:collection-run"

type Config struct {
	TTL time.Duration
	// Owner is stored with the lock, e.g. the pod name.
	Owner string
}

type Lock struct {
	config *Config
	locker *redislock.Client
	log    *slog.Logger
}

func New(config *Config, client redis.Scripter) *Lock {
	return &Lock{
		config: config,
		locker: redislock.New(client),
		log:    slog.With("component", "runlock"),
	}
}

// Do runs fn while holding the run lock. If another run holds the lock Do
// returns a Conflict without calling fn.
func (l *Lock) Do(ctx context.Context, fn func(context.Context) error) error {
	lock, err := l.locker.Obtain(ctx, Key, l.config.TTL, &redislock.Options{Metadata: l.config.Owner})
	if stderrors.Is(err, redislock.ErrNotObtained) {
		return errors.Conflict("another collection run is in progress")
	}
	if err != nil {
		return fmt.Errorf("obtain run lock: %w", err)
	}

	l.log.Debug("Run lock obtained", "owner", l.config.Owner, "ttl", l.config.TTL)

	defer func() {
		// The lock is released by expiry if this fails.
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !stderrors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Error("couldn't release run lock", "error", err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.config.TTL)
	defer cancel()

	return fn(lockCtx)
}
