// Package notifier publishes the outbox: events written in the same unit of
// work as the change they describe are sent to the message queue afterwards.
// Delivery is at least once, consumers deduplicate on the event id.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openbuilders/sepa-collector/internal/metrics"
	"github.com/openbuilders/sepa-collector/internal/queue"
	"github.com/openbuilders/sepa-collector/internal/types"
)

type Config struct {
	BatchSize    int
	PollInterval time.Duration
	DBTimeout    time.Duration
	Queue        queue.QueueName
}

type Publisher interface {
	Publish(ctx context.Context, queueName queue.QueueName, messageID string, message []byte) error
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	UnpublishedEvents(ctx context.Context, limit int) ([]types.Event, error)
	MarkEventsPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Notifier struct {
	config    *Config
	publisher Publisher
	repo      Repository
	log       *slog.Logger
}

// Notification is the message body.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	Pattern   types.EventType `json:"pattern"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

func New(config *Config, publisher Publisher, repo Repository) *Notifier {
	return &Notifier{
		config:    config,
		publisher: publisher,
		repo:      repo,
		log:       slog.With("component", "notifier"),
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	n.log.Info("Starting notifier...")

	pollInterval := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			n.log.Info("Stopping notifier.")
			return nil

		case <-time.After(pollInterval):
			pollInterval = n.config.PollInterval

			published, err := n.Flush(ctx)
			if err != nil {
				n.log.Error("couldn't publish events", "published", published, "error", err)
				continue
			}

			// drain a backlog without waiting
			if published == n.config.BatchSize {
				pollInterval = 0
			}
		}
	}
}

// Flush publishes one batch of unpublished events in order and returns how
// many were published. It stops at the first failure. Events published
// before the failure are marked.
func (n *Notifier) Flush(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.DBTimeout)
	defer cancel()

	var (
		published  []uuid.UUID
		publishErr error
	)

	err := n.repo.InTx(ctx, func(ctx context.Context) error {
		events, err := n.repo.UnpublishedEvents(ctx, n.config.BatchSize)
		if err != nil {
			return err
		}

		for _, e := range events {
			if publishErr = n.publish(ctx, e); publishErr != nil {
				metrics.EventPublishErrors.Inc()
				break
			}

			metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
			published = append(published, e.ID)
		}

		if len(published) > 0 {
			if err := n.repo.MarkEventsPublished(ctx, published, time.Now()); err != nil {
				return err
			}

			n.log.Debug("Published events", "count", len(published))
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(published), publishErr
}

func (n *Notifier) publish(ctx context.Context, e types.Event) error {
	body, err := json.Marshal(Notification{
		ID:        e.ID,
		Pattern:   e.Type,
		CreatedAt: e.CreatedAt,
		Data:      e.Payload,
	})
	if err != nil {
		return err
	}

	n.log.Debug("Sending notification", "id", e.ID, "type", e.Type)

	return n.publisher.Publish(ctx, n.config.Queue, e.ID.String(), body)
}
