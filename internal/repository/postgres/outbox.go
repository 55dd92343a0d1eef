package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (p *Postgres) AddEvent(ctx context.Context, e types.Event) error {
	_, err := p.q(ctx).Exec(ctx, `
		INSERT INTO events (id, type, payload, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID.String(), e.Type, []byte(e.Payload), e.CreatedAt, e.PublishedAt)
	if err != nil {
		return mapError(err, fmt.Sprintf("event %s", e.ID))
	}

	return nil
}

// UnpublishedEvents returns the oldest unpublished events. Inside a unit of
// work the rows stay locked and are skipped by other publishers.
func (p *Postgres) UnpublishedEvents(ctx context.Context, limit int) ([]types.Event, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT id, type, payload, created_at, published_at
		FROM events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Event, error) {
		var (
			e       types.Event
			id      string
			payload []byte
		)
		if err := row.Scan(&id, &e.Type, &payload, &e.CreatedAt, &e.PublishedAt); err != nil {
			return e, err
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return e, fmt.Errorf("event id %q: %w", id, err)
		}

		e.ID = parsed
		e.Payload = payload
		return e, nil
	})
}

func (p *Postgres) MarkEventsPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	_, err := p.q(ctx).Exec(ctx, `
		UPDATE events SET published_at = $2
		WHERE id = ANY($1::uuid[])`, strs, at)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}

	return nil
}
