package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (r *Repository) AddEvent(_ context.Context, e types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("AddEvent"); err != nil {
		return err
	}

	r.s.events = append(r.s.events, e)

	return nil
}

func (r *Repository) UnpublishedEvents(_ context.Context, limit int) ([]types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Event
	for _, e := range r.s.events {
		if e.PublishedAt != nil {
			continue
		}

		out = append(out, e)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (r *Repository) MarkEventsPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.s.events {
		if slices.Contains(ids, e.ID) {
			published := at
			r.s.events[i].PublishedAt = &published
		}
	}

	return nil
}
