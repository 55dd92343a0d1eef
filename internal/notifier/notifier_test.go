package notifier

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/openbuilders/sepa-collector/internal/queue"
	"github.com/openbuilders/sepa-collector/internal/repository/memory"
	"github.com/openbuilders/sepa-collector/internal/types"
)

type message struct {
	queue queue.QueueName
	id    string
	body  []byte
}

type fakePublisher struct {
	sent   []message
	failAt int
}

func (p *fakePublisher) Publish(_ context.Context, name queue.QueueName, id string, body []byte) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return stderrors.New("channel closed")
	}
	p.sent = append(p.sent, message{queue: name, id: id, body: body})
	return nil
}

func addEvents(t *testing.T, repo *memory.Repository, n int) []types.Event {
	t.Helper()

	var events []types.Event
	for i := 0; i < n; i++ {
		e, err := types.NewEvent(types.EventBatchStatusChanged, map[string]int{"batchId": i}, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := repo.AddEvent(context.Background(), e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func newNotifier(publisher Publisher, repo Repository) *Notifier {
	return New(&Config{BatchSize: 10, DBTimeout: time.Second, Queue: queue.QueueEvents}, publisher, repo)
}

func TestFlushPublishesInOrder(t *testing.T) {
	repo := memory.New()
	events := addEvents(t, repo, 3)
	publisher := &fakePublisher{}

	n, err := newNotifier(publisher, repo).Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 || len(publisher.sent) != 3 {
		t.Fatalf("expected 3 published events, got %d", n)
	}

	for i, m := range publisher.sent {
		if m.queue != queue.QueueEvents || m.id != events[i].ID.String() {
			t.Errorf("unexpected message %d: %+v", i, m)
		}

		var body Notification
		if err := json.Unmarshal(m.body, &body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body.Pattern != types.EventBatchStatusChanged || body.ID != events[i].ID {
			t.Errorf("unexpected notification %+v", body)
		}
	}

	left, _ := repo.UnpublishedEvents(context.Background(), 10)
	if len(left) != 0 {
		t.Errorf("expected all events marked, %d left", len(left))
	}

	// nothing is sent twice
	if n, err := newNotifier(publisher, repo).Flush(context.Background()); err != nil || n != 0 {
		t.Errorf("expected nothing to publish, got %d (%v)", n, err)
	}
}

func TestFlushStopsAtFailure(t *testing.T) {
	repo := memory.New()
	events := addEvents(t, repo, 3)
	publisher := &fakePublisher{failAt: 2}

	n, err := newNotifier(publisher, repo).Flush(context.Background())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if n != 1 {
		t.Fatalf("expected one published event, got %d", n)
	}

	left, _ := repo.UnpublishedEvents(context.Background(), 10)
	if len(left) != 2 || left[0].ID != events[1].ID {
		t.Fatalf("expected the failed event and its successor to stay unpublished, got %+v", left)
	}

	publisher.failAt = 0
	if n, err := newNotifier(publisher, repo).Flush(context.Background()); err != nil || n != 2 {
		t.Fatalf("expected the rest to be published, got %d (%v)", n, err)
	}
}
