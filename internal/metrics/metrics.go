package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sepa"

var (
	InstructionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instructions_saved_total",
		Help:      "Number of persisted collection instructions.",
	}, []string{"kind", "sequence_type"})

	AmountCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "amount_instructed_euros_total",
		Help:      "Sum of the amounts of persisted collection instructions.",
	}, []string{"kind"})

	AssignmentsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignments_committed_total",
		Help:      "Number of committed collection runs.",
	})

	BatchStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_status_changes_total",
		Help:      "Batch status transitions by target status.",
	}, []string{"status"})

	ReversalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reversals_processed_total",
		Help:      "Processed reversals by reason code.",
	}, []string{"reason"})

	MandatesTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mandates_terminated_total",
		Help:      "Number of terminated mandates.",
	})

	MandatesAnonymized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mandates_anonymized_total",
		Help:      "Number of anonymized mandates.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_published_total",
		Help:      "Outbox events published to the queue.",
	}, []string{"type"})

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_errors_total",
		Help:      "Failed attempts to publish outbox events.",
	})
)
