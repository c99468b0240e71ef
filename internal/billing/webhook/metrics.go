package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "webhook",
		Name:      "events_processed_total",
		Help:      "Webhook events handled and recorded in the idempotency ledger.",
	}, []string{"provider", "kind"})
	eventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "webhook",
		Name:      "events_duplicate_total",
		Help:      "Deliveries settled from the ledger without re-running a handler.",
	}, []string{"provider", "kind"})
	eventsIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "webhook",
		Name:      "events_ignored_total",
		Help:      "Deliveries of vendor event types outside the supported set.",
	}, []string{"provider"})
	eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "webhook",
		Name:      "events_failed_total",
		Help:      "Events whose handler returned an error; the delivery will be retried.",
	}, []string{"provider", "kind"})
	eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checklane",
		Subsystem: "webhook",
		Name:      "events_rejected_total",
		Help:      "Deliveries rejected before handling for signature or payload problems.",
	}, []string{"provider"})
)
