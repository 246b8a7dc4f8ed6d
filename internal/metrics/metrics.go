// Package metrics exposes Prometheus instrumentation for the booking
// pipeline and the HTTP API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerOnce sync.Once

	tasksProcessed *prometheus.CounterVec
	syncInserts    prometheus.Counter
	httpRequests   *prometheus.CounterVec
)

func register() {
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnibooker",
		Subsystem: "worker",
		Name:      "tasks_processed_total",
		Help:      "Booking tasks driven to a terminal status, by outcome.",
	}, []string{"outcome"})

	syncInserts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omnibooker",
		Subsystem: "queue",
		Name:      "tasks_created_total",
		Help:      "Pending booking tasks created by queue synchronization.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnibooker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP API requests, by method and status class.",
	}, []string{"method", "status"})
}

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(register)
}

// TaskProcessed records a task reaching a terminal outcome.
func TaskProcessed(outcome string) {
	Init()
	tasksProcessed.WithLabelValues(outcome).Inc()
}

// TaskCreated records a pending task inserted during queue sync.
func TaskCreated() {
	Init()
	syncInserts.Inc()
}

// HTTPRequest records a served API request.
func HTTPRequest(method, statusClass string) {
	Init()
	httpRequests.WithLabelValues(method, statusClass).Inc()
}
