package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coophours",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coophours",
			Name:      "reservations_created_total",
			Help:      "Reservations accepted into the ledger.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coophours",
			Name:      "reservation_conflicts_total",
			Help:      "Reservation attempts rejected for overlapping an existing interval.",
		},
	)

	sessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coophours",
			Name:      "sessions_expired_total",
			Help:      "Requests rejected because the session idle window had passed.",
		},
	)

	exportsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coophours",
			Name:      "exports_generated_total",
			Help:      "Ledger workbooks generated.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			reservationConflicts,
			sessionsExpired,
			exportsGenerated,
		)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncReservationCreated() { reservationsCreated.Inc() }

func IncReservationConflict() { reservationConflicts.Inc() }

func IncSessionExpired() { sessionsExpired.Inc() }

func IncExportGenerated() { exportsGenerated.Inc() }
