// Package metrics exposes Prometheus counters for the correlation and
// delivery paths. All Record* helpers are safe to call before Register.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keybud"

// Outcome label values.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	registryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Connection registry lookups by namespace and outcome.",
		},
		[]string{"namespace", "outcome"},
	)
	registryWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "write_errors_total",
			Help:      "Connection registry writes or deletes that failed and were skipped.",
		},
		[]string{"namespace"},
	)
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "completions_total",
			Help:      "Login completion signals by outcome.",
		},
		[]string{"outcome"},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "New-message pushes per recipient by outcome (success, miss, failure).",
		},
		[]string{"outcome"},
	)
	undecryptableMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "undecryptable_total",
			Help:      "Messages masked in a page because their content could not be decrypted.",
		},
	)
	signedURLs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "signed_urls_total",
			Help:      "Signed URL resolutions by outcome (hit, miss, error).",
		},
		[]string{"outcome"},
	)
)

var registerMetrics sync.Once

// Register adds every collector to reg. Subsequent calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(registryLookups)
		reg.MustRegister(registryWriteErrors)
		reg.MustRegister(completions)
		reg.MustRegister(deliveries)
		reg.MustRegister(undecryptableMessages)
		reg.MustRegister(signedURLs)
	})
}

// RecordRegistryLookup counts one resolve call in the given registry namespace.
func RecordRegistryLookup(ns, outcome string) {
	registryLookups.WithLabelValues(ns, outcome).Inc()
}

// RecordRegistryWriteError counts a swallowed registry write or delete failure.
func RecordRegistryWriteError(ns string) {
	registryWriteErrors.WithLabelValues(ns).Inc()
}

// RecordCompletion counts one login completion attempt.
func RecordCompletion(outcome string) {
	completions.WithLabelValues(outcome).Inc()
}

// RecordDeliveries adds n recipients with the given outcome.
func RecordDeliveries(outcome string, n int) {
	if n <= 0 {
		return
	}
	deliveries.WithLabelValues(outcome).Add(float64(n))
}

func RecordUndecryptableMessage() {
	undecryptableMessages.Inc()
}

// RecordSignedURL counts one object key resolution.
func RecordSignedURL(outcome string) {
	signedURLs.WithLabelValues(outcome).Inc()
}
