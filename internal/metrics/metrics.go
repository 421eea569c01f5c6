package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggoracle_checks_total",
		Help: "Total number of oracle checks by outcome (pass, bug, inconclusive, error).",
	}, []string{"outcome"})

	ChecksByAggregate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggoracle_checks_by_aggregate_total",
		Help: "Total number of completed oracle checks by aggregate function.",
	}, []string{"aggregate"})

	InconclusiveBySignature = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggoracle_inconclusive_by_signature_total",
		Help: "Total number of inconclusive checks by expected-error signature.",
	}, []string{"signature"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggoracle_query_duration_seconds",
		Help:    "Duration of queries sent to the engine under test.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aggoracle_workers_active",
		Help: "Number of running check workers.",
	})
)

// ObserveQuery records one engine query. It has the shape of QE.Observer.
func ObserveQuery(_ string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	QueryDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
