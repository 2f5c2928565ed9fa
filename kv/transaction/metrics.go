package transaction

import "github.com/prometheus/client_golang/prometheus"

var (
	txnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "total",
			Help:      "Counter of finished command transactions by outcome.",
		}, []string{"outcome"})

	txnDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of command transaction duration, from begin to commit or rollback.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 20),
		}, []string{"outcome"})

	commitDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "commit_duration_seconds",
			Help:      "Bucketed histogram of the time spent in Commit.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 20),
		})
)

func init() {
	prometheus.MustRegister(txnCounter)
	prometheus.MustRegister(txnDurationHistogram)
	prometheus.MustRegister(commitDurationHistogram)
}
