package mvcc

import "github.com/prometheus/client_golang/prometheus"

var (
	storageBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "mvcc",
			Name:      "storage_bytes_total",
			Help:      "Counter of key and value bytes written, tombstoned or dropped.",
		}, []string{"type"})

	versionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "mvcc",
			Name:      "versions_total",
			Help:      "Counter of versions written or dropped.",
		}, []string{"type"})

	tierScanCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "mvcc",
			Name:      "tier_scans_total",
			Help:      "Counter of range scan round trips per tier.",
		}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(storageBytesCounter)
	prometheus.MustRegister(versionsCounter)
	prometheus.MustRegister(tierScanCounter)
}
