// Package metrics exposes the export pipeline's run counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters tracked over one export run.
type Metrics struct {
	ResourcesEmitted     *prometheus.CounterVec
	BatchesPackaged      prometheus.Counter
	FilesCopied          prometheus.Counter
	CopySubgroupFailures prometheus.Counter
}

// New registers the pipeline counters on the given registerer. A nil
// registerer yields working but unregistered counters, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ResourcesEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fcrepo_migrate",
			Name:      "resources_emitted_total",
			Help:      "Resources emitted into batches, by kind.",
		}, []string{"kind"}),
		BatchesPackaged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fcrepo_migrate",
			Name:      "batches_total",
			Help:      "Batches assembled and packaged.",
		}),
		FilesCopied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fcrepo_migrate",
			Name:      "files_copied_total",
			Help:      "Binary files copied into batch directories.",
		}),
		CopySubgroupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fcrepo_migrate",
			Name:      "copy_subgroup_failures_total",
			Help:      "File copy sub-groups dropped due to a copy failure.",
		}),
	}
}

// NewNoop returns unregistered counters.
func NewNoop() *Metrics {
	return New(nil)
}
