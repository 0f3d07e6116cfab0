package scheduler

import (
	"time"

	"github.com/docker/go-metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/buildstream-go/core/internal/queue"
)

// namespacePrefix mirrors the teacher's metrics.NamespacePrefix
// ("registry"), renamed to this module's domain.
const namespacePrefix = "buildstream"

// schedulerNamespace is the dispatch loop's go-metrics namespace, grounded
// on the teacher's metrics.StorageNamespace/MiddlewareNamespace pattern
// (metrics/prometheus.go): one package-level Namespace registered once,
// instruments created from it per concern.
var schedulerNamespace = metrics.NewNamespace(namespacePrefix, "scheduler", nil)

// jobMetrics holds the scheduler's resource-gauge and job-counter
// instruments. A fresh set is created per Scheduler rather than shared
// package globals, so tests constructing multiple schedulers don't
// collide on label cardinality.
type jobMetrics struct {
	resourcesInUse metrics.LabeledGauge
	jobsTotal      metrics.LabeledCounter
	jobDuration    metrics.LabeledTimer
}

func newJobMetrics() *jobMetrics {
	return &jobMetrics{
		resourcesInUse: schedulerNamespace.NewLabeledGauge("resources_in_use", "resource tickets currently reserved", metrics.Total, "resource"),
		jobsTotal:      schedulerNamespace.NewLabeledCounter("jobs_total", "jobs completed, by action and status", "action", "status"),
		jobDuration:    schedulerNamespace.NewLabeledTimer("job_duration_seconds", "job wall-clock duration, by action", "action"),
	}
}

// Register exposes the scheduler's metrics via client_golang's default
// registry, the way the teacher wires its metrics.Namespace instances
// into a Prometheus /metrics handler (a go-metrics Namespace implements
// prometheus.Collector, so registration is a direct MustRegister call).
func Register() {
	prometheus.MustRegister(schedulerNamespace)
	metrics.Register(schedulerNamespace)
}

func (m *jobMetrics) observeReserve(resources []queue.Resource) {
	for _, r := range resources {
		m.resourcesInUse.WithValues(r.String()).Inc()
	}
}

func (m *jobMetrics) observeRelease(resources []queue.Resource) {
	for _, r := range resources {
		m.resourcesInUse.WithValues(r.String()).Dec()
	}
}

func (m *jobMetrics) observeDone(action string, status string, start time.Time) {
	m.jobsTotal.WithValues(action, status).Inc()
	m.jobDuration.WithValues(action).UpdateSince(start)
}
