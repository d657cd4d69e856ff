package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clipper/internal/job"
)

const namespace = "clipper"

// Metrics holds the pipeline collectors.
type Metrics struct {
	JobsSubmitted   prometheus.Counter
	SubmitsRejected *prometheus.CounterVec
	StateEntries    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	JobsFinished    *prometheus.CounterVec
	JobsActive      prometheus.Gauge
	OutputBytes     prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of accepted job submissions",
		}),
		SubmitsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submits_rejected_total",
			Help:      "Total number of submissions refused before a job was created",
		}, []string{"cause"}),
		StateEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_state_entries_total",
			Help:      "Total number of job state transitions by target state",
		}, []string{"state"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of completed pipeline stages in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that reached a terminal state",
		}, []string{"state", "reason"}),
		JobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of jobs currently holding a requester slot",
		}),
		OutputBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_bytes",
			Help:      "Size of delivered files in bytes",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 8),
		}),
	}
}

func (m *Metrics) JobSubmitted() { m.JobsSubmitted.Inc() }

func (m *Metrics) SubmitRejected(cause string) { m.SubmitsRejected.WithLabelValues(cause).Inc() }

func (m *Metrics) StateEntered(state job.State) { m.StateEntries.WithLabelValues(string(state)).Inc() }

func (m *Metrics) StageCompleted(stage string, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) JobFinished(snap job.Snapshot) {
	reason := string(snap.Reason)
	if reason == "" {
		reason = "none"
	}
	m.JobsFinished.WithLabelValues(string(snap.State), reason).Inc()
	if snap.State == job.StateCompleted && snap.OutputBytes != nil {
		m.OutputBytes.Observe(float64(*snap.OutputBytes))
	}
}

func (m *Metrics) ActiveJobs(count int) { m.JobsActive.Set(float64(count)) }
