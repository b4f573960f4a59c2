// Package metrics exposes Prometheus collectors for the capture pipeline.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attend"

// Tick results.
const (
	TickDetected = "detected"
	TickSkipped  = "skipped"
	TickBusy     = "busy"
	TickStale    = "stale"
)

var (
	// ticksTotal counts poll loop ticks by what happened to them.
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_ticks_total",
			Help:      "Total number of detection poll ticks by result",
		},
		[]string{"result"}, // detected, skipped, busy, stale
	)

	// detectionErrorsTotal counts swallowed inference errors.
	detectionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_errors_total",
			Help:      "Total number of transient face detection errors",
		},
	)

	// detectionDuration is a histogram of single-frame inference time.
	detectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of single-frame face detection in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .2, .5, 1},
		},
	)

	// modelLoadsTotal counts detector model loads.
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of face detection model loads",
		},
		[]string{"status"}, // success, error
	)

	// admissionTransitionsTotal counts stabilized admission state changes.
	admissionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_transitions_total",
			Help:      "Total number of admission state transitions",
		},
		[]string{"from", "to"},
	)

	// multiFaceWarningsTotal counts multi-face episodes.
	multiFaceWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multi_face_warnings_total",
			Help:      "Total number of multi-face warnings raised",
		},
	)

	// sessionsActive is a gauge of sessions holding a camera.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of capture sessions currently holding a camera",
		},
	)

	// sessionStartsTotal counts session start attempts.
	sessionStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Total number of capture session start attempts",
		},
		[]string{"status"}, // started, camera_unavailable, model_unavailable
	)

	// submissionsTotal counts capture attempts by outcome kind.
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of attendance submissions by outcome",
		},
		[]string{"outcome"},
	)

	// submissionDuration is a histogram of verification round trips.
	submissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Duration of attendance verification calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
	)
)

var collectors = []prometheus.Collector{
	ticksTotal,
	detectionErrorsTotal,
	detectionDuration,
	modelLoadsTotal,
	admissionTransitionsTotal,
	multiFaceWarningsTotal,
	sessionsActive,
	sessionStartsTotal,
	submissionsTotal,
	submissionDuration,
}

var registerOnce sync.Once

// Register adds all collectors to reg. Collectors that are already
// registered are ignored, so calling it twice is harmless.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegisterDefault registers with the default Prometheus registry once.
func MustRegisterDefault() {
	registerOnce.Do(func() {
		if err := Register(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}

// RecordTick records one poll loop tick.
func RecordTick(result string) {
	ticksTotal.WithLabelValues(result).Inc()
}

// Ticks returns the tick counter for one result label.
func Ticks(result string) prometheus.Counter {
	return ticksTotal.WithLabelValues(result)
}

// RecordDetectionError records a swallowed inference error.
func RecordDetectionError() {
	detectionErrorsTotal.Inc()
}

// RecordDetectionDuration records inference time in seconds.
func RecordDetectionDuration(seconds float64) {
	detectionDuration.Observe(seconds)
}

// RecordModelLoad records a model load attempt.
func RecordModelLoad(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	modelLoadsTotal.WithLabelValues(status).Inc()
}

// RecordAdmissionTransition records a stabilized state change.
func RecordAdmissionTransition(from, to string) {
	admissionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordMultiFaceWarning records the start of a multi-face episode.
func RecordMultiFaceWarning() {
	multiFaceWarningsTotal.Inc()
}

// RecordSessionStart records a start attempt and, on success, an active session.
func RecordSessionStart(status string) {
	sessionStartsTotal.WithLabelValues(status).Inc()
	if status == "started" {
		sessionsActive.Inc()
	}
}

// RecordSessionEnd records a session releasing its camera.
func RecordSessionEnd() {
	sessionsActive.Dec()
}

// RecordSubmission records a finished capture attempt.
func RecordSubmission(outcome string, seconds float64) {
	submissionsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		submissionDuration.Observe(seconds)
	}
}
