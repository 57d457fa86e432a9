package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/admissions/core"
)

const namespace = "admissions"

// Recorder exports the automation counters to prometheus.
type Recorder struct {
	registry       *prometheus.Registry
	claims         *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	noShows        prometheus.Counter
	tasksOpened    *prometheus.CounterVec
	tasksCancelled prometheus.Counter
}

var _ core.Metrics = (*Recorder)(nil)

// NewRecorder registers the counters on a dedicated registry (with the go and process collectors).
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_claims_total",
			Help:      "Claim attempts per automation step; won=false means another run claimed first.",
		}, []string{"step", "won"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_reminders_total",
			Help:      "Visit reminder deliveries per window and outcome.",
		}, []string{"window", "ok"}),
		noShows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_no_shows_total",
			Help:      "Attendees marked as no-show.",
		}),
		tasksOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_tasks_opened_total",
			Help:      "Tasks opened by automation, per tag.",
		}, []string{"tag"}),
		tasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_tasks_cancelled_total",
			Help:      "Open automation tasks cancelled because their application reached a final status.",
		}),
	}
	r.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		r.claims,
		r.notifications,
		r.noShows,
		r.tasksOpened,
		r.tasksCancelled,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Claim(step string, won bool) {
	r.claims.WithLabelValues(step, strconv.FormatBool(won)).Inc()
}

func (r *Recorder) Notification(window string, ok bool) {
	r.notifications.WithLabelValues(window, strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) NoShows(n int) {
	r.noShows.Add(float64(n))
}

func (r *Recorder) TasksOpened(tag string, n int) {
	r.tasksOpened.WithLabelValues(tag).Add(float64(n))
}

func (r *Recorder) TasksCancelled(n int) {
	r.tasksCancelled.Add(float64(n))
}
