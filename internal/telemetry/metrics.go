package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Escrow/internal/domain"
)

// Metrics — Prometheus метрики escrow.
//
// Все методы безопасны для nil-получателя: компоненты, которым метрики
// не переданы, просто ничего не пишут.
type Metrics struct {
	RunnerOutcomes    *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	CursorLag         *prometheus.GaugeVec
	LockRetries       prometheus.Counter
	TriggersPublished *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// Для production передаётся prometheus.DefaultRegisterer,
// в тестах — prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RunnerOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_runner_outcomes_total",
			Help: "Runner invocations by task and outcome",
		}, []string{"task", "outcome"}),

		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_runner_task_duration_seconds",
			Help:    "Duration of task bodies executed under lock",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"task"}),

		CursorLag: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escrow_cursor_lag_seconds",
			Help: "How far a cursor watermark is behind the start of the current day",
		}, []string{"tld", "cursor"}),

		LockRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "escrow_lock_acquire_retries_total",
			Help: "Lock store operations retried after a transaction conflict",
		}),

		TriggersPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_triggers_published_total",
			Help: "Trigger messages published by the scheduler",
		}, []string{"task"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_api_http_requests_total",
			Help: "HTTP requests handled by escrow-api",
		}, []string{"method", "status"}),
	}
}

// ObserveOutcome учитывает результат вызова runner.
func (m *Metrics) ObserveOutcome(task string, outcome domain.Outcome) {
	if m == nil {
		return
	}
	m.RunnerOutcomes.WithLabelValues(task, outcome.String()).Inc()
}

// ObserveTaskDuration учитывает длительность тела задачи.
func (m *Metrics) ObserveTaskDuration(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.TaskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// SetCursorLag выставляет отставание курсора.
func (m *Metrics) SetCursorLag(tld string, cursorType domain.CursorType, lag time.Duration) {
	if m == nil {
		return
	}
	m.CursorLag.WithLabelValues(tld, cursorType.String()).Set(lag.Seconds())
}

// IncLockRetry учитывает повтор операции с блокировкой.
func (m *Metrics) IncLockRetry() {
	if m == nil {
		return
	}
	m.LockRetries.Inc()
}

// IncTriggerPublished учитывает опубликованный триггер.
func (m *Metrics) IncTriggerPublished(task string) {
	if m == nil {
		return
	}
	m.TriggersPublished.WithLabelValues(task).Inc()
}

// IncHTTPRequest учитывает HTTP запрос.
func (m *Metrics) IncHTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}
