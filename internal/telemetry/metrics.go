package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Metrics — Prometheus метрики очереди.
//
// Все методы безопасны для nil-получателя: компоненты без метрик
// просто передают nil.
type Metrics struct {
	executions   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	requeues     *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	dispositions *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики.
// reg == nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_executions_total",
			Help:      "Number of job executions by outcome.",
		}, []string{"job", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_execution_duration_seconds",
			Help:      "Job processor execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),

		requeues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_requeues_total",
			Help:      "Number of delayed requeues by target queue.",
		}, []string{"job", "queue"}),

		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_reconnects_total",
			Help:      "Number of transport reconnect attempts.",
		}, []string{"transport"}),

		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deduplicated_total",
			Help:      "Number of messages skipped as duplicates.",
		}, []string{"queue"}),

		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_dispositions_total",
			Help:      "Number of terminal message dispositions.",
		}, []string{"transport", "disposition"}),
	}

	reg.MustRegister(m.executions, m.duration, m.requeues, m.reconnects, m.duplicates, m.dispositions)

	return m
}

// ObserveExecution записывает время и результат выполнения job.
func (m *Metrics) ObserveExecution(job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// IncRequeue учитывает отложенный повтор.
func (m *Metrics) IncRequeue(job, queue string) {
	if m == nil {
		return
	}
	m.requeues.WithLabelValues(job, queue).Inc()
}

// IncReconnect учитывает попытку переподключения.
func (m *Metrics) IncReconnect(transport string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(transport).Inc()
}

// IncDuplicate учитывает пропущенный дубликат.
func (m *Metrics) IncDuplicate(queue string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(queue).Inc()
}

// IncDisposition учитывает итоговое решение по сообщению (ack/requeue/drop).
func (m *Metrics) IncDisposition(transport, disposition string) {
	if m == nil {
		return
	}
	m.dispositions.WithLabelValues(transport, disposition).Inc()
}
