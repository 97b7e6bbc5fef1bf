// Package metrics provides internal Prometheus metrics for the workflow
// engine and the event channel. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and updates all engine metrics. A nil *Collector is
// valid: every method is a no-op, so wiring metrics stays optional in tests.
type Collector struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	stepsTotal        *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	stepRetriesTotal  *prometheus.CounterVec
	tokensUsedTotal   *prometheus.CounterVec
	costUSDTotal      *prometheus.CounterVec
	roomSubscribers   *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector creates and registers the engine metrics under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions by topology and terminal status",
		},
		[]string{"workflow_type", "status"},
	)

	c.executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"workflow_type"},
	)

	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of agent invocations by terminal status",
		},
		[]string{"status"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Agent invocation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{},
	)

	c.stepRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_step_retries_total",
			Help:      "Total number of step retry attempts",
		},
		[]string{},
	)

	c.tokensUsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tokens_used_total",
			Help:      "Total number of tokens consumed by agent invocations",
		},
		[]string{},
	)

	c.costUSDTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_cost_usd_total",
			Help:      "Accumulated token cost in US dollars",
		},
		[]string{},
	)

	c.roomSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_room_subscribers",
			Help:      "Current number of subscribers per execution room",
		},
		[]string{"execution_id"},
	)

	return c
}

// RecordExecution records one terminal workflow execution.
func (c *Collector) RecordExecution(workflowType, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(workflowType, status).Inc()
	c.executionDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

// RecordStep records one terminal agent invocation.
func (c *Collector) RecordStep(status string, duration time.Duration, tokensUsed int64) {
	if c == nil {
		return
	}
	c.stepsTotal.WithLabelValues(status).Inc()
	c.stepDuration.WithLabelValues().Observe(duration.Seconds())
	if tokensUsed > 0 {
		c.tokensUsedTotal.WithLabelValues().Add(float64(tokensUsed))
	}
}

// RecordRetry counts one retry attempt.
func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.stepRetriesTotal.WithLabelValues().Inc()
}

// RecordCost accumulates token cost.
func (c *Collector) RecordCost(usd float64) {
	if c == nil || usd <= 0 {
		return
	}
	c.costUSDTotal.WithLabelValues().Add(usd)
}

// SetRoomSubscribers tracks the size of one execution room.
func (c *Collector) SetRoomSubscribers(executionID string, n int) {
	if c == nil {
		return
	}
	c.roomSubscribers.WithLabelValues(executionID).Set(float64(n))
}

// DeleteRoom drops the gauge series of an emptied room.
func (c *Collector) DeleteRoom(executionID string) {
	if c == nil {
		return
	}
	c.roomSubscribers.DeleteLabelValues(executionID)
}
