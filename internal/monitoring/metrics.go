// Package monitoring provides metrics collection for database statements.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// StatementMetrics represents the metrics recorded for a single statement.
type StatementMetrics struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed"`
}

// Metrics records statement counts and latencies as Prometheus collectors and
// keeps an in-process log for summaries. A nil *Metrics records nothing.
type Metrics struct {
	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	mu      sync.RWMutex
	history []StatementMetrics
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idaframe",
			Name:      "statements_total",
			Help:      "Number of SQL statements submitted, by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "idaframe",
			Name:      "statement_duration_seconds",
			Help:      "Wall time of SQL statements, by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.statements, m.duration)
	}
	return m
}

// Record executes fn and records its duration and outcome under op.
func (m *Metrics) Record(op string, fn func() error) error {
	if m == nil {
		return fn()
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	m.statements.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())

	m.mu.Lock()
	m.history = append(m.history, StatementMetrics{Operation: op, Duration: elapsed, Failed: err != nil})
	m.mu.Unlock()

	return err
}

// History returns a copy of all recorded statements.
func (m *Metrics) History() []StatementMetrics {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]StatementMetrics, len(m.history))
	copy(result, m.history)
	return result
}

// Summary returns aggregate statistics over the recorded statements.
func (m *Metrics) Summary() Summary {
	history := m.History()
	if len(history) == 0 {
		return Summary{}
	}

	s := Summary{OperationCounts: make(map[string]int)}
	for _, h := range history {
		s.TotalStatements++
		s.TotalDuration += h.Duration
		s.OperationCounts[h.Operation]++
		if h.Failed {
			s.Failures++
		}
	}
	s.AverageDuration = s.TotalDuration / time.Duration(s.TotalStatements)
	return s
}

// Summary provides aggregate statistics for recorded statements.
type Summary struct {
	TotalStatements int            `json:"total_statements"`
	Failures        int            `json:"failures"`
	TotalDuration   time.Duration  `json:"total_duration"`
	AverageDuration time.Duration  `json:"average_duration"`
	OperationCounts map[string]int `json:"operation_counts"`
}
