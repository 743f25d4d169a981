package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tailorcv",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "模型调用总数（按操作与结果区分）。",
		},
		[]string{"operation", "outcome"},
	)

	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tailorcv",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "模型调用耗时分布（秒），包含重试等待。",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"operation"},
	)
)

// ObserveLLMCall 记录一次模型调用的结果与耗时。
func ObserveLLMCall(operation string, ok bool, elapsed time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	llmCallTotal.WithLabelValues(operation, outcome).Inc()
	llmCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
