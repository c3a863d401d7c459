// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит зарегистрированные метрики.
type Metrics struct {
	operations  *prometheus.CounterVec
	blockHeight prometheus.Gauge
	gatherer    prometheus.Gatherer
}

// New создаёт метрики и регистрирует их в отдельном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffledger_operations_total",
			Help: "Operations handled, by operation and result.",
		}, []string{"operation", "result"}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staffledger_block_height",
			Help: "Last block height observed by the service.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.operations, m.blockHeight)

	return m
}

// ObserveOperation учитывает завершение операции. result: "ok" или вид ошибки.
func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// SetBlockHeight обновляет текущую высоту.
func (m *Metrics) SetBlockHeight(h int64) {
	if m == nil {
		return
	}
	m.blockHeight.Set(float64(h))
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
