package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões como métricas Prometheus.
//
// A chave do cliente NÃO vira label (cardinalidade); só o resultado.
type PrometheusStats struct {
	decisions  *prometheus.CounterVec
	retryAfter prometheus.Histogram
	buckets    prometheus.GaugeFunc
}

// NewPrometheusStats registra as métricas em reg (DefaultRegisterer se nil).
// store é opcional; se informado, publica o número de buckets vivos.
func NewPrometheusStats(reg prometheus.Registerer, store *Store) (*PrometheusStats, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusStats{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "admission",
				Name:      "decisions_total",
				Help:      "Admission decisions by result.",
			},
			[]string{"result"}, // allowed | denied
		),
		retryAfter: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "admission",
				Name:      "retry_after_seconds",
				Help:      "Retry-after estimate handed to rejected callers.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
	}

	collectors := []prometheus.Collector{p.decisions, p.retryAfter}
	if store != nil {
		p.buckets = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "admission",
				Name:      "buckets",
				Help:      "Live per-client buckets held in memory.",
			},
			func() float64 { return float64(store.Len()) },
		)
		collectors = append(collectors, p.buckets)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	if p == nil {
		return nil
	}
	if ev.Allowed {
		p.decisions.WithLabelValues("allowed").Inc()
		return nil
	}
	p.decisions.WithLabelValues("denied").Inc()
	p.retryAfter.Observe(ev.RetryAfter.Seconds())
	return nil
}
