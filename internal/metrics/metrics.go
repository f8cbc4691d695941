// Package metrics exports classification outcomes to prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KirkDiggler/errtransform/internal/transform"
)

// Observer counts classification outcomes
type Observer struct {
	outcomes *prometheus.CounterVec
}

var _ transform.Observer = (*Observer)(nil)

// NewObserver registers the outcome counter with reg. A nil reg registers
// with the default registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Observer{
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "errtransform_outcomes_total",
				Help: "Total number of classified outcomes",
			},
			[]string{"group", "strategy", "outcome"},
		),
	}
}

// Observe implements transform.Observer
func (o *Observer) Observe(group transform.Group, strategy transform.Strategy, outcome transform.Outcome) {
	o.outcomes.WithLabelValues(string(group), strategy.String(), string(outcome)).Inc()
}
