package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	challenges    *prometheus.CounterVec
	verifications *prometheus.CounterVec
	decodes       *prometheus.CounterVec
}

// newMetrics registers the service's metrics with reg. A nil registerer
// yields working but unregistered metrics.
func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		challenges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "challenges_total",
			Help:      "Challenges requested, by outcome.",
		}, []string{"outcome"}),
		verifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "verifications_total",
			Help:      "Signed challenge verifications, by outcome.",
		}, []string{"outcome"}),
		decodes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "credential_decodes_total",
			Help:      "Credential decodes, by outcome.",
		}, []string{"outcome"}),
	}
}

func outcome(kind string) string {
	if kind == "" {
		return "success"
	}
	return kind
}
