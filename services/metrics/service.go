package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollcall"

// Service owns a private registry so tests can build as many instances as they like.
// A nil *Service discards every observation.
type Service struct {
	registry *prometheus.Registry
	issued   *prometheus.CounterVec
	checked  *prometheus.CounterVec
	webhooks *prometheus.CounterVec
}

func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "issued_total",
			Help:      "Verification code issue requests by outcome.",
		}, []string{"outcome"}),
		checked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "checked_total",
			Help:      "Verification code checks by outcome.",
		}, []string{"outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Billing webhook deliveries by outcome.",
		}, []string{"outcome"}),
	}

	s.registry.MustRegister(
		s.issued,
		s.checked,
		s.webhooks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return s
}

func (s *Service) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Service) VerificationIssued(outcome string) {
	if s != nil {
		s.issued.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) VerificationChecked(outcome string) {
	if s != nil {
		s.checked.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) BillingWebhook(outcome string) {
	if s != nil {
		s.webhooks.WithLabelValues(outcome).Inc()
	}
}
