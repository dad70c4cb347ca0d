package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/indieinfra/mediadrop/workflow"
)

const namespace = "mediadrop"

// Metrics exports workflow and endpoint telemetry to Prometheus.
type Metrics struct {
	transitions    *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	activeSessions prometheus.Gauge
	credentials    *prometheus.CounterVec
}

// New registers the collectors with reg, reusing collectors that are already registered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Upload workflow state changes by source state, target state and event.",
		}, []string{"from", "to", "event"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Upload attempts that ended in success or failure.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_sessions",
			Help:      "Upload sessions currently held in memory.",
		}),
		credentials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_requests_total",
			Help:      "Credential endpoint requests by response status.",
		}, []string{"status"}),
	}

	var err error
	if m.transitions, err = register(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.outcomes, err = register(reg, m.outcomes); err != nil {
		return nil, err
	}
	if m.activeSessions, err = register(reg, m.activeSessions); err != nil {
		return nil, err
	}
	if m.credentials, err = register(reg, m.credentials); err != nil {
		return nil, err
	}

	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ObserveChange records one handled workflow event.
func (m *Metrics) ObserveChange(c workflow.Change) {
	if m == nil || c.From == c.To.State {
		return
	}

	m.transitions.WithLabelValues(c.From.String(), c.To.State.String(), c.Event.String()).Inc()

	switch c.To.State {
	case workflow.Success:
		m.outcomes.WithLabelValues("success").Inc()
	case workflow.Failure:
		m.outcomes.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// CredentialRequest counts one credential endpoint response.
func (m *Metrics) CredentialRequest(status int) {
	if m != nil {
		m.credentials.WithLabelValues(fmt.Sprint(status)).Inc()
	}
}
