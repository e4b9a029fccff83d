package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts auth flow outcomes. Each instance owns its registry so
// tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	LoginsStarted     prometheus.Counter
	LoginsCompleted   prometheus.Counter
	Logouts           prometheus.Counter
	TokenRefreshes    *prometheus.CounterVec
	SessionStatus     *prometheus.CounterVec
	ErrorPolicyPurges *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LoginsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bff_logins_started_total",
			Help: "Total number of authorization redirects issued",
		}),
		LoginsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bff_logins_completed_total",
			Help: "Total number of callbacks that produced an authenticated session",
		}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bff_logouts_total",
			Help: "Total number of logouts redirected to the end-session endpoint",
		}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_token_refreshes_total",
			Help: "Total number of refresh token exchanges by result",
		}, []string{"result"}),
		SessionStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_session_status_total",
			Help: "Total number of session status answers by status",
		}, []string{"status"}),
		ErrorPolicyPurges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_error_policy_total",
			Help: "Total number of sessions purged by the error policy",
		}, []string{"handler", "kind"}),
	}
	m.Registry.MustRegister(
		m.LoginsStarted,
		m.LoginsCompleted,
		m.Logouts,
		m.TokenRefreshes,
		m.SessionStatus,
		m.ErrorPolicyPurges,
	)
	return m
}

func (m *Metrics) IncrementLoginsStarted() {
	m.LoginsStarted.Inc()
}

func (m *Metrics) IncrementLoginsCompleted() {
	m.LoginsCompleted.Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.Logouts.Inc()
}

func (m *Metrics) ObserveRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSessionStatus(status string) {
	m.SessionStatus.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveErrorPolicy(handler, kind string) {
	m.ErrorPolicyPurges.WithLabelValues(handler, kind).Inc()
}
