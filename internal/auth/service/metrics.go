package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sessionauth"

// Metrics counts session lifecycle events. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SessionsIssued  *prometheus.CounterVec
	SessionsRotated prometheus.Counter
	SessionsRevoked *prometheus.CounterVec
	SessionsSwept   prometheus.Counter
	Logins          *prometheus.CounterVec
	RefreshFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_issued_total",
			Help:      "Refresh sessions issued, by kind.",
		}, []string{"kind"}),
		SessionsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_rotated_total",
			Help:      "Refresh sessions exchanged for a new one.",
		}),
		SessionsRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_revoked_total",
			Help:      "Refresh sessions revoked, by reason.",
		}, []string{"reason"}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_swept_total",
			Help:      "Expired refresh sessions deleted by housekeeping.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Login attempts, by outcome.",
		}, []string{"outcome"}),
		RefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_failures_total",
			Help:      "Rejected refresh attempts, by error code.",
		}, []string{"code"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsIssued,
			m.SessionsRotated,
			m.SessionsRevoked,
			m.SessionsSwept,
			m.Logins,
			m.RefreshFailures,
		)
	}
	return m
}

// Revocation reasons.
const (
	revokeLogout    = "logout"
	revokeLogoutAll = "logout_all"
	revokeRotation  = "rotation"
	revokeEviction  = "eviction"
)

func (m *Metrics) issued(kind string) {
	if m != nil {
		m.SessionsIssued.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) rotated() {
	if m != nil {
		m.SessionsRotated.Inc()
	}
}

func (m *Metrics) revoked(reason string, n int64) {
	if m != nil && n > 0 {
		m.SessionsRevoked.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) swept(n int64) {
	if m != nil && n > 0 {
		m.SessionsSwept.Add(float64(n))
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) refreshFailed(err error) {
	if m != nil && IsRefreshError(err) {
		m.RefreshFailures.WithLabelValues(refreshCode(err)).Inc()
	}
}

func refreshCode(err error) string {
	for _, e := range []error{ErrRefreshTokenRevoked, ErrRefreshTokenExpired, ErrRefreshTokenInvalid} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "unknown"
}
