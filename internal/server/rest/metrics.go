package rest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

const outcomeSuccess = "success"

// Metrics counts request outcomes by error kind ("success" when none).
type Metrics struct {
	registrations *prometheus.CounterVec
	verifications *prometheus.CounterVec
	csrfTokens    prometheus.Counter
	uploadURLs    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvesthub_registrations_total",
			Help: "Count of registration attempts by outcome",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvesthub_email_verifications_total",
			Help: "Count of email verification attempts by outcome",
		}, []string{"outcome"}),
		csrfTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvesthub_csrf_tokens_issued_total",
			Help: "Count of CSRF tokens issued",
		}),
		uploadURLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvesthub_document_upload_urls_total",
			Help: "Count of business document upload URL requests by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.registrations, m.verifications, m.csrfTokens, m.uploadURLs)
	return m
}

func outcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return string(common.KindOf(err))
}
