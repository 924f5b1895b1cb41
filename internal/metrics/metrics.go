package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dangbai_session"

var (
	RefreshExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "refresh_exchanges_total", Help: "Refresh token exchanges by outcome."},
		[]string{"outcome"},
	)
	RefreshJoined = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "refresh_joined_total", Help: "Refresh requests served by an exchange started by another caller."},
	)
	RequestRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "request_retries_total", Help: "Requests re-issued after a token refresh, by outcome."},
		[]string{"outcome"},
	)
	RequestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "request_failures_total", Help: "Failed authenticated requests by error category."},
		[]string{"category"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Requests served by the auth stub."},
		[]string{"method", "route", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RefreshExchanges)
	reg.MustRegister(RefreshJoined)
	reg.MustRegister(RequestRetries)
	reg.MustRegister(RequestFailures)
	reg.MustRegister(HTTPRequests)
}
