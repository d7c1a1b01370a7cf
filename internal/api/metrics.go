package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairfund_http_requests_total",
		Help: "HTTP requests served, by method, path and status code",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fairfund_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairfund_actions_total",
		Help: "Write-action pipelines run, by action kind and terminal status",
	}, []string{"action", "status"})
)
