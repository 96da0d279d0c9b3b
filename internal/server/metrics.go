package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subfeed_http_requests_total",
	Help: "HTTP requests by method, route and status",
}, []string{"method", "route", "status"})
