// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Package-level counters let services record outcomes without holding a
// Server. They are registered by NewMetrics.
var (
	authOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_auth_operations_total",
			Help: "Total number of account operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	storeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_store_requests_total",
			Help: "Total number of document store requests by method and status",
		},
		[]string{"method", "status"},
	)
)

// RecordAuthOperation counts a register, login or upgrade outcome.
func RecordAuthOperation(operation, outcome string) {
	authOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordStoreRequest counts one document store round trip. status is the
// HTTP status code or "error" for transport failures.
func RecordStoreRequest(method, status string) {
	storeRequests.WithLabelValues(method, status).Inc()
}

// Metrics contains the HTTP metrics of the accounts API.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the accounts metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_http_requests_total",
				Help: "Total number of API requests by route and status",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounts_http_request_duration_seconds",
				Help:    "API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(authOperations)
	reg.MustRegister(storeRequests)

	return m
}
