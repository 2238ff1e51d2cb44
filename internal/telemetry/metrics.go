package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/orgconsole"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Backend API metrics
	APIRequestsTotal   metric.Int64Counter
	APIErrorsTotal     metric.Int64Counter
	APIRequestDuration metric.Float64Histogram
	UnauthorizedTotal  metric.Int64Counter

	// Session metrics
	SessionLoginsTotal  metric.Int64Counter
	SessionLogoutsTotal metric.Int64Counter

	// Console metrics
	DuplicateRemovalsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.APIRequestsTotal, _ = meter.Int64Counter(
		"orgconsole.api.requests.total",
		metric.WithDescription("Total number of backend API requests"),
		metric.WithUnit("{request}"),
	)

	m.APIErrorsTotal, _ = meter.Int64Counter(
		"orgconsole.api.errors.total",
		metric.WithDescription("Total number of backend API requests that failed or returned non-2xx"),
		metric.WithUnit("{error}"),
	)

	m.APIRequestDuration, _ = meter.Float64Histogram(
		"orgconsole.api.request.duration",
		metric.WithDescription("Duration of backend API requests"),
		metric.WithUnit("ms"),
	)

	m.UnauthorizedTotal, _ = meter.Int64Counter(
		"orgconsole.api.unauthorized.total",
		metric.WithDescription("Total number of 401 responses that cleared the session"),
		metric.WithUnit("{response}"),
	)

	m.SessionLoginsTotal, _ = meter.Int64Counter(
		"orgconsole.session.logins.total",
		metric.WithDescription("Total number of login and register attempts by result"),
		metric.WithUnit("{attempt}"),
	)

	m.SessionLogoutsTotal, _ = meter.Int64Counter(
		"orgconsole.session.logouts.total",
		metric.WithDescription("Total number of sessions cleared by reason"),
		metric.WithUnit("{session}"),
	)

	m.DuplicateRemovalsTotal, _ = meter.Int64Counter(
		"orgconsole.console.duplicate_removals.total",
		metric.WithDescription("Member removals rejected because one was already in flight"),
		metric.WithUnit("{request}"),
	)

	return m
}
