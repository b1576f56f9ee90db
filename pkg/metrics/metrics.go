package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "pairbridge"

	metricLabelRoute  = "route"
	metricLabelStatus = "status"
)

// Metrics is the structure that holds all prometheus metrics
var (
	// ServiceRequestCounter count the number of requests for each route
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each route",
		metricLabelRoute, metricLabelStatus,
	)
	// ServiceRequestDuration observe the duration of requests for each route
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to decode a request, execute the relay operation and encode its response",
		metricLabelRoute, metricLabelStatus,
	)
	// PushDeliveryCounter count push delivery outcomes
	PushDeliveryCounter = newCounterVec(
		"push_delivery_count",
		"Number of push deliveries by outcome",
		metricLabelStatus,
	)
	// PushRetryCounter count the number of server-directed push retries
	PushRetryCounter = newCounterVec(
		"push_retry_count",
		"Number of Retry-After directed delivery retries",
	)
	// StoreResolveFailedCounter count failed resolutions of the writable store member
	StoreResolveFailedCounter = newCounterVec(
		"store_resolve_failed_count",
		"Number of failures to resolve a writable store member",
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
