// README: Prometheus collectors for HTTP traffic, quotes and trip transitions.
package obs

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// HTTPRequestDuration records handler latency in seconds by route and status.
	HTTPRequestDuration *prometheus.HistogramVec
	// QuotesTotal counts fare quotes issued by resolved country and vehicle type.
	QuotesTotal *prometheus.CounterVec
	// TripTransitionsTotal counts trip status transitions by target status.
	TripTransitionsTotal *prometheus.CounterVec
)

func init() {
	// Unregistered defaults so packages can record before MustRegister runs (tests).
	HTTPRequestDuration, QuotesTotal, TripTransitionsTotal = newCollectors("lumo")
}

func newCollectors(namespace string) (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Fare quotes issued by country and vehicle type.",
	}, []string{"country", "vehicle"})
	trips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trip_transitions_total",
		Help:      "Trip status transitions by target status.",
	}, []string{"to"})
	return httpDur, quotes, trips
}

// MustRegister initialises the collectors under namespace and registers them with reg
// (the default registerer when nil). Only the first call has any effect.
func MustRegister(namespace string, reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		HTTPRequestDuration, QuotesTotal, TripTransitionsTotal = newCollectors(namespace)
		HTTPRequestDuration = mustRegister(reg, HTTPRequestDuration)
		QuotesTotal = mustRegister(reg, QuotesTotal)
		TripTransitionsTotal = mustRegister(reg, TripTransitionsTotal)
	})
}

func mustRegister[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
