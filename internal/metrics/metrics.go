// Package metrics exposes fleetsim's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level collectors. They are registered via Register.
var (
	regOK atomic.Bool

	storeRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsim",
			Subsystem: "store",
			Name:      "repairs_total",
			Help:      "Number of times the working document was reinitialized from the seed.",
		}, []string{"driver"},
	)
	storeWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsim",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Number of full-document atomic writes.",
		}, []string{"driver"},
	)
	simulatorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsim",
			Subsystem: "simulator",
			Name:      "ticks_total",
			Help:      "Number of simulator ticks by result.",
		}, []string{"result"},
	)
	simulatorTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsim",
			Subsystem: "simulator",
			Name:      "transitions_total",
			Help:      "Number of simulator state transitions by target state.",
		}, []string{"to"},
	)
	simulatorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleetsim",
			Subsystem: "simulator",
			Name:      "running",
			Help:      "1 while the background simulator is running, 0 otherwise.",
		},
	)
	serviceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsim",
			Subsystem: "http",
			Name:      "services_requests_total",
			Help:      "Number of /services requests by status code.",
		}, []string{"code"},
	)
)

// Register registers all collectors with r.
// It is safe to call multiple times; calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{storeRepairs, storeWrites, simulatorTicks, simulatorTransitions, simulatorRunning, serviceRequests}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded.

func IncRepair(driver string) {
	if regOK.Load() {
		storeRepairs.WithLabelValues(driver).Inc()
	}
}

func IncWrite(driver string) {
	if regOK.Load() {
		storeWrites.WithLabelValues(driver).Inc()
	}
}

func IncTick(ok bool) {
	if !regOK.Load() {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	simulatorTicks.WithLabelValues(result).Inc()
}

func RecordTransition(to string, running bool) {
	if !regOK.Load() {
		return
	}
	simulatorTransitions.WithLabelValues(to).Inc()
	if running {
		simulatorRunning.Set(1)
	} else {
		simulatorRunning.Set(0)
	}
}

func IncServicesRequest(code string) {
	if regOK.Load() {
		serviceRequests.WithLabelValues(code).Inc()
	}
}
