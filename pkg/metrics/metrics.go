// Package metrics exposes simulation counters to Prometheus.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without checking for it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecusim"

// Expired reference sides.
const (
	SideECU    = "ecu"
	SideSensor = "sensor"
)

// Collector holds the simulation metrics.
type Collector struct {
	sensorsLive   *prometheus.GaugeVec
	ecusLive      prometheus.Gauge
	broadcasts    *prometheus.CounterVec
	tableUpdates  *prometheus.CounterVec
	expired       *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sensorsLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensors_live",
			Help:      "Number of live sensors per category.",
		}, []string{"category"}),
		ecusLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ecus_live",
			Help:      "Number of live ECUs across all kinds.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Sensor broadcasts by sensor category.",
		}, []string{"category"}),
		tableUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_updates_total",
			Help:      "ECU table writes by sensor category.",
		}, []string{"category"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_references_total",
			Help:      "References that no longer resolved to a live instance.",
		}, []string{"side"}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_total",
			Help:      "Subscribe and unsubscribe outcomes.",
		}, []string{"op", "result"}),
	}

	for _, col := range []prometheus.Collector{
		c.sensorsLive, c.ecusLive, c.broadcasts, c.tableUpdates, c.expired, c.subscriptions,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetSensorsLive records the live sensor count of a category.
func (c *Collector) SetSensorsLive(category string, n int) {
	if c == nil {
		return
	}
	c.sensorsLive.WithLabelValues(category).Set(float64(n))
}

// SetECUsLive records the live ECU count.
func (c *Collector) SetECUsLive(n int) {
	if c == nil {
		return
	}
	c.ecusLive.Set(float64(n))
}

// Broadcast counts one sensor broadcast that wrote to delivered ECUs.
func (c *Collector) Broadcast(category string, delivered int) {
	if c == nil {
		return
	}
	c.broadcasts.WithLabelValues(category).Inc()
	c.tableUpdates.WithLabelValues(category).Add(float64(delivered))
}

// Expired counts references that failed to resolve.
func (c *Collector) Expired(side string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.expired.WithLabelValues(side).Add(float64(n))
}

// Subscription counts a subscribe/unsubscribe outcome.
func (c *Collector) Subscription(op, result string) {
	if c == nil {
		return
	}
	c.subscriptions.WithLabelValues(op, result).Inc()
}

// Handler serves the metrics of a registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
