// Package metrics exports hub session activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zberg/go-nobo/pkg/nobo"
)

const namespace = "nobo"

// Collector turns hub notifications into metrics.
type Collector struct {
	messages       *prometheus.CounterVec
	hubErrors      prometheus.Counter
	dispatchErrors prometheus.Counter
	sessionReady   prometheus.Gauge
	temperature    *prometheus.GaugeVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages received from the hub and applied, by response code.",
		}, []string{"code"}),
		hubErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_errors_total",
			Help:      "E00 error responses reported by the hub.",
		}),
		dispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Messages dropped because they failed validation.",
		}),
		sessionReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_ready",
			Help:      "1 while a session has completed its full refresh, 0 otherwise.",
		}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_temperature_celsius",
			Help:      "Last temperature reported by a component.",
		}, []string{"serial"}),
	}

	reg.MustRegister(
		c.messages,
		c.hubErrors,
		c.dispatchErrors,
		c.sessionReady,
		c.temperature,
	)
	return c
}

// Observe records one notification.
func (c *Collector) Observe(n nobo.Notification) {
	switch n.Kind {
	case nobo.NotifyUpdate:
		c.messages.WithLabelValues(string(n.Message.Code())).Inc()
		switch m := n.Message.(type) {
		case nobo.TemperatureReading:
			c.observeTemperature(m)
		case nobo.AllInfoStart:
			// A full refresh resends every reading still valid.
			c.temperature.Reset()
		case nobo.ComponentRemoved:
			c.temperature.DeleteLabelValues(m.Serial)
		}
	case nobo.NotifyReady:
		c.sessionReady.Set(1)
	case nobo.NotifyError:
		var hubErr *nobo.HubError
		if errors.As(n.Err, &hubErr) {
			c.hubErrors.Inc()
		} else {
			c.dispatchErrors.Inc()
		}
	case nobo.NotifyClosed:
		c.sessionReady.Set(0)
	}
}

func (c *Collector) observeTemperature(r nobo.TemperatureReading) {
	v, err := strconv.ParseFloat(r.Temperature, 64)
	if err != nil {
		// N/A and anything unparseable clear the series.
		c.temperature.DeleteLabelValues(r.Serial)
		return
	}
	c.temperature.WithLabelValues(r.Serial).Set(v)
}

// Run observes notifications until ctx is done or the channel closes.
func (c *Collector) Run(ctx context.Context, notes <-chan nobo.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			c.Observe(n)
		}
	}
}
