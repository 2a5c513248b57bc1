// Package metric exports engine diagnostics as prometheus metrics.
// Counters are read from the engine when metrics are collected, nothing
// is measured on the real-time thread.
package metric

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"pipelined.dev/engine"
)

const namespace = "rtengine"

// Source provides diagnostics of a single engine.
type Source interface {
	ID() string
	Diagnostics() engine.Diagnostics
}

// Collector implements prometheus.Collector.
type Collector struct {
	source Source

	callbacks       *prometheus.Desc
	overruns        *prometheus.Desc
	eventsDiscarded *prometheus.Desc
	eventsDropped   *prometheus.Desc
	callback        *prometheus.Desc
	nodeProcessed   *prometheus.Desc
	nodeParams      *prometheus.Desc
	nodeDropped     *prometheus.Desc
	nodeDuration    *prometheus.Desc
}

// NewCollector returns collector of engine metrics. Every metric carries
// the engine id label.
func NewCollector(s Source) *Collector {
	labels := prometheus.Labels{"engine": s.ID()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &Collector{
		source:          s,
		callbacks:       desc("callbacks_total", "Number of completed device callbacks."),
		overruns:        desc("overruns_total", "Number of callbacks with unexpected number of frames."),
		eventsDiscarded: desc("events_discarded_total", "Number of events that did not fit into a block."),
		eventsDropped:   desc("events_dropped_total", "Number of events rejected by the full event channel."),
		callback:        desc("callback_duration_seconds", "Duration of device callback.", "kind"),
		nodeProcessed:   desc("node_processed_total", "Number of blocks processed by node.", "node", "name"),
		nodeParams:      desc("node_params_applied_total", "Number of parameter changes applied by node.", "node", "name"),
		nodeDropped:     desc("node_params_dropped_total", "Number of parameter changes dropped by node.", "node", "name"),
		nodeDuration:    desc("node_duration_seconds", "Duration of node processing.", "node", "name", "kind"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callbacks
	ch <- c.overruns
	ch <- c.eventsDiscarded
	ch <- c.eventsDropped
	ch <- c.callback
	ch <- c.nodeProcessed
	ch <- c.nodeParams
	ch <- c.nodeDropped
	ch <- c.nodeDuration
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	d := c.source.Diagnostics()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	counter(c.callbacks, d.Sequence)
	counter(c.overruns, d.Overruns)
	counter(c.eventsDiscarded, d.EventsDiscarded)
	counter(c.eventsDropped, d.EventsDropped)
	gauge(c.callback, d.LastCallback.Seconds(), "last")
	gauge(c.callback, d.PeakCallback.Seconds(), "peak")

	for _, n := range d.Nodes {
		id := fmt.Sprint(n.ID)
		counter(c.nodeProcessed, n.Processed, id, n.Name)
		counter(c.nodeParams, n.ParamsApplied, id, n.Name)
		counter(c.nodeDropped, n.ParamsDropped, id, n.Name)
		gauge(c.nodeDuration, n.LastDuration.Seconds(), id, n.Name, "last")
		gauge(c.nodeDuration, n.MaxDuration.Seconds(), id, n.Name, "max")
	}
}
