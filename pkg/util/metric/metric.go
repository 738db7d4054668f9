// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package metric provides counters and gauges that are grouped in a Registry
// and exported in the Prometheus text exposition format.
package metric

import (
	"sync/atomic"

	prometheusgo "github.com/prometheus/client_model/go"
)

// Metadata holds metadata about a metric.
type Metadata struct {
	Name string
	Help string
	// Labels are attached to every exported sample of the metric.
	Labels map[string]string
}

// Iterable is the interface implemented by every metric.
type Iterable interface {
	// GetName returns the fully-qualified name of the metric.
	GetName() string
	// GetHelp returns the help text for the metric.
	GetHelp() string
	// GetType returns the prometheus type for the metric.
	GetType() *prometheusgo.MetricType
	// ToPrometheusMetric returns a filled-in prometheus metric of the right
	// type.
	ToPrometheusMetric() *prometheusgo.Metric
}

// GetName returns the metric name.
func (m *Metadata) GetName() string { return m.Name }

// GetHelp returns the metric help text.
func (m *Metadata) GetHelp() string { return m.Help }

func (m *Metadata) labelPairs() []*prometheusgo.LabelPair {
	if len(m.Labels) == 0 {
		return nil
	}
	pairs := make([]*prometheusgo.LabelPair, 0, len(m.Labels))
	for k, v := range m.Labels {
		name, value := k, v
		pairs = append(pairs, &prometheusgo.LabelPair{Name: &name, Value: &value})
	}
	return pairs
}

// Counter is a monotonically increasing count.
type Counter struct {
	Metadata
	count atomic.Int64
}

// NewCounter creates a counter.
func NewCounter(metadata Metadata) *Counter {
	return &Counter{Metadata: metadata}
}

// Inc atomically increments the counter by v.
func (c *Counter) Inc(v int64) {
	c.count.Add(v)
}

// Count returns the current value.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// GetType returns the prometheus type for this metric.
func (c *Counter) GetType() *prometheusgo.MetricType {
	return prometheusgo.MetricType_COUNTER.Enum()
}

// ToPrometheusMetric returns a filled-in prometheus metric of the right type.
func (c *Counter) ToPrometheusMetric() *prometheusgo.Metric {
	v := float64(c.Count())
	return &prometheusgo.Metric{
		Label:   c.labelPairs(),
		Counter: &prometheusgo.Counter{Value: &v},
	}
}

// Gauge atomically stores a single integer value.
type Gauge struct {
	Metadata
	value atomic.Int64
}

// NewGauge creates a gauge.
func NewGauge(metadata Metadata) *Gauge {
	return &Gauge{Metadata: metadata}
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge's value.
func (g *Gauge) Inc(i int64) {
	g.value.Add(i)
}

// Dec decrements the gauge's value.
func (g *Gauge) Dec(i int64) {
	g.value.Add(-i)
}

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// GetType returns the prometheus type for this metric.
func (g *Gauge) GetType() *prometheusgo.MetricType {
	return prometheusgo.MetricType_GAUGE.Enum()
}

// ToPrometheusMetric returns a filled-in prometheus metric of the right type.
func (g *Gauge) ToPrometheusMetric() *prometheusgo.Metric {
	v := float64(g.Value())
	return &prometheusgo.Metric{
		Label: g.labelPairs(),
		Gauge: &prometheusgo.Gauge{Value: &v},
	}
}
