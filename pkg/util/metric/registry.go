// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	prometheusgo "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Struct can be implemented by the types of members of a metric
// container so that the members get automatically registered.
type Struct interface {
	MetricStruct()
}

// Registry is a list of metrics. It provides a simple way of iterating over
// them and of exporting them.
type Registry struct {
	mu      sync.Mutex
	tracked map[string]Iterable
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{tracked: map[string]Iterable{}}
}

// AddMetric adds the passed-in metric to the registry. A metric with the
// same name replaces the previous one.
func (r *Registry) AddMetric(metric Iterable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[metric.GetName()] = metric
}

// AddMetricStruct examines all fields of metricStruct and adds all Iterable
// or metric.Struct objects to the registry.
func (r *Registry) AddMetricStruct(metricStruct interface{}) {
	v := reflect.ValueOf(metricStruct)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		vfield := v.Field(i)
		if vfield.Kind() == reflect.Ptr && vfield.IsNil() {
			continue
		}
		switch val := vfield.Interface().(type) {
		case Iterable:
			r.AddMetric(val)
		case Struct:
			r.AddMetricStruct(val)
		}
	}
}

// Get returns the metric registered under name, if any.
func (r *Registry) Get(name string) (Iterable, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.tracked[name]
	return m, ok
}

// Each calls the given closure for all metrics, in name order.
func (r *Registry) Each(f func(name string, val Iterable)) {
	r.mu.Lock()
	names := make([]string, 0, len(r.tracked))
	for name := range r.tracked {
		names = append(names, name)
	}
	sort.Strings(names)
	metrics := make([]Iterable, len(names))
	for i, name := range names {
		metrics[i] = r.tracked[name]
	}
	r.mu.Unlock()
	for i := range names {
		f(names[i], metrics[i])
	}
}

// PrintAsText writes every metric in the registry to w in the Prometheus
// text exposition format.
func (r *Registry) PrintAsText(w io.Writer) error {
	var err error
	r.Each(func(name string, m Iterable) {
		if err != nil {
			return
		}
		help := m.GetHelp()
		family := &prometheusgo.MetricFamily{
			Name:   &name,
			Help:   &help,
			Type:   m.GetType(),
			Metric: []*prometheusgo.Metric{m.ToPrometheusMetric()},
		}
		if _, perr := expfmt.MetricFamilyToText(w, family); perr != nil {
			err = errors.Wrapf(perr, "exporting %s", name)
		}
	})
	return err
}
