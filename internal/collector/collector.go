// Package collector implements the builtin metric collectors that run before
// any vendor-defined commands. Each collector gathers a related group of host
// metrics; a failing collector never stops the run.
package collector

import (
	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// Collector produces a batch of builtin metrics.
type Collector interface {
	// Name identifies the collector in log output.
	Name() string
	// Collect gathers the metrics. Partial results with a nil error are
	// allowed; an error drops the whole batch.
	Collect() ([]metrics.Metric, error)
}

// Runner executes a fixed set of collectors in order.
type Runner struct {
	collectors []Collector
}

// NewRunner creates a runner over the given collectors.
func NewRunner(collectors ...Collector) *Runner {
	return &Runner{collectors: collectors}
}

// CollectAll runs every collector and concatenates the results. A collector
// error is logged and its batch skipped; the remaining collectors still run.
func (r *Runner) CollectAll() []metrics.Metric {
	var collected []metrics.Metric
	for _, c := range r.collectors {
		batch, err := c.Collect()
		if err != nil {
			log.Warn("builtin collector failed", "collector", c.Name(), "error", err)
			continue
		}
		log.Debug("builtin collector finished", "collector", c.Name(), "metrics", len(batch))
		collected = append(collected, batch...)
	}
	return collected
}

// numericMetric builds a builtin numeric metric record.
func numericMetric(name string, value any) metrics.Metric {
	return metrics.Metric{
		metrics.FieldName:  name,
		metrics.FieldValue: value,
		metrics.FieldType:  metrics.TypeNumeric,
	}
}

// booleanMetric builds a builtin boolean metric record.
func booleanMetric(name string, value bool) metrics.Metric {
	return metrics.Metric{
		metrics.FieldName:  name,
		metrics.FieldValue: value,
		metrics.FieldType:  metrics.TypeBoolean,
	}
}
