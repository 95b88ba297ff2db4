package pipeline

import (
	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// Aggregator merges builtin and vendor metrics into one de-duplicated,
// ordered collection. It is a pure in-memory merge: no I/O, no retries.
// Malformed records are dropped individually and never abort the merge.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate merges the two metric sets keyed by name. Builtin metrics go in
// first; vendor metrics follow and overwrite builtin entries on a name
// collision. The overwrite happens in place, so a shadowed builtin keeps its
// original slot in the output order.
func (a *Aggregator) Aggregate(builtin, vendor []metrics.Metric) []metrics.Metric {
	merged := make(map[string]metrics.Metric, len(builtin)+len(vendor))
	var order []string

	for _, m := range builtin {
		if !validShape(m, "builtin") {
			continue
		}
		name := m.Name()
		if _, exists := merged[name]; exists {
			// A duplicate inside the builtin set itself is unexpected.
			log.Warn("duplicate builtin metric name, keeping the later value", "name", name)
		} else {
			order = append(order, name)
		}
		merged[name] = m
	}

	for _, m := range vendor {
		if !validShape(m, "vendor") {
			continue
		}
		name := m.Name()
		if _, exists := merged[name]; exists {
			// Vendor data wins, but a shadowed builtin name is worth
			// surfacing to the operator.
			log.Warn("vendor metric overwrites an existing metric", "name", name)
		} else {
			order = append(order, name)
		}
		merged[name] = m
	}

	result := make([]metrics.Metric, 0, len(order))
	for _, name := range order {
		result = append(result, merged[name])
	}

	log.Info("metrics aggregated",
		"builtin", len(builtin),
		"vendor", len(vendor),
		"final", len(result))
	return result
}

// validShape applies the minimal shape check: non-empty string name,
// non-empty string type, and a value key that is present (nil is fine,
// missing is not).
func validShape(m metrics.Metric, source string) bool {
	if m == nil {
		log.Warn("metric dropped, record is nil", "source", source)
		return false
	}
	if m.Name() == "" {
		log.Warn("metric dropped, missing or invalid 'name'", "source", source, "metric", m)
		return false
	}
	if m.Type() == "" {
		log.Warn("metric dropped, missing or invalid 'type'", "source", source, "name", m.Name())
		return false
	}
	if !m.HasValue() {
		log.Warn("metric dropped, missing 'value' key", "source", source, "name", m.Name())
		return false
	}
	return true
}
