package pipeline

import (
	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// DefaultTimestampField is the metadata key under which the collection
// timestamp is stored unless a deployment renames it.
const DefaultTimestampField = "timestamp"

// TransformerConfig identifies the payload generator and names the metadata
// timestamp key. The key is configurable so a deployment can rename the
// field (e.g. to "collection_time") without a code change.
type TransformerConfig struct {
	Generator      string
	Version        string
	SchemaVersion  string
	TimestampField string
}

// Transformer builds the canonical wire payload from aggregated metrics and
// machine identity. Pure construction: no validation, no I/O.
type Transformer struct {
	config TransformerConfig
}

// NewTransformer creates a transformer. An empty TimestampField falls back
// to DefaultTimestampField.
func NewTransformer(config TransformerConfig) *Transformer {
	if config.TimestampField == "" {
		config.TimestampField = DefaultTimestampField
	}
	return &Transformer{config: config}
}

// BuildPayload wraps the metrics plus machine identity and timestamp into
// the payload structure sent to the collector endpoint.
func (t *Transformer) BuildPayload(ms []metrics.Metric, hostname, osName, fingerprint, timestampISO string) map[string]any {
	metadata := map[string]any{
		"generator":      t.config.Generator,
		"version":        t.config.Version,
		"schema_version": t.config.SchemaVersion,
	}
	metadata[t.config.TimestampField] = timestampISO

	payload := map[string]any{
		"metadata": metadata,
		"machine": map[string]any{
			"hostname":    hostname,
			"os":          osName,
			"fingerprint": fingerprint,
		},
		"metrics": ms,
	}

	log.Info("payload built", "metrics", len(ms), "hostname", hostname, "os", osName)
	return payload
}
