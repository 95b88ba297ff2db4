package metrics

// Metric is a single metric record as it travels through the pipeline and
// ends up in the wire payload. It is a dynamic map rather than a struct
// because builtin and vendor metrics share the shape but not the field set:
// builtin records carry name/value/type (plus optional description and
// is_critical), vendor records add provenance (vendor, group_name). Keeping
// the map form also lets the aggregator and the payload validator check for
// genuinely missing keys instead of zero values.
type Metric map[string]any

// Field names used across the pipeline.
const (
	FieldName        = "name"
	FieldValue       = "value"
	FieldType        = "type"
	FieldVendor      = "vendor"
	FieldGroupName   = "group_name"
	FieldDescription = "description"
	FieldIsCritical  = "is_critical"
)

// Metric value types accepted in the wire payload.
const (
	TypeNumeric = "numeric"
	TypeBoolean = "boolean"
	TypeString  = "string"
)

// Name returns the metric name, or "" when the field is missing or not a
// string.
func (m Metric) Name() string {
	s, _ := m[FieldName].(string)
	return s
}

// Type returns the declared metric type, or "" when the field is missing or
// not a string.
func (m Metric) Type() string {
	s, _ := m[FieldType].(string)
	return s
}

// HasValue reports whether the value key is present at all. A nil value
// still counts as present; only a missing key returns false.
func (m Metric) HasValue() bool {
	_, ok := m[FieldValue]
	return ok
}
