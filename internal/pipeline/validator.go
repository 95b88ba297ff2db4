package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// payloadNamePattern is the metric name pattern enforced on the final
// payload. Broader than the vendor-definition pattern: builtin names may
// embed bracketed mount points ("disk[/var].usage_percent") and slashes.
var payloadNamePattern = regexp.MustCompile(`^[A-Za-z0-9._\-\[\]/]+$`)

var allowedTypes = map[string]struct{}{
	metrics.TypeNumeric: {},
	metrics.TypeBoolean: {},
	metrics.TypeString:  {},
}

// ValidationError is one payload violation, located by a JSONPath-like
// string such as "$.metrics[3].value".
type ValidationError struct {
	Path    string
	Message string
}

// ValidatePayload checks the payload's structural and type contract before
// transmission. Unlike vendor-definition validation it is exhaustive: every
// violation is collected so operators can fix all issues at once. The only
// short-circuit is a non-mapping root, where nothing else can be checked.
func ValidatePayload(payload any) (bool, []ValidationError) {
	var errs []ValidationError

	root, ok := asMapping(payload)
	if !ok {
		errs = append(errs, ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("payload root must be a mapping, got %T", payload),
		})
		return false, errs
	}

	for _, key := range []string{"metadata", "machine", "metrics"} {
		if _, ok := root[key]; !ok {
			errs = append(errs, ValidationError{
				Path:    "$",
				Message: fmt.Sprintf("missing required root key %q", key),
			})
		}
	}

	entries, ok := asSequence(root["metrics"])
	if !ok {
		errs = append(errs, ValidationError{
			Path:    "$.metrics",
			Message: fmt.Sprintf("'metrics' must be a sequence, got %T", root["metrics"]),
		})
		// Treated as empty for the rest of validation.
		entries = nil
	}

	for i, entryRaw := range entries {
		errs = append(errs, validatePayloadMetric(entryRaw, i)...)
	}

	if len(errs) == 0 {
		log.Info("payload validation passed")
		return true, nil
	}

	log.Warn("payload validation failed", "errors", len(errs))
	for _, e := range errs {
		log.Debug("payload validation error", "path", e.Path, "message", e.Message)
	}
	return false, errs
}

// validatePayloadMetric checks one metric entry independently of the
// others. Within an entry the checks stop once a required field is found
// missing, to avoid cascading nonsense errors about a value that is not
// there.
func validatePayloadMetric(entryRaw any, index int) []ValidationError {
	prefix := fmt.Sprintf("$.metrics[%d]", index)
	var errs []ValidationError

	entry, ok := asMapping(entryRaw)
	if !ok {
		return []ValidationError{{
			Path:    prefix,
			Message: fmt.Sprintf("metric entry must be a mapping, got %T", entryRaw),
		}}
	}

	name, hasName := entry[metrics.FieldName]
	if !hasName {
		errs = append(errs, ValidationError{
			Path:    prefix + ".name",
			Message: "missing 'name' field",
		})
	} else if !validName(name) {
		errs = append(errs, ValidationError{
			Path:    prefix + ".name",
			Message: fmt.Sprintf("invalid metric name %v", name),
		})
	}

	typRaw, hasType := entry[metrics.FieldType]
	if !hasType {
		errs = append(errs, ValidationError{
			Path:    prefix + ".type",
			Message: "missing 'type' field",
		})
		return errs
	}
	typ, ok := typRaw.(string)
	if !ok {
		errs = append(errs, ValidationError{
			Path:    prefix + ".type",
			Message: fmt.Sprintf("'type' must be a string, got %T", typRaw),
		})
		return errs
	}
	typNorm := strings.ToLower(strings.TrimSpace(typ))
	if _, ok := allowedTypes[typNorm]; !ok {
		errs = append(errs, ValidationError{
			Path:    prefix + ".type",
			Message: fmt.Sprintf("unsupported metric type %q", typ),
		})
		return errs
	}

	value, hasValue := entry[metrics.FieldValue]
	if !hasValue {
		errs = append(errs, ValidationError{
			Path:    prefix + ".value",
			Message: "missing 'value' field",
		})
		return errs
	}
	if !valueMatchesType(value, typNorm) {
		errs = append(errs, ValidationError{
			Path:    prefix + ".value",
			Message: fmt.Sprintf("value %v does not match declared type %q", value, typ),
		})
	}

	return errs
}

func validName(name any) bool {
	s, ok := name.(string)
	if !ok || s == "" {
		return false
	}
	return payloadNamePattern.MatchString(s)
}

// valueMatchesType checks the runtime representation of a value against its
// declared type. Booleans never satisfy the numeric check.
func valueMatchesType(value any, typ string) bool {
	switch typ {
	case metrics.TypeNumeric:
		switch value.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case metrics.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case metrics.TypeString:
		_, ok := value.(string)
		return ok
	}
	return false
}

// asMapping widens the mapping forms that flow through the pipeline into a
// plain map.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case metrics.Metric:
		return m, true
	}
	return nil, false
}

// asSequence widens the sequence forms that flow through the pipeline.
func asSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []metrics.Metric:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}
