package vendors

import (
	"fmt"
	"regexp"
	"strings"

	log "monitoring-agent/pkg/log"
)

// SchemaError reports the first structural violation found in a vendor
// definition document. Unlike payload validation, definition validation is
// fail-fast: one bad document is skipped as a whole, so collecting more than
// the first error would not change the outcome.
type SchemaError struct {
	Source  string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid vendor definition (%s): %s", e.Source, e.Message)
}

// ReservedVendor is the vendor name reserved for the agent's own collectors.
// Definition files must never claim it.
const ReservedVendor = "builtin"

// identifierPattern constrains vendor, metric and group names in definition
// files. Narrower than the payload pattern: no brackets or slashes here.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// schemaLanguages is the set of languages a vendor file may declare. The
// executor supports more interpreters than this; the two lists evolve
// independently.
var schemaLanguages = map[string]struct{}{
	"python":  {},
	"bash":    {},
	"python2": {},
	"java":    {},
	"node":    {},
	"nodejs":  {},
	"sh":      {},
}

// metricFields is the closed set of keys allowed on a metric entry. Metadata
// tolerates extra keys (vendors ship version strings, contact info and the
// like there); metric entries do not.
var metricFields = map[string]struct{}{
	"name":        {},
	"command":     {},
	"language":    {},
	"type":        {},
	"group_name":  {},
	"description": {},
	"is_critical": {},
}

var requiredMetricFields = []string{"name", "command", "type", "group_name", "description", "is_critical"}

var metricTypes = map[string]struct{}{
	"numeric": {},
	"boolean": {},
	"string":  {},
}

// ValidateDocument checks a raw vendor definition document against the
// definition schema and returns the normalized document. Normalization
// covers the legacy "yamlmetadata" key (renamed to "metadata") and the
// "nodejs" language alias (canonicalized to "node"), both at document level
// and per metric. The first violation aborts validation with a *SchemaError.
func ValidateDocument(raw map[string]any, source string) (map[string]any, error) {
	if raw == nil {
		return nil, &SchemaError{Source: source, Message: "document root must be a mapping"}
	}

	raw = normalizeMetadataAlias(raw, source)

	metaRaw, ok := raw["metadata"]
	if !ok {
		return nil, &SchemaError{Source: source, Message: "missing required key 'metadata'"}
	}
	metadata, ok := metaRaw.(map[string]any)
	if !ok {
		return nil, &SchemaError{Source: source, Message: "'metadata' must be a mapping"}
	}

	vendorRaw, ok := metadata["vendor"]
	if !ok {
		return nil, &SchemaError{Source: source, Message: "missing required key 'metadata.vendor'"}
	}
	vendor, ok := vendorRaw.(string)
	if !ok || vendor == "" {
		return nil, &SchemaError{Source: source, Message: "'metadata.vendor' must be a non-empty string"}
	}
	if !identifierPattern.MatchString(vendor) {
		return nil, &SchemaError{Source: source, Message: fmt.Sprintf("'metadata.vendor' %q does not match the identifier pattern", vendor)}
	}
	if strings.ToLower(strings.TrimSpace(vendor)) == ReservedVendor {
		return nil, &SchemaError{Source: source, Message: "'metadata.vendor' must not be the reserved value 'builtin'"}
	}

	if langRaw, ok := metadata["language"]; ok {
		lang, ok := langRaw.(string)
		if !ok {
			return nil, &SchemaError{Source: source, Message: "'metadata.language' must be a string"}
		}
		if _, ok := schemaLanguages[lang]; !ok {
			return nil, &SchemaError{Source: source, Message: fmt.Sprintf("'metadata.language' %q is not a supported language", lang)}
		}
		metadata["language"] = normalizeLanguage(lang)
	}

	metricsRaw, ok := raw["metrics"]
	if !ok {
		return nil, &SchemaError{Source: source, Message: "missing required key 'metrics'"}
	}
	entries, ok := metricsRaw.([]any)
	if !ok {
		return nil, &SchemaError{Source: source, Message: "'metrics' must be a sequence"}
	}
	if len(entries) == 0 {
		return nil, &SchemaError{Source: source, Message: "'metrics' must contain at least one entry"}
	}

	for i, entryRaw := range entries {
		if err := validateMetricEntry(entryRaw, i, source); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

func validateMetricEntry(entryRaw any, index int, source string) error {
	at := func(msg string, args ...any) error {
		return &SchemaError{Source: source, Message: fmt.Sprintf("metrics[%d]: %s", index, fmt.Sprintf(msg, args...))}
	}

	entry, ok := entryRaw.(map[string]any)
	if !ok {
		return at("entry must be a mapping")
	}

	// Closed schema: anything outside the known field set is rejected.
	for key := range entry {
		if _, ok := metricFields[key]; !ok {
			return at("unknown field %q", key)
		}
	}

	for _, field := range requiredMetricFields {
		if _, ok := entry[field]; !ok {
			return at("missing required field %q", field)
		}
	}

	name, ok := entry["name"].(string)
	if !ok || !identifierPattern.MatchString(name) {
		return at("'name' %v does not match the identifier pattern", entry["name"])
	}

	command, ok := entry["command"].(string)
	if !ok || command == "" {
		return at("'command' must be a non-empty string")
	}

	typ, ok := entry["type"].(string)
	if !ok {
		return at("'type' must be a string")
	}
	if _, known := metricTypes[typ]; !known {
		return at("'type' %q is not one of numeric, boolean, string", typ)
	}

	groupName, ok := entry["group_name"].(string)
	if !ok || !identifierPattern.MatchString(groupName) {
		return at("'group_name' %v does not match the identifier pattern", entry["group_name"])
	}

	if _, ok := entry["description"].(string); !ok {
		return at("'description' must be a string")
	}

	if _, ok := entry["is_critical"].(bool); !ok {
		return at("'is_critical' must be a boolean")
	}

	if langRaw, ok := entry["language"]; ok {
		lang, ok := langRaw.(string)
		if !ok {
			return at("'language' must be a string")
		}
		if _, known := schemaLanguages[lang]; !known {
			return at("'language' %q is not a supported language", lang)
		}
		entry["language"] = normalizeLanguage(lang)
	}

	return nil
}

// normalizeMetadataAlias renames the legacy "yamlmetadata" key, kept for
// compatibility with early vendor files, to the canonical "metadata".
func normalizeMetadataAlias(raw map[string]any, source string) map[string]any {
	if _, ok := raw["metadata"]; ok {
		return raw
	}
	if legacy, ok := raw["yamlmetadata"]; ok {
		raw["metadata"] = legacy
		delete(raw, "yamlmetadata")
		log.Debug("normalized legacy 'yamlmetadata' key", "source", source)
	}
	return raw
}

// normalizeLanguage canonicalizes language aliases accepted by the schema.
func normalizeLanguage(lang string) string {
	if lang == "nodejs" {
		return "node"
	}
	return lang
}
