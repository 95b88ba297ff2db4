package vendors

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	log "monitoring-agent/pkg/log"
)

// DefaultLanguage is the language assumed when neither a metric entry nor
// the document metadata declares one.
const DefaultLanguage = "python"

// Metric is one normalized vendor metric definition, ready to be executed.
type Metric struct {
	Vendor      string
	GroupName   string
	Name        string
	Command     string
	Language    string
	Type        string
	Description string
	IsCritical  bool
	SourceFile  string
}

// Parser discovers and loads vendor definition files from a directory.
// Invalid files are skipped with a warning; one bad file never aborts the
// run.
type Parser struct {
	dir string
}

// NewParser creates a parser over the given vendors directory. The directory
// does not have to exist; a missing directory simply yields no metrics.
func NewParser(dir string) *Parser {
	return &Parser{dir: dir}
}

// ParseAll scans the vendors directory and returns every metric definition
// from every valid file, in file-discovery order then in-file order.
func (p *Parser) ParseAll() []Metric {
	var result []Metric

	files := p.discoverFiles()
	for _, path := range files {
		doc, err := p.loadDocument(path)
		if err != nil {
			log.Warn("vendor file skipped", "path", path, "error", err)
			continue
		}
		fileMetrics := p.buildMetrics(doc, path)
		result = append(result, fileMetrics...)
		log.Info("vendor file loaded", "path", path, "metrics", len(fileMetrics))
	}

	log.Info("vendor definitions loaded", "total", len(result))
	return result
}

// discoverFiles returns the .yaml/.yml files in the vendors directory in
// lexicographic order, excluding .disabled and .example files. Missing or
// non-directory paths yield an empty list, not an error.
func (p *Parser) discoverFiles() []string {
	info, err := os.Stat(p.dir)
	if err != nil {
		log.Info("vendors directory does not exist, nothing to load", "dir", p.dir)
		return nil
	}
	if !info.IsDir() {
		log.Warn("vendors path is not a directory, nothing to load", "dir", p.dir)
		return nil
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		log.Warn("vendors directory could not be read", "dir", p.dir, "error", err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".disabled") || strings.HasSuffix(name, ".example") {
			continue
		}
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		files = append(files, filepath.Join(p.dir, name))
	}

	// os.ReadDir already sorts by name; keep the sort explicit anyway since
	// discovery order decides output order.
	sort.Strings(files)

	log.Debug("vendor files discovered", "files", files)
	return files
}

// loadDocument reads, parses and validates one vendor file.
func (p *Parser) loadDocument(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &SchemaError{Source: path, Message: "invalid YAML: " + err.Error()}
	}

	doc, ok := root.(map[string]any)
	if !ok {
		return nil, &SchemaError{Source: path, Message: "document root must be a mapping"}
	}

	return ValidateDocument(doc, path)
}

// buildMetrics expands a validated document into Metric records. A metric
// entry that fails normalization is skipped on its own; the rest of the file
// is kept.
func (p *Parser) buildMetrics(doc map[string]any, path string) []Metric {
	metadata, _ := doc["metadata"].(map[string]any)
	entries, _ := doc["metrics"].([]any)

	vendor, _ := metadata["vendor"].(string)
	globalLang, _ := metadata["language"].(string)

	var result []Metric
	for _, entryRaw := range entries {
		entry, ok := entryRaw.(map[string]any)
		if !ok {
			log.Warn("vendor metric skipped, entry is not a mapping", "path", path)
			continue
		}
		m, ok := buildMetric(entry, vendor, globalLang, path)
		if !ok {
			log.Warn("vendor metric skipped, normalization failed", "path", path, "entry", entry)
			continue
		}
		result = append(result, m)
	}
	return result
}

func buildMetric(entry map[string]any, vendor, globalLang, path string) (Metric, bool) {
	name, ok := entry["name"].(string)
	if !ok {
		return Metric{}, false
	}
	command, ok := entry["command"].(string)
	if !ok {
		return Metric{}, false
	}
	typ, ok := entry["type"].(string)
	if !ok {
		return Metric{}, false
	}
	groupName, ok := entry["group_name"].(string)
	if !ok {
		return Metric{}, false
	}

	// Language precedence: metric entry, then document metadata, then the
	// package default.
	lang, _ := entry["language"].(string)
	if lang == "" {
		lang = globalLang
	}
	if lang == "" {
		lang = DefaultLanguage
	}

	description, _ := entry["description"].(string)
	isCritical, _ := entry["is_critical"].(bool)

	return Metric{
		Vendor:      vendor,
		GroupName:   groupName,
		Name:        name,
		Command:     command,
		Language:    lang,
		Type:        typ,
		Description: description,
		IsCritical:  isCritical,
		SourceFile:  path,
	}, true
}
