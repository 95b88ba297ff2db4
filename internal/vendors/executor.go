package vendors

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	log "monitoring-agent/pkg/log"
)

// languageSpec describes how one supported language is located and invoked.
// candidates are probed in order at construction; buildArgs returns the
// arguments that follow the interpreter on the command line. The command is
// always passed as its own argv element, never interpolated into a shell
// string.
type languageSpec struct {
	candidates []string
	buildArgs  func(command string) ([]string, error)
}

func inlineFlag(flag string) func(string) ([]string, error) {
	return func(command string) ([]string, error) {
		return []string{flag, command}, nil
	}
}

// languageTable is the closed set of languages the executor can run. It is
// deliberately broader than the set a vendor file may declare; the schema
// enum and this table evolve independently.
var languageTable = map[string]languageSpec{
	"python":     {candidates: []string{"python3", "python"}, buildArgs: inlineFlag("-c")},
	"python2":    {candidates: []string{"python2"}, buildArgs: inlineFlag("-c")},
	"bash":       {candidates: []string{"bash", "sh"}, buildArgs: inlineFlag("-c")},
	"sh":         {candidates: []string{"sh"}, buildArgs: inlineFlag("-c")},
	"node":       {candidates: []string{"node", "nodejs"}, buildArgs: inlineFlag("-e")},
	"ruby":       {candidates: []string{"ruby"}, buildArgs: inlineFlag("-e")},
	"perl":       {candidates: []string{"perl"}, buildArgs: inlineFlag("-e")},
	"powershell": {candidates: []string{"pwsh", "powershell"}, buildArgs: inlineFlag("-Command")},
	"batch":      {candidates: []string{"cmd"}, buildArgs: inlineFlag("/c")},
	"java":       {candidates: []string{"java"}, buildArgs: buildJavaArgs},
}

// buildJavaArgs only accepts a literal jar path. Any other Java command is
// too ambiguous to invoke safely; integrators wanting a custom invocation
// declare language bash/sh and write the full `java ...` command there.
func buildJavaArgs(command string) ([]string, error) {
	trimmed := strings.TrimSpace(command)
	if strings.HasSuffix(trimmed, ".jar") {
		return []string{"-jar", trimmed}, nil
	}
	return nil, errors.New("ambiguous java command: provide a .jar path, or use language bash with a full 'java ...' command")
}

// Executor runs vendor metric commands under their declared language with a
// hard wall-clock timeout. The interpreter paths are resolved once at
// construction and are immutable afterwards. No method of Executor ever
// returns an error or panics: every failure degrades to an absent value.
type Executor struct {
	interpreters map[string]string // language -> resolved binary path, "" when unavailable
}

// NewExecutor probes the host's search path for every supported language and
// records the first resolvable candidate binary per language.
func NewExecutor() *Executor {
	e := &Executor{interpreters: make(map[string]string, len(languageTable))}
	for lang, spec := range languageTable {
		path := ""
		for _, candidate := range spec.candidates {
			if p, err := exec.LookPath(candidate); err == nil {
				path = p
				break
			}
		}
		e.interpreters[lang] = path
	}
	log.Debug("interpreters detected", "interpreters", e.interpreters)
	return e
}

// Available reports whether the language is supported and an interpreter
// binary was found for it.
func (e *Executor) Available(language string) bool {
	lang := strings.ToLower(strings.TrimSpace(language))
	return e.interpreters[lang] != ""
}

// Execute runs command under the given language and parses trimmed stdout
// into expectedType. The second return value is false when the metric value
// is absent: unavailable language, rejected command, timeout, non-zero exit,
// spawn failure or unparseable output. When expectedType is empty the
// trimmed stdout is returned without typed parsing.
func (e *Executor) Execute(command, language string, timeout time.Duration, expectedType string) (any, bool) {
	lang := strings.ToLower(strings.TrimSpace(language))

	if !e.Available(lang) {
		log.Warn("language unavailable on this host, command skipped", "language", language)
		return nil, false
	}

	spec := languageTable[lang]
	args, err := spec.buildArgs(command)
	if err != nil {
		log.Warn("vendor command rejected", "language", lang, "error", err)
		return nil, false
	}

	runID := uuid.New().String()
	log.Debug("executing vendor command", "run_id", runID, "language", lang, "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.interpreters[lang], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		log.Warn("vendor command timed out", "run_id", runID, "language", lang, "timeout", timeout)
		return nil, false
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			log.Warn("vendor command failed",
				"run_id", runID,
				"language", lang,
				"exit_code", exitErr.ExitCode(),
				"stderr", strings.TrimSpace(stderr.String()))
		} else {
			log.Warn("vendor command could not be run", "run_id", runID, "language", lang, "error", runErr)
		}
		return nil, false
	}

	out := strings.TrimSpace(stdout.String())
	log.Debug("vendor command succeeded", "run_id", runID, "language", lang, "stdout", out)

	if expectedType == "" {
		return out, true
	}

	value, ok := parseOutput(out, expectedType)
	if !ok {
		log.Warn("vendor command output could not be parsed",
			"run_id", runID,
			"expected_type", expectedType,
			"stdout", out)
	}
	return value, ok
}

// ExecuteMetric runs a vendor metric definition with its declared language
// and type.
func (e *Executor) ExecuteMetric(m Metric, timeout time.Duration) (any, bool) {
	return e.Execute(m.Command, m.Language, timeout, m.Type)
}

// truthy and falsy are the accepted spellings for boolean metric output.
var (
	truthy = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "y": {}, "on": {}}
	falsy  = map[string]struct{}{"false": {}, "0": {}, "no": {}, "n": {}, "off": {}}
)

// parseOutput converts trimmed stdout into the expected metric type.
// Numeric output parses as int64 when the text has no decimal point or
// exponent marker, falling back to float64 (also on integer overflow).
func parseOutput(stdout, expectedType string) (any, bool) {
	switch strings.ToLower(strings.TrimSpace(expectedType)) {
	case "string":
		return stdout, true

	case "numeric":
		if !strings.Contains(stdout, ".") && !strings.ContainsAny(stdout, "eE") {
			if n, err := strconv.ParseInt(stdout, 10, 64); err == nil {
				return n, true
			}
			// Fall through to float: covers overflow as well as plain
			// non-integer text.
		}
		if f, err := strconv.ParseFloat(stdout, 64); err == nil {
			return f, true
		}
		return nil, false

	case "boolean":
		v := strings.ToLower(strings.TrimSpace(stdout))
		if _, ok := truthy[v]; ok {
			return true, true
		}
		if _, ok := falsy[v]; ok {
			return false, true
		}
		return nil, false
	}

	return nil, false
}
