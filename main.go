package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"monitoring-agent/internal/api"
	"monitoring-agent/internal/collector"
	"monitoring-agent/internal/config"
	"monitoring-agent/internal/fingerprint"
	"monitoring-agent/internal/pipeline"
	"monitoring-agent/internal/vendors"
	"monitoring-agent/pkg/metrics"
	"monitoring-agent/pkg/version"

	log "monitoring-agent/pkg/log"
)

// Exit codes reported to the scheduler running the agent.
const (
	exitOK         = 0
	exitConfig     = 1
	exitValidation = 2
	exitDelivery   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	configPath := flag.String("config", "agent.config.yaml", "Path to configuration file")
	dryRun := flag.Bool("dry-run", false, "Build and validate the payload, print it, skip delivery")
	verbose := flag.Bool("verbose", false, "Force debug logging regardless of configuration")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("Monitoring Agent version: %s (#%d)\n", version.GetVersion(), version.GetNumericVersion())
		return exitOK
	}

	if *showHelp {
		fmt.Println("Monitoring Agent")
		fmt.Println("Usage: monitoring-agent [options]")
		fmt.Println("Options:")
		fmt.Println("  --version  Show version information")
		fmt.Println("  --help     Show help information")
		fmt.Println("  --config   Path to configuration file (default: agent.config.yaml)")
		fmt.Println("  --dry-run  Build and validate the payload, print it, skip delivery")
		fmt.Println("  --verbose  Force debug logging regardless of configuration")
		return exitOK
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitConfig
	}

	logLevel := cfg.Logging.Level
	if *verbose {
		logLevel = "debug"
	}
	log.InitLog(logLevel)
	log.Info("agent starting", "version", version.GetVersion(), "config", *configPath)

	fp, err := fingerprint.Generate(fingerprint.Options{
		Salt:           cfg.Fingerprint.Salt,
		CachePath:      cfg.FingerprintCachePath(),
		ForceRecompute: cfg.Fingerprint.ForceRecompute,
		MachineIDPath:  filepath.Join(cfg.DataDir(), "machine_id"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fingerprint error: %v\n", err)
		return exitConfig
	}

	builtin := collector.NewRunner(
		collector.NewSystem(),
		collector.NewDocker(),
	).CollectAll()
	log.Info("builtin metrics collected", "count", len(builtin))

	vendor := collectVendorMetrics(cfg)
	log.Info("vendor metrics collected", "count", len(vendor))

	aggregated := pipeline.NewAggregator().Aggregate(builtin, vendor)

	transformer := pipeline.NewTransformer(pipeline.TransformerConfig{
		Generator:      cfg.Client.Name,
		Version:        cfg.Version(),
		SchemaVersion:  cfg.Client.SchemaVersion,
		TimestampField: cfg.Client.TimestampField,
	})
	payload := transformer.BuildPayload(
		aggregated,
		cfg.Machine.ResolveHostname(),
		cfg.Machine.ResolveOS(),
		fp,
		time.Now().UTC().Format(time.RFC3339),
	)

	if ok, problems := pipeline.ValidatePayload(payload); !ok {
		fmt.Fprintf(os.Stderr, "Payload validation failed with %d error(s):\n", len(problems))
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", p.Path, p.Message)
		}
		return exitValidation
	}

	if *dryRun {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot serialize payload: %v\n", err)
			return exitValidation
		}
		fmt.Println(string(data))
		log.Info("dry run complete, payload not delivered")
		return exitOK
	}

	client := api.NewClient(api.ClientConfig{
		BaseURL:          cfg.API.BaseURL,
		MetricsEndpoint:  cfg.API.MetricsEndpoint,
		APIKeyHeader:     cfg.API.APIKeyHeader,
		APIKey:           cfg.ResolvedAPIKey,
		Timeout:          cfg.API.Timeout(),
		MaxRetries:       cfg.API.MaxRetries,
		RetryBackoffBase: cfg.API.RetryBackoff(),
		VerifySSL:        cfg.API.VerifySSL,
	})
	resp, err := client.SendPayload(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delivery error: %v\n", err)
		return exitDelivery
	}

	log.Info("payload delivered", "status_code", resp.StatusCode, "metrics", len(aggregated))
	return exitOK
}

// collectVendorMetrics loads the vendor definitions and executes each one,
// turning successful runs into payload metric records. Failed executions are
// already logged by the executor and simply yield no record.
func collectVendorMetrics(cfg *config.Config) []metrics.Metric {
	definitions := vendors.NewParser(cfg.VendorsDir()).ParseAll()
	executor := vendors.NewExecutor()
	timeout := cfg.Vendors.ExecTimeout()

	var collected []metrics.Metric
	for _, def := range definitions {
		value, ok := executor.ExecuteMetric(def, timeout)
		if !ok {
			continue
		}
		m := metrics.Metric{
			metrics.FieldName:       def.Name,
			metrics.FieldValue:      value,
			metrics.FieldType:       def.Type,
			metrics.FieldVendor:     def.Vendor,
			metrics.FieldGroupName:  def.GroupName,
			metrics.FieldIsCritical: def.IsCritical,
		}
		if def.Description != "" {
			m[metrics.FieldDescription] = def.Description
		}
		collected = append(collected, m)
	}
	return collected
}
