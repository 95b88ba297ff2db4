package collector

import (
	"errors"
	"testing"

	"monitoring-agent/pkg/metrics"
)

type stubCollector struct {
	name  string
	batch []metrics.Metric
	err   error
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect() ([]metrics.Metric, error) { return s.batch, s.err }

func TestRunnerCollectAll(t *testing.T) {
	first := &stubCollector{
		name:  "first",
		batch: []metrics.Metric{numericMetric("cpu.usage_percent", 12.5)},
	}
	second := &stubCollector{
		name:  "second",
		batch: []metrics.Metric{booleanMetric("docker.available", true)},
	}

	got := NewRunner(first, second).CollectAll()
	if len(got) != 2 {
		t.Fatalf("CollectAll() returned %d metrics, want 2", len(got))
	}
	if got[0].Name() != "cpu.usage_percent" || got[1].Name() != "docker.available" {
		t.Errorf("unexpected order: %q, %q", got[0].Name(), got[1].Name())
	}
}

func TestRunnerSkipsFailingCollector(t *testing.T) {
	broken := &stubCollector{name: "broken", err: errors.New("probe failed")}
	working := &stubCollector{
		name:  "working",
		batch: []metrics.Metric{numericMetric("load.avg_1m", 0.4)},
	}

	got := NewRunner(broken, working).CollectAll()
	if len(got) != 1 {
		t.Fatalf("CollectAll() returned %d metrics, want 1", len(got))
	}
	if got[0].Name() != "load.avg_1m" {
		t.Errorf("surviving metric = %q, want load.avg_1m", got[0].Name())
	}
}

func TestRunnerNoCollectors(t *testing.T) {
	if got := NewRunner().CollectAll(); len(got) != 0 {
		t.Errorf("CollectAll() on empty runner returned %d metrics", len(got))
	}
}

func TestNumericMetricShape(t *testing.T) {
	m := numericMetric("memory.used_percent", 42.0)
	if m.Name() != "memory.used_percent" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.Type() != metrics.TypeNumeric {
		t.Errorf("Type() = %q, want %q", m.Type(), metrics.TypeNumeric)
	}
	if !m.HasValue() {
		t.Error("HasValue() = false, want true")
	}
	if _, ok := m[metrics.FieldVendor]; ok {
		t.Error("builtin metric should not carry a vendor field")
	}
}
