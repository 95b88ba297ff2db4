package collector

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// cpuSampleInterval is the window over which CPU usage is averaged.
const cpuSampleInterval = time.Second

// System collects CPU, memory, swap, load, disk and uptime metrics via
// gopsutil. Individual probes that fail are logged and skipped so one broken
// source does not suppress the rest.
type System struct{}

// NewSystem creates the system collector.
func NewSystem() *System {
	return &System{}
}

func (s *System) Name() string {
	return "system"
}

func (s *System) Collect() ([]metrics.Metric, error) {
	var collected []metrics.Metric

	if percents, err := cpu.Percent(cpuSampleInterval, false); err != nil {
		log.Warn("cannot read cpu usage", "error", err)
	} else if len(percents) > 0 {
		collected = append(collected, numericMetric("cpu.usage_percent", percents[0]))
	}

	if counts, err := cpu.Counts(true); err != nil {
		log.Warn("cannot read cpu count", "error", err)
	} else {
		collected = append(collected, numericMetric("cpu.count", int64(counts)))
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn("cannot read virtual memory", "error", err)
	} else {
		collected = append(collected,
			numericMetric("memory.total_bytes", int64(vm.Total)),
			numericMetric("memory.available_bytes", int64(vm.Available)),
			numericMetric("memory.used_percent", vm.UsedPercent),
		)
	}

	if swap, err := mem.SwapMemory(); err != nil {
		log.Warn("cannot read swap memory", "error", err)
	} else {
		collected = append(collected,
			numericMetric("swap.total_bytes", int64(swap.Total)),
			numericMetric("swap.used_percent", swap.UsedPercent),
		)
	}

	if avg, err := load.Avg(); err != nil {
		log.Warn("cannot read load average", "error", err)
	} else {
		collected = append(collected,
			numericMetric("load.avg_1m", avg.Load1),
			numericMetric("load.avg_5m", avg.Load5),
			numericMetric("load.avg_15m", avg.Load15),
		)
	}

	collected = append(collected, s.diskMetrics()...)

	if uptime, err := host.Uptime(); err != nil {
		log.Warn("cannot read uptime", "error", err)
	} else {
		collected = append(collected, numericMetric("host.uptime_seconds", int64(uptime)))
	}

	return collected, nil
}

// diskMetrics reports usage per mounted filesystem. Mount points are encoded
// into the metric name in bracket form, e.g. disk[/var].usage_percent.
func (s *System) diskMetrics() []metrics.Metric {
	partitions, err := disk.Partitions(false)
	if err != nil {
		log.Warn("cannot list disk partitions", "error", err)
		return nil
	}

	var collected []metrics.Metric
	for _, part := range partitions {
		usage, err := disk.Usage(part.Mountpoint)
		if err != nil {
			log.Debug("cannot read disk usage", "mountpoint", part.Mountpoint, "error", err)
			continue
		}
		collected = append(collected,
			numericMetric(fmt.Sprintf("disk[%s].total_bytes", part.Mountpoint), int64(usage.Total)),
			numericMetric(fmt.Sprintf("disk[%s].used_percent", part.Mountpoint), usage.UsedPercent),
		)
	}
	return collected
}
