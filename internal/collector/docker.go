package collector

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"monitoring-agent/pkg/metrics"

	log "monitoring-agent/pkg/log"
)

// dockerTimeout bounds the daemon calls. An unreachable daemon should fail
// fast rather than hold up the run.
const dockerTimeout = 5 * time.Second

// Docker reports whether a Docker daemon is reachable and, when it is, the
// container counts. Hosts without Docker still emit docker.available=false.
type Docker struct{}

// NewDocker creates the docker collector.
func NewDocker() *Docker {
	return &Docker{}
}

func (d *Docker) Name() string {
	return "docker"
}

func (d *Docker) Collect() ([]metrics.Metric, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dockerTimeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.Debug("docker client unavailable", "error", err)
		return []metrics.Metric{booleanMetric("docker.available", false)}, nil
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		log.Debug("docker daemon not reachable", "error", err)
		return []metrics.Metric{booleanMetric("docker.available", false)}, nil
	}

	collected := []metrics.Metric{booleanMetric("docker.available", true)}

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		log.Warn("cannot list containers", "error", err)
		return collected, nil
	}

	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}
	collected = append(collected,
		numericMetric("docker.containers_total", int64(len(containers))),
		numericMetric("docker.containers_running", int64(running)),
	)
	return collected, nil
}
