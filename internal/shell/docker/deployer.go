package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkravets/convoy/internal/core/deployment"
)

// =============================================================================
// Deployer - Converges the Daemon to a Deployment Spec
// =============================================================================

// Deployer replaces a running deployment with a freshly built one.
// Steps run strictly in sequence; teardown and cleanup steps tolerate
// "already absent" conditions, build and run steps abort on failure.
type Deployer struct {
	docker      Client
	logger      *slog.Logger
	stopTimeout time.Duration
}

// NewDeployer creates a new deployer.
func NewDeployer(docker Client, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		docker:      docker,
		logger:      logger,
		stopTimeout: 10 * time.Second,
	}
}

// Result describes the outcome of a successful deployment.
type Result struct {
	ContainerID string        `json:"container_id"`
	ImageRef    string        `json:"image_ref"`
	Pruned      *PruneReport  `json:"pruned,omitempty"`
	PruneErr    error         `json:"-"` // Cleanup failure, never fatal
	Duration    time.Duration `json:"duration"`
}

// Deploy converges the Docker daemon to the given spec:
// stop and remove any prior container holding the name, build the image,
// ensure the network, start a fresh container, then prune dangling layers.
func (d *Deployer) Deploy(ctx context.Context, spec deployment.Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment spec: %w", err)
	}

	start := time.Now()
	imageRef := spec.ImageRef()

	d.logger.Info("starting deployment",
		"image", imageRef,
		"container", spec.ContainerName,
		"network", spec.NetworkName,
	)

	// 1-2. Tear down the prior instance if one exists.
	d.teardownPrior(spec.ContainerName)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Build the image. Fatal on failure.
	if err := d.docker.BuildImage(BuildOptions{
		ContextDir: spec.ContextDir,
		Tag:        imageRef,
		Platform:   spec.Platform,
	}); err != nil {
		return nil, fmt.Errorf("build %s: %w", imageRef, err)
	}
	d.logger.Debug("built image", "image", imageRef, "platform", spec.Platform)

	// 4. Ensure the network exists. "already exists" is fine, anything
	// else is fatal.
	if err := d.ensureNetwork(spec.NetworkName); err != nil {
		return nil, fmt.Errorf("ensure network %s: %w", spec.NetworkName, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Create and start the new container. Fatal on failure.
	containerID, err := d.startContainer(spec, imageRef)
	if err != nil {
		return nil, err
	}
	d.logger.Info("container running",
		"container", spec.ContainerName,
		"container_id", shortID(containerID),
		"bind", fmt.Sprintf("%s:%d", spec.HostBindAddress, spec.HostPort),
	)

	result := &Result{
		ContainerID: containerID,
		ImageRef:    imageRef,
	}

	// 6. Prune dangling layers. Best effort only.
	report, err := d.docker.PruneImages()
	if err != nil {
		d.logger.Warn("image prune failed", "error", err)
		result.PruneErr = err
	} else {
		result.Pruned = report
		d.logger.Debug("pruned dangling images",
			"deleted", report.ImagesDeleted,
			"reclaimed_bytes", report.SpaceReclaimed,
		)
	}

	result.Duration = time.Since(start)
	d.logger.Info("deployment finished",
		"container", spec.ContainerName,
		"duration", result.Duration,
	)
	return result, nil
}

// =============================================================================
// Steps
// =============================================================================

// teardownPrior stops and removes the container holding the name, if any.
// Absence is a no-op; other failures are logged and deployment continues,
// since a conflicting leftover will fail the run step anyway.
func (d *Deployer) teardownPrior(name string) {
	prior, err := d.docker.FindContainerByName(name)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			d.logger.Debug("no prior container", "container", name)
			return
		}
		d.logger.Warn("failed to look up prior container", "container", name, "error", err)
		return
	}

	if prior.Status == ContainerStatusRunning {
		timeout := d.stopTimeout
		if err := d.docker.StopContainer(prior.ID, &timeout); err != nil {
			if errors.Is(err, ErrContainerNotFound) || errors.Is(err, ErrContainerNotRunning) {
				d.logger.Debug("prior container already stopped", "container", name)
			} else {
				d.logger.Warn("failed to stop prior container", "container", name, "error", err)
			}
		} else {
			d.logger.Debug("stopped prior container", "container", name, "container_id", shortID(prior.ID))
		}
	}

	if err := d.docker.RemoveContainer(prior.ID, RemoveOptions{Force: true}); err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			d.logger.Debug("prior container already removed", "container", name)
		} else {
			d.logger.Warn("failed to remove prior container", "container", name, "error", err)
		}
		return
	}
	d.logger.Debug("removed prior container", "container", name, "container_id", shortID(prior.ID))
}

// ensureNetwork creates the network or reuses an existing one.
func (d *Deployer) ensureNetwork(name string) error {
	_, err := d.docker.CreateNetwork(NetworkSpec{
		Name:   name,
		Driver: "bridge",
		Labels: map[string]string{LabelManaged: "true"},
	})
	if err != nil {
		if errors.Is(err, ErrNetworkAlreadyExists) {
			d.logger.Debug("network already exists, reusing", "network", name)
			return nil
		}
		return err
	}
	d.logger.Debug("created network", "network", name)
	return nil
}

// startContainer creates and starts the deployment container.
func (d *Deployer) startContainer(spec deployment.Spec, imageRef string) (string, error) {
	containerID, err := d.docker.CreateContainer(ContainerSpec{
		Name:  spec.ContainerName,
		Image: imageRef,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelImage:   imageRef,
		},
		Networks: []string{spec.NetworkName},
		Ports: []PortBinding{
			{
				ContainerPort: spec.ContainerPort,
				HostPort:      spec.HostPort,
				Protocol:      "tcp",
				HostIP:        spec.HostBindAddress,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.ContainerName, err)
	}

	if err := d.docker.StartContainer(containerID); err != nil {
		return "", fmt.Errorf("start container %s: %w", spec.ContainerName, err)
	}

	return containerID, nil
}

// shortID truncates a container ID for logging.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
