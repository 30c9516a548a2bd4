// Package docker provides a Docker client and the deployment lifecycle
// on top of it.
package docker

import (
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name          string
	Image         string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	Networks      []string
	RestartPolicy RestartPolicy
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// RestartPolicy defines the container restart policy.
type RestartPolicy struct {
	Name              string // "no", "always", "on-failure", "unless-stopped"
	MaximumRetryCount int
}

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated ContainerStatus = "created"
	ContainerStatusRunning ContainerStatus = "running"
	ContainerStatusExited  ContainerStatus = "exited"
	ContainerStatusDead    ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    ContainerStatus
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name   string
	Driver string // "bridge" when empty
	Labels map[string]string
}

// =============================================================================
// Image Types
// =============================================================================

// BuildOptions defines options for building an image.
type BuildOptions struct {
	ContextDir string // Build context directory on this host
	Tag        string // Fully tagged reference, e.g. "qa-service:1.0"
	Platform   string // e.g. "linux/amd64"
	Dockerfile string // Relative to ContextDir; "Dockerfile" when empty
	NoCache    bool
}

// PruneReport summarizes an image prune run.
type PruneReport struct {
	ImagesDeleted  int
	SpaceReclaimed uint64 // Bytes
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // Include stopped containers
	Filters map[string]string // e.g., {"label": "com.convoy.managed=true"}
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker client interface the deployer runs against.
// Implementations never cache daemon state; every call reads it fresh.
type Client interface {
	// Container operations
	FindContainerByName(name string) (*ContainerInfo, error)
	CreateContainer(spec ContainerSpec) (containerID string, err error)
	StartContainer(containerID string) error
	StopContainer(containerID string, timeout *time.Duration) error
	RemoveContainer(containerID string, opts RemoveOptions) error
	InspectContainer(containerID string) (*ContainerInfo, error)
	ListContainers(opts ListOptions) ([]ContainerInfo, error)

	// Network operations
	CreateNetwork(spec NetworkSpec) (networkID string, err error)
	RemoveNetwork(networkID string) error

	// Image operations
	BuildImage(opts BuildOptions) error
	PruneImages() (*PruneReport, error)

	// Health operations
	Ping() error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged = "com.convoy.managed"
	LabelImage   = "com.convoy.image"
)
