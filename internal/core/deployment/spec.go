// Package deployment defines the declarative deployment spec and its
// validation rules.
package deployment

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

// =============================================================================
// Validation Errors
// =============================================================================

var (
	ErrMissingImage      = errors.New("image is required")
	ErrMissingTag        = errors.New("tag is required")
	ErrMissingContainer  = errors.New("container name is required")
	ErrMissingNetwork    = errors.New("network name is required")
	ErrMissingContext    = errors.New("build context directory is required")
	ErrInvalidName       = errors.New("name contains invalid characters")
	ErrInvalidPort       = errors.New("port must be between 1 and 65535")
	ErrInvalidBindAddr   = errors.New("host bind address is not a valid IP")
)

// DefaultPlatform is the build target a manifest falls back to when it
// does not name one. An empty Platform on a directly constructed Spec
// means the daemon's native platform.
const DefaultPlatform = "linux/amd64"

// namePattern matches valid Docker container/network names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// =============================================================================
// Spec
// =============================================================================

// Spec declares the desired state of a single-container deployment.
// A Spec is a value type: construct it once, never mutate it.
type Spec struct {
	Image           string `yaml:"image" json:"image"`
	Tag             string `yaml:"tag" json:"tag"`
	ContainerName   string `yaml:"container_name" json:"container_name"`
	NetworkName     string `yaml:"network_name" json:"network_name"`
	HostBindAddress string `yaml:"host_bind_address" json:"host_bind_address"`
	HostPort        int    `yaml:"host_port" json:"host_port"`
	ContainerPort   int    `yaml:"container_port" json:"container_port"`

	// ContextDir is the Docker build context on the daemon host.
	ContextDir string `yaml:"context_dir" json:"context_dir"`

	// Platform is the build target architecture, e.g. "linux/amd64".
	Platform string `yaml:"platform,omitempty" json:"platform,omitempty"`
}

// ImageRef returns the fully tagged image reference.
func (s Spec) ImageRef() string {
	return fmt.Sprintf("%s:%s", s.Image, s.Tag)
}

// Validate checks that the spec is complete and well-formed.
func (s Spec) Validate() error {
	if s.Image == "" {
		return ErrMissingImage
	}
	if s.Tag == "" {
		return ErrMissingTag
	}
	if s.ContainerName == "" {
		return ErrMissingContainer
	}
	if s.NetworkName == "" {
		return ErrMissingNetwork
	}
	if s.ContextDir == "" {
		return ErrMissingContext
	}
	if !namePattern.MatchString(s.ContainerName) {
		return fmt.Errorf("container name %q: %w", s.ContainerName, ErrInvalidName)
	}
	if !namePattern.MatchString(s.NetworkName) {
		return fmt.Errorf("network name %q: %w", s.NetworkName, ErrInvalidName)
	}
	if s.HostPort < 1 || s.HostPort > 65535 {
		return fmt.Errorf("host port %d: %w", s.HostPort, ErrInvalidPort)
	}
	if s.ContainerPort < 1 || s.ContainerPort > 65535 {
		return fmt.Errorf("container port %d: %w", s.ContainerPort, ErrInvalidPort)
	}
	if s.HostBindAddress != "" && net.ParseIP(s.HostBindAddress) == nil {
		return fmt.Errorf("bind address %q: %w", s.HostBindAddress, ErrInvalidBindAddr)
	}
	return nil
}
