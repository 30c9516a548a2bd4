package docker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/docker/docker/client"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// SSH Tunnel
// =============================================================================

// SSHConfig configures the SSH tunnel to a remote Docker daemon.
type SSHConfig struct {
	Host           string
	Port           int // Default: 22
	User           string
	PrivateKey     []byte        // PEM-encoded private key
	RemoteSocket   string        // Default: /var/run/docker.sock
	ConnectTimeout time.Duration // Default: 10 seconds
}

func (c SSHConfig) withDefaults() SSHConfig {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.RemoteSocket == "" {
		c.RemoteSocket = "/var/run/docker.sock"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// NewSSHDockerClient creates a Docker client that reaches the remote
// daemon's unix socket through an SSH tunnel. The SSH connection is
// established eagerly so authentication failures surface at startup.
func NewSSHDockerClient(cfg SSHConfig) (*DockerClient, error) {
	cfg = cfg.withDefaults()

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: Store and verify host keys
		Timeout:         cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tunnel, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, NewDockerError("NewSSHDockerClient", "", "", fmt.Sprintf("SSH dial %s: %v", addr, err), ErrConnectionFailed)
	}

	cli, err := client.NewClientWithOpts(
		client.WithHost("unix://"+cfg.RemoteSocket),
		client.WithAPIVersionNegotiation(),
		client.WithDialContext(func(ctx context.Context, network, address string) (net.Conn, error) {
			return tunnel.Dial("unix", cfg.RemoteSocket)
		}),
	)
	if err != nil {
		tunnel.Close()
		return nil, NewDockerError("NewSSHDockerClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	return &DockerClient{cli: cli, tunnel: tunnel}, nil
}
