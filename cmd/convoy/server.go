package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mkravets/convoy/internal/core/deployment"
	"github.com/mkravets/convoy/internal/shell/api"
	"github.com/mkravets/convoy/internal/shell/docker"
	"github.com/mkravets/convoy/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
	ExitDeployError     = 5
)

// ServerError carries the exit code for a startup or runtime failure.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Server
// =============================================================================

// Server wires the store, the Docker client and the deployer together.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	docker     docker.Client
	deployer   *docker.Deployer
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Connect to Docker, through an SSH tunnel when configured
	d, err := newDockerClient(cfg)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	// Verify Docker connection
	if err := d.Ping(); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	return &Server{
		config:   cfg,
		store:    s,
		docker:   d,
		deployer: docker.NewDeployer(d, logger),
		logger:   logger,
	}, nil
}

// newDockerClient creates the Docker client from config.
func newDockerClient(cfg *Config) (docker.Client, error) {
	if cfg.Docker.SSH.Host == "" {
		return docker.NewDockerClient(cfg.Docker.Host)
	}

	key, err := os.ReadFile(cfg.Docker.SSH.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read SSH key file %s: %w", cfg.Docker.SSH.KeyFile, err)
	}

	return docker.NewSSHDockerClient(docker.SSHConfig{
		Host:         cfg.Docker.SSH.Host,
		Port:         cfg.Docker.SSH.Port,
		User:         cfg.Docker.SSH.User,
		PrivateKey:   key,
		RemoteSocket: cfg.Docker.SSH.RemoteSocket,
	})
}

// Close releases the server's resources.
func (s *Server) Close() {
	if s.docker != nil {
		s.docker.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// =============================================================================
// One-Shot Deploy
// =============================================================================

// RunDeploy loads the manifest, runs a single deployment and records it.
func (s *Server) RunDeploy(ctx context.Context, manifestPath string) error {
	spec, err := deployment.LoadSpec(manifestPath)
	if err != nil {
		return &ServerError{
			Op:       "RunDeploy",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}

	record := &store.Record{
		ID:              "dep_" + uuid.New().String()[:8],
		Image:           spec.Image,
		Tag:             spec.Tag,
		ContainerName:   spec.ContainerName,
		NetworkName:     spec.NetworkName,
		HostBindAddress: spec.HostBindAddress,
		HostPort:        spec.HostPort,
		ContainerPort:   spec.ContainerPort,
		Status:          store.StatusStarted,
		StartedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateRecord(ctx, record); err != nil {
		// History must not block the deployment itself.
		s.logger.Warn("failed to create deployment record", "error", err)
		record = nil
	}

	result, deployErr := s.deployer.Deploy(ctx, spec)
	finishedAt := time.Now().UTC()

	if record != nil {
		status, containerID, errMsg := store.StatusRunning, "", ""
		if deployErr != nil {
			status = store.StatusFailed
			errMsg = deployErr.Error()
		} else {
			containerID = result.ContainerID
		}
		if err := s.store.FinishRecord(ctx, record.ID, status, containerID, errMsg, finishedAt); err != nil {
			s.logger.Warn("failed to finish deployment record", "deployment_id", record.ID, "error", err)
		}
	}

	if deployErr != nil {
		return &ServerError{
			Op:       "RunDeploy",
			Err:      deployErr,
			ExitCode: ExitDeployError,
		}
	}
	return nil
}

// =============================================================================
// HTTP Server
// =============================================================================

// Start runs the HTTP API until the context is done or a signal arrives.
func (s *Server) Start(ctx context.Context) error {
	handler := api.NewHandler(s.store, s.docker, s.deployer, s.logger)

	s.httpServer = &http.Server{
		Addr:         s.config.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case sig := <-sigCh:
		s.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}

	return nil
}
