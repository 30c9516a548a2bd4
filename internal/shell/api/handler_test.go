package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/convoy/internal/core/deployment"
	"github.com/mkravets/convoy/internal/shell/docker"
	"github.com/mkravets/convoy/internal/shell/store"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeDeployer struct {
	result   *docker.Result
	err      error
	gotSpec  deployment.Spec
	deployed int
}

func (f *fakeDeployer) Deploy(ctx context.Context, spec deployment.Spec) (*docker.Result, error) {
	f.deployed++
	f.gotSpec = spec
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping() error { return f.err }

func newTestHandler(t *testing.T, dep *fakeDeployer, ping *fakePinger) (*Handler, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "convoy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(s, ping, dep, logger), s
}

func deployBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	spec := deployment.Spec{
		Image:           "qa-service",
		Tag:             "1.0",
		ContainerName:   "qa-service",
		NetworkName:     "qa-net",
		HostBindAddress: "127.0.0.1",
		HostPort:        6500,
		ContainerPort:   6500,
		ContextDir:      ".",
	}
	body, err := json.Marshal(spec)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHandleHealth_OK(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDeployer{}, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checks["docker"])
}

func TestHandleHealth_DockerDown(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDeployer{}, &fakePinger{err: errors.New("daemon unreachable")})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// =============================================================================
// Create Deployment Tests
// =============================================================================

func TestHandleCreateDeployment_Success(t *testing.T) {
	dep := &fakeDeployer{result: &docker.Result{
		ContainerID: "abc123def456",
		ImageRef:    "qa-service:1.0",
		Duration:    2 * time.Second,
	}}
	h, s := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", deployBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, dep.deployed)
	assert.Equal(t, "qa-service", dep.gotSpec.Image)

	var body DeploymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body.Status)
	assert.Equal(t, "abc123def456", body.ContainerID)
	assert.NotEmpty(t, body.FinishedAt)

	// Record persisted with the final state.
	record, err := s.GetRecord(context.Background(), body.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, record.Status)
	assert.Equal(t, "abc123def456", record.ContainerID)
}

func TestHandleCreateDeployment_InvalidJSON(t *testing.T) {
	dep := &fakeDeployer{}
	h, _ := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, dep.deployed)
}

func TestHandleCreateDeployment_InvalidSpec(t *testing.T) {
	dep := &fakeDeployer{}
	h, _ := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", bytes.NewBufferString(`{"image":"qa-service"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, dep.deployed)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "validation_error", body.Code)
}

func TestHandleCreateDeployment_DeployFails(t *testing.T) {
	dep := &fakeDeployer{err: errors.New("build qa-service:1.0: image build failed")}
	h, s := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", deployBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "deploy_failed", body.Code)

	// The failure is recorded in history.
	records, err := s.ListRecords(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.StatusFailed, records[0].Status)
	assert.Contains(t, records[0].Error, "image build failed")
}

// =============================================================================
// Get / List Tests
// =============================================================================

func TestHandleGetDeployment_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDeployer{}, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/deployments/dep_missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetDeployment_Found(t *testing.T) {
	dep := &fakeDeployer{result: &docker.Result{ContainerID: "abc"}}
	h, _ := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", deployBody(t))
	require.NoError(t, err)
	var created DeploymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/deployments/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got DeploymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "qa-service", got.Image)
}

func TestHandleListDeployments(t *testing.T) {
	dep := &fakeDeployer{result: &docker.Result{ContainerID: "abc"}}
	h, _ := newTestHandler(t, dep, &fakePinger{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/v1/deployments", "application/json", deployBody(t))
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/v1/deployments")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list DeploymentListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Deployments, 2)
}
