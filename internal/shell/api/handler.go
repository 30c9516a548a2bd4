// Package api provides HTTP handlers for the convoy API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mkravets/convoy/internal/core/deployment"
	"github.com/mkravets/convoy/internal/shell/docker"
	"github.com/mkravets/convoy/internal/shell/store"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Deployer runs a deployment to completion.
type Deployer interface {
	Deploy(ctx context.Context, spec deployment.Spec) (*docker.Result, error)
}

// Pinger reports whether the Docker daemon is reachable.
type Pinger interface {
	Ping() error
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	docker   Pinger
	deployer Deployer
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d Pinger, dep Deployer, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:    s,
		docker:   d,
		deployer: dep,
		logger:   l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoint
	r.Get("/healthz", h.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleCreateDeployment)
			r.Get("/", h.handleListDeployments)
			r.Get("/{id}", h.handleGetDeployment)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handler
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Store reachability is implicit: the handler is only wired up after
	// the store opened and migrated.
	checks["database"] = "ok"

	if err := h.docker.Ping(); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var spec deployment.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if err := spec.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
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
	if err := h.store.CreateRecord(r.Context(), record); err != nil {
		h.logger.Error("failed to create deployment record", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create deployment record", "internal_error")
		return
	}

	result, err := h.deployer.Deploy(r.Context(), spec)
	finishedAt := time.Now().UTC()

	if err != nil {
		h.logger.Error("deployment failed",
			"deployment_id", record.ID,
			"container", spec.ContainerName,
			"error", err,
		)
		if ferr := h.store.FinishRecord(r.Context(), record.ID, store.StatusFailed, "", err.Error(), finishedAt); ferr != nil {
			h.logger.Error("failed to finish deployment record", "deployment_id", record.ID, "error", ferr)
		}
		h.writeError(w, http.StatusBadGateway, err.Error(), "deploy_failed")
		return
	}

	if ferr := h.store.FinishRecord(r.Context(), record.ID, store.StatusRunning, result.ContainerID, "", finishedAt); ferr != nil {
		h.logger.Error("failed to finish deployment record", "deployment_id", record.ID, "error", ferr)
	}

	record.Status = store.StatusRunning
	record.ContainerID = result.ContainerID
	record.FinishedAt = &finishedAt

	h.writeJSON(w, http.StatusCreated, recordToResponse(record))
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to get deployment record", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, recordToResponse(record))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	var opts store.ListOptions

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}

	records, err := h.store.ListRecords(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list deployment records", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := DeploymentListResponse{
		Deployments: make([]DeploymentResponse, 0, len(records)),
		Count:       len(records),
	}
	for i := range records {
		resp.Deployments = append(resp.Deployments, recordToResponse(&records[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func recordToResponse(r *store.Record) DeploymentResponse {
	resp := DeploymentResponse{
		ID:              r.ID,
		Image:           r.Image,
		Tag:             r.Tag,
		ContainerName:   r.ContainerName,
		NetworkName:     r.NetworkName,
		HostBindAddress: r.HostBindAddress,
		HostPort:        r.HostPort,
		ContainerPort:   r.ContainerPort,
		Status:          string(r.Status),
		ContainerID:     r.ContainerID,
		Error:           r.Error,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
