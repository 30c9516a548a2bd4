// Package store persists deployment history.
package store

import (
	"context"
	"time"
)

// =============================================================================
// Record
// =============================================================================

// RecordStatus represents the outcome of a deployment attempt.
type RecordStatus string

const (
	StatusStarted RecordStatus = "started"
	StatusRunning RecordStatus = "running"
	StatusFailed  RecordStatus = "failed"
)

// Record is one deployment attempt.
type Record struct {
	ID              string       `json:"id"`
	Image           string       `json:"image"`
	Tag             string       `json:"tag"`
	ContainerName   string       `json:"container_name"`
	NetworkName     string       `json:"network_name"`
	HostBindAddress string       `json:"host_bind_address"`
	HostPort        int          `json:"host_port"`
	ContainerPort   int          `json:"container_port"`
	Status          RecordStatus `json:"status"`
	ContainerID     string       `json:"container_id,omitempty"`
	Error           string       `json:"error,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      *time.Time   `json:"finished_at,omitempty"`
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deployment history.
type Store interface {
	CreateRecord(ctx context.Context, record *Record) error
	FinishRecord(ctx context.Context, id string, status RecordStatus, containerID, errMsg string, finishedAt time.Time) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	ListRecords(ctx context.Context, opts ListOptions) ([]Record, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
