package api

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DeploymentListResponse is the response for listing deployment records.
type DeploymentListResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Count       int                  `json:"count"`
}

// DeploymentResponse is the response for deployment operations.
type DeploymentResponse struct {
	ID              string `json:"id"`
	Image           string `json:"image"`
	Tag             string `json:"tag"`
	ContainerName   string `json:"container_name"`
	NetworkName     string `json:"network_name"`
	HostBindAddress string `json:"host_bind_address"`
	HostPort        int    `json:"host_port"`
	ContainerPort   int    `json:"container_port"`
	Status          string `json:"status"`
	ContainerID     string `json:"container_id,omitempty"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at,omitempty"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
