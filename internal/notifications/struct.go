package notifications

import "time"

type Webhook struct {
	URL      string
	Username string
	Password string
	// Timeout bounds a single delivery. Zero means 30 seconds.
	Timeout time.Duration
}

// DeploymentFailure is posted when a deploy run gives up.
type DeploymentFailure struct {
	Service string `json:"service"`
	RunID   string `json:"run_id"`
	// Stage is the step that failed, e.g. "create_endpoint".
	Stage          string `json:"stage"`
	Workspace      string `json:"workspace"`
	ResourceGroup  string `json:"resource_group"`
	EndpointName   string `json:"endpoint_name,omitempty"`
	DeploymentName string `json:"deployment_name,omitempty"`
	// Attempts is the number of create attempts made at the failing stage.
	Attempts int       `json:"attempts,omitempty"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// SweepFailure is posted when the sweep could not delete some endpoints.
type SweepFailure struct {
	Service   string    `json:"service"`
	Workspace string    `json:"workspace"`
	Endpoints []string  `json:"endpoints"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}
