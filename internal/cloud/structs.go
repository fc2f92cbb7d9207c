package cloud

import (
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned (wrapped) by providers when a named resource does not exist.
var ErrNotFound = errors.New("resource not found")

// RetryConfig defines the parameters for the exponential backoff and retry mechanism
// used on read and delete calls against the cloud API.
// Creation calls are retried by the retry package instead, under new names.
type RetryConfig struct {
	// MaxRetries is the maximum number of additional attempts after the initial failure.
	// For example, if MaxRetries is 3, the operation runs at most 4 times (1 initial + 3 retries).
	MaxRetries int

	// BaseDelay is the initial wait time before the first retry.
	// This duration increases exponentially with each attempt (BaseDelay * 2^attempt).
	BaseDelay time.Duration

	// MaxDelay is the hard limit for the sleep duration between retries.
	MaxDelay time.Duration

	// OperationTimeout is the total time limit for the entire operation, including all retries.
	OperationTimeout time.Duration
}

// Auth modes accepted by managed online endpoints.
const (
	AuthModeKey      = "key"
	AuthModeAMLToken = "aml_token"
)

// EndpointSpec is the desired state of a managed online endpoint.
// It is a value: WithName returns a modified copy.
type EndpointSpec struct {
	Name        string
	Location    string
	AuthMode    string
	Description string
	Tags        map[string]string
}

func (s EndpointSpec) ResourceName() string { return s.Name }

func (s EndpointSpec) WithName(name string) EndpointSpec {
	s.Name = name
	s.Tags = maps.Clone(s.Tags)
	return s
}

// DeploymentSpec is the desired state of a managed online deployment.
type DeploymentSpec struct {
	Name         string
	EndpointName string
	Location     string

	// Model, Environment and Code accept "name:version", "azureml:name:version"
	// or a full resource ID.
	Model         string
	Environment   string
	Code          string
	ScoringScript string

	InstanceType  string
	InstanceCount int32
	Tags          map[string]string
}

func (s DeploymentSpec) ResourceName() string { return s.Name }

func (s DeploymentSpec) WithName(name string) DeploymentSpec {
	s.Name = name
	s.Tags = maps.Clone(s.Tags)
	return s
}

// Endpoint is the provider's view of an endpoint after a call returned.
type Endpoint struct {
	ID                string
	Name              string
	Location          string
	AuthMode          string
	ScoringURI        string
	SwaggerURI        string
	ProvisioningState string
	Traffic           map[string]int32
	Tags              map[string]string
	CreatedAt         time.Time
}

// Deployment is the provider's view of a deployment after a call returned.
type Deployment struct {
	ID                string
	Name              string
	EndpointName      string
	Model             string
	InstanceType      string
	InstanceCount     int32
	ProvisioningState string
	Tags              map[string]string
}

// EndpointKeys are the auth keys of a key-authenticated endpoint.
type EndpointKeys struct {
	Primary   string
	Secondary string
}

// Provisioning states reported for endpoints and deployments.
const (
	StateSucceeded = "Succeeded"
	StateFailed    = "Failed"
	StateCanceled  = "Canceled"
	StateCreating  = "Creating"
	StateDeleting  = "Deleting"
	StateUpdating  = "Updating"
)
