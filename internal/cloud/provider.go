package cloud

import "context"

// Provider is the contract between the workflows and a managed inference platform.
//
// Create calls block until the platform reports a terminal provisioning state
// and return errors already classified for the retry package (transient vs fatal).
// Lookups of missing resources return an error wrapping ErrNotFound.
type Provider interface {
	// GetCloudProviderName returns the identifier for this provider.
	GetCloudProviderName() string

	CreateEndpoint(ctx context.Context, spec EndpointSpec) (Endpoint, error)
	GetEndpoint(ctx context.Context, name string) (Endpoint, error)
	DeleteEndpoint(ctx context.Context, name string) error
	ListEndpoints(ctx context.Context) ([]Endpoint, error)

	// SetTraffic replaces the traffic split of an endpoint (percent per deployment).
	SetTraffic(ctx context.Context, endpointName string, traffic map[string]int32) (Endpoint, error)
	EndpointKeys(ctx context.Context, endpointName string) (EndpointKeys, error)

	CreateDeployment(ctx context.Context, spec DeploymentSpec) (Deployment, error)
	DeleteDeployment(ctx context.Context, endpointName, name string) error
}
