package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
)

// fakeProvider is an in-memory cloud.Provider. Scripted create errors are
// consumed in order; once exhausted, creates succeed.
type fakeProvider struct {
	mu sync.Mutex

	endpoints   map[string]cloud.Endpoint
	deployments map[string]cloud.Deployment

	endpointErrs   []error
	deploymentErrs []error
	trafficErr     error
	keysErr        error
	deleteErrs     map[string]error
	getErrs        map[string]error

	createdEndpoints   []string
	createdDeployments []string
	deletedEndpoints   []string
	deletedDeployments []string
	getCalls           []string

	scoringURI string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		endpoints:   map[string]cloud.Endpoint{},
		deployments: map[string]cloud.Deployment{},
		deleteErrs:  map[string]error{},
		getErrs:     map[string]error{},
		scoringURI:  "https://scoring.invalid/score",
	}
}

func (f *fakeProvider) GetCloudProviderName() string { return "fake" }

func (f *fakeProvider) CreateEndpoint(_ context.Context, spec cloud.EndpointSpec) (cloud.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createdEndpoints = append(f.createdEndpoints, spec.Name)
	if len(f.endpointErrs) > 0 {
		err := f.endpointErrs[0]
		f.endpointErrs = f.endpointErrs[1:]
		if err != nil {
			// A failed attempt may leave a broken resource behind.
			f.endpoints[spec.Name] = cloud.Endpoint{Name: spec.Name, ProvisioningState: cloud.StateFailed, Tags: maps.Clone(spec.Tags)}
			return cloud.Endpoint{}, err
		}
	}

	endpoint := cloud.Endpoint{
		ID:                "/endpoints/" + spec.Name,
		Name:              spec.Name,
		Location:          spec.Location,
		AuthMode:          spec.AuthMode,
		ScoringURI:        f.scoringURI,
		ProvisioningState: cloud.StateSucceeded,
		Tags:              maps.Clone(spec.Tags),
	}
	f.endpoints[spec.Name] = endpoint
	return endpoint, nil
}

func (f *fakeProvider) GetEndpoint(_ context.Context, name string) (cloud.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls = append(f.getCalls, name)
	if err := f.getErrs[name]; err != nil {
		return cloud.Endpoint{}, err
	}
	endpoint, ok := f.endpoints[name]
	if !ok {
		return cloud.Endpoint{}, fmt.Errorf("endpoint %q: %w", name, cloud.ErrNotFound)
	}
	return endpoint, nil
}

func (f *fakeProvider) DeleteEndpoint(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedEndpoints = append(f.deletedEndpoints, name)
	if err := f.deleteErrs[name]; err != nil {
		return err
	}
	if _, ok := f.endpoints[name]; !ok {
		return fmt.Errorf("endpoint %q: %w", name, cloud.ErrNotFound)
	}
	delete(f.endpoints, name)
	return nil
}

func (f *fakeProvider) ListEndpoints(context.Context) ([]cloud.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]cloud.Endpoint, 0, len(f.endpoints))
	for _, name := range sortedKeys(f.endpoints) {
		out = append(out, f.endpoints[name])
	}
	return out, nil
}

func (f *fakeProvider) SetTraffic(_ context.Context, endpointName string, traffic map[string]int32) (cloud.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.trafficErr != nil {
		return cloud.Endpoint{}, f.trafficErr
	}
	endpoint, ok := f.endpoints[endpointName]
	if !ok {
		return cloud.Endpoint{}, fmt.Errorf("endpoint %q: %w", endpointName, cloud.ErrNotFound)
	}
	endpoint.Traffic = maps.Clone(traffic)
	f.endpoints[endpointName] = endpoint
	return endpoint, nil
}

func (f *fakeProvider) EndpointKeys(context.Context, string) (cloud.EndpointKeys, error) {
	if f.keysErr != nil {
		return cloud.EndpointKeys{}, f.keysErr
	}
	return cloud.EndpointKeys{Primary: "primary-key", Secondary: "secondary-key"}, nil
}

func (f *fakeProvider) CreateDeployment(_ context.Context, spec cloud.DeploymentSpec) (cloud.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createdDeployments = append(f.createdDeployments, spec.Name)
	if len(f.deploymentErrs) > 0 {
		err := f.deploymentErrs[0]
		f.deploymentErrs = f.deploymentErrs[1:]
		if err != nil {
			return cloud.Deployment{}, err
		}
	}

	deployment := cloud.Deployment{
		ID:                "/deployments/" + spec.Name,
		Name:              spec.Name,
		EndpointName:      spec.EndpointName,
		Model:             spec.Model,
		InstanceType:      spec.InstanceType,
		InstanceCount:     spec.InstanceCount,
		ProvisioningState: cloud.StateSucceeded,
		Tags:              maps.Clone(spec.Tags),
	}
	f.deployments[spec.EndpointName+"/"+spec.Name] = deployment
	return deployment, nil
}

func (f *fakeProvider) DeleteDeployment(_ context.Context, endpointName, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedDeployments = append(f.deletedDeployments, name)
	key := endpointName + "/" + name
	if _, ok := f.deployments[key]; !ok {
		return fmt.Errorf("deployment %q: %w", name, cloud.ErrNotFound)
	}
	delete(f.deployments, key)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
