package azureml

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
)

// pollFrequency is how often long running operations are polled.
const pollFrequency = 15 * time.Second

// CreateEndpoint creates (or updates) a managed online endpoint and waits for
// provisioning to finish.
//
// Behavior:
//   - Single shot: the call is not retried here. Failures are classified as
//     transient or fatal so retry.Create can decide whether to try again under
//     a new name.
//   - Synchronous Wait: blocks until the long running operation reaches a
//     terminal state or ctx is done.
//   - A terminal "Failed" state without an error from the poller is reported
//     as a transient "provisioning failed".
func (c *Client) CreateEndpoint(ctx context.Context, spec cloud.EndpointSpec) (cloud.Endpoint, error) {
	location := spec.Location
	if location == "" {
		location = c.location
	}

	body := armmachinelearning.OnlineEndpoint{
		Location: to.Ptr(location),
		Identity: &armmachinelearning.ManagedServiceIdentity{
			Type: to.Ptr(armmachinelearning.ManagedServiceIdentityTypeSystemAssigned),
		},
		Properties: &armmachinelearning.OnlineEndpointProperties{
			AuthMode:    to.Ptr(authModeToSDK(spec.AuthMode)),
			Description: to.Ptr(spec.Description),
		},
		Tags: toPtrMap(spec.Tags),
	}

	// 1. Trigger Creation
	poller, err := c.endpoints.BeginCreateOrUpdate(ctx, c.ResourceGroup, c.Workspace, spec.Name, body, nil)
	if err != nil {
		return cloud.Endpoint{}, classifyEndpointError(fmt.Errorf("endpoint %q create request: %w", spec.Name, err))
	}

	// 2. Wait for Completion
	resp, err := poller.PollUntilDone(ctx, &runtime.PollUntilDoneOptions{Frequency: pollFrequency})
	if err != nil {
		return cloud.Endpoint{}, classifyEndpointError(fmt.Errorf("endpoint %q provisioning: %w", spec.Name, err))
	}

	endpoint := endpointFromSDK(&resp.OnlineEndpoint)
	if endpoint.ProvisioningState == cloud.StateFailed {
		return endpoint, retry.Transient("provisioning failed",
			fmt.Errorf("endpoint %q provisioning failed", spec.Name))
	}

	return endpoint, nil
}

// GetEndpoint reads an endpoint. A missing endpoint yields an error wrapping cloud.ErrNotFound.
func (c *Client) GetEndpoint(ctx context.Context, name string) (cloud.Endpoint, error) {
	var endpoint cloud.Endpoint

	getOperation := func(innerCtx context.Context) error {
		resp, err := c.endpoints.Get(innerCtx, c.ResourceGroup, c.Workspace, name, nil)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("endpoint %q: %w", name, cloud.ErrNotFound)
			}
			return err
		}
		endpoint = endpointFromSDK(&resp.OnlineEndpoint)
		return nil
	}

	if err := c.executeWithRetry(ctx, "GetOnlineEndpoint", getOperation); err != nil {
		return cloud.Endpoint{}, err
	}
	return endpoint, nil
}

// DeleteEndpoint deletes an endpoint and every deployment behind it, waiting
// for the operation to complete. Deleting a missing endpoint returns an error
// wrapping cloud.ErrNotFound.
func (c *Client) DeleteEndpoint(ctx context.Context, name string) error {
	deleteOperation := func(innerCtx context.Context) error {
		poller, err := c.endpoints.BeginDelete(innerCtx, c.ResourceGroup, c.Workspace, name, nil)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("endpoint %q: %w", name, cloud.ErrNotFound)
			}
			return err
		}
		_, err = poller.PollUntilDone(innerCtx, &runtime.PollUntilDoneOptions{Frequency: pollFrequency})
		return err
	}

	return c.executeWithRetry(ctx, "DeleteOnlineEndpoint", deleteOperation)
}

// ListEndpoints returns every online endpoint in the workspace.
func (c *Client) ListEndpoints(ctx context.Context) ([]cloud.Endpoint, error) {
	var endpoints []cloud.Endpoint

	listOperation := func(innerCtx context.Context) error {
		endpoints = endpoints[:0]
		pager := c.endpoints.NewListPager(c.ResourceGroup, c.Workspace, nil)
		for pager.More() {
			page, err := pager.NextPage(innerCtx)
			if err != nil {
				return err
			}
			for _, e := range page.Value {
				endpoints = append(endpoints, endpointFromSDK(e))
			}
		}
		return nil
	}

	if err := c.executeWithRetry(ctx, "ListOnlineEndpoints", listOperation); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// SetTraffic replaces the endpoint's traffic split using a read-modify-write:
//  1. GET the endpoint.
//  2. Replace properties.traffic.
//  3. PUT it back and wait for the update to finish.
func (c *Client) SetTraffic(ctx context.Context, endpointName string, traffic map[string]int32) (cloud.Endpoint, error) {
	var updated cloud.Endpoint

	trafficOperation := func(innerCtx context.Context) error {
		current, err := c.endpoints.Get(innerCtx, c.ResourceGroup, c.Workspace, endpointName, nil)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("endpoint %q: %w", endpointName, cloud.ErrNotFound)
			}
			return err
		}

		body := current.OnlineEndpoint
		if body.Properties == nil {
			body.Properties = &armmachinelearning.OnlineEndpointProperties{}
		}
		body.Properties.Traffic = make(map[string]*int32, len(traffic))
		for deployment, percent := range maps.All(traffic) {
			body.Properties.Traffic[deployment] = to.Ptr(percent)
		}

		poller, err := c.endpoints.BeginCreateOrUpdate(innerCtx, c.ResourceGroup, c.Workspace, endpointName, body, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(innerCtx, &runtime.PollUntilDoneOptions{Frequency: pollFrequency})
		if err != nil {
			return err
		}
		updated = endpointFromSDK(&resp.OnlineEndpoint)
		return nil
	}

	if err := c.executeWithRetry(ctx, "SetOnlineEndpointTraffic", trafficOperation); err != nil {
		return cloud.Endpoint{}, err
	}
	return updated, nil
}

// EndpointKeys returns the auth keys of a key-authenticated endpoint.
func (c *Client) EndpointKeys(ctx context.Context, endpointName string) (cloud.EndpointKeys, error) {
	var keys cloud.EndpointKeys

	keysOperation := func(innerCtx context.Context) error {
		resp, err := c.endpoints.ListKeys(innerCtx, c.ResourceGroup, c.Workspace, endpointName, nil)
		if err != nil {
			return err
		}
		keys = cloud.EndpointKeys{
			Primary:   deref(resp.PrimaryKey),
			Secondary: deref(resp.SecondaryKey),
		}
		return nil
	}

	if err := c.executeWithRetry(ctx, "ListOnlineEndpointKeys", keysOperation); err != nil {
		return cloud.EndpointKeys{}, err
	}
	return keys, nil
}
