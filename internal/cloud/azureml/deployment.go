package azureml

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
)

// defaultSKU is the SKU name managed online deployments are billed under.
const defaultSKU = "Default"

// CreateDeployment creates (or updates) a managed online deployment behind an
// existing endpoint and waits for it to finish provisioning (image build,
// compute allocation, readiness probes). Errors are classified like CreateEndpoint.
func (c *Client) CreateDeployment(ctx context.Context, spec cloud.DeploymentSpec) (cloud.Deployment, error) {
	body, err := c.deploymentBody(spec)
	if err != nil {
		// A malformed reference cannot be fixed by retrying.
		return cloud.Deployment{}, err
	}

	// 1. Trigger Creation
	poller, err := c.deployments.BeginCreateOrUpdate(ctx, c.ResourceGroup, c.Workspace, spec.EndpointName, spec.Name, body, nil)
	if err != nil {
		return cloud.Deployment{}, classifyDeploymentError(fmt.Errorf("deployment %q create request: %w", spec.Name, err))
	}

	// 2. Wait for Completion
	resp, err := poller.PollUntilDone(ctx, &runtime.PollUntilDoneOptions{Frequency: pollFrequency})
	if err != nil {
		return cloud.Deployment{}, classifyDeploymentError(fmt.Errorf("deployment %q provisioning: %w", spec.Name, err))
	}

	deployment := deploymentFromSDK(spec.EndpointName, &resp.OnlineDeployment)
	if deployment.ProvisioningState == cloud.StateFailed {
		return deployment, retry.Transient("deployment failed",
			fmt.Errorf("deployment %q on endpoint %q: deployment failed", spec.Name, spec.EndpointName))
	}

	return deployment, nil
}

// DeleteDeployment removes a deployment from an endpoint and waits for completion.
func (c *Client) DeleteDeployment(ctx context.Context, endpointName, name string) error {
	deleteOperation := func(innerCtx context.Context) error {
		poller, err := c.deployments.BeginDelete(innerCtx, c.ResourceGroup, c.Workspace, endpointName, name, nil)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("deployment %q on endpoint %q: %w", name, endpointName, cloud.ErrNotFound)
			}
			return err
		}
		_, err = poller.PollUntilDone(innerCtx, &runtime.PollUntilDoneOptions{Frequency: pollFrequency})
		return err
	}

	return c.executeWithRetry(ctx, "DeleteOnlineDeployment", deleteOperation)
}

// deploymentBody builds the ARM request body, expanding asset references.
func (c *Client) deploymentBody(spec cloud.DeploymentSpec) (armmachinelearning.OnlineDeployment, error) {
	modelID, err := AssetID(c.SubscriptionID, c.ResourceGroup, c.Workspace, "models", spec.Model)
	if err != nil {
		return armmachinelearning.OnlineDeployment{}, err
	}

	props := &armmachinelearning.ManagedOnlineDeployment{
		EndpointComputeType: to.Ptr(armmachinelearning.EndpointComputeTypeManaged),
		Model:               to.Ptr(modelID),
		InstanceType:        to.Ptr(spec.InstanceType),
	}

	if spec.Environment != "" {
		envID, err := AssetID(c.SubscriptionID, c.ResourceGroup, c.Workspace, "environments", spec.Environment)
		if err != nil {
			return armmachinelearning.OnlineDeployment{}, err
		}
		props.EnvironmentID = to.Ptr(envID)
	}

	if spec.ScoringScript != "" {
		codeConfig := &armmachinelearning.CodeConfiguration{ScoringScript: to.Ptr(spec.ScoringScript)}
		if spec.Code != "" {
			codeID, err := AssetID(c.SubscriptionID, c.ResourceGroup, c.Workspace, "codes", spec.Code)
			if err != nil {
				return armmachinelearning.OnlineDeployment{}, err
			}
			codeConfig.CodeID = to.Ptr(codeID)
		}
		props.CodeConfiguration = codeConfig
	}

	location := spec.Location
	if location == "" {
		location = c.location
	}

	return armmachinelearning.OnlineDeployment{
		Location:   to.Ptr(location),
		Properties: props,
		SKU: &armmachinelearning.SKU{
			Name:     to.Ptr(defaultSKU),
			Capacity: to.Ptr(max(spec.InstanceCount, 1)),
		},
		Tags: toPtrMap(spec.Tags),
	}, nil
}
