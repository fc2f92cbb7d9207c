package azureml

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
)

var _ cloud.Provider = (*Client)(nil)

// Client manages the connection and service clients for Azure ML workspace interactions.
// It wraps the ARM clients with retry logic for reads and deletes.
type Client struct {
	SubscriptionID string
	ResourceGroup  string
	Workspace      string

	// RetryConfig defines the behavior for transient error handling on reads and deletes
	RetryConfig cloud.RetryConfig

	// Credential overrides DefaultAzureCredential when set.
	Credential azcore.TokenCredential

	// Internal service clients
	endpoints   *armmachinelearning.OnlineEndpointsClient
	deployments *armmachinelearning.OnlineDeploymentsClient
	workspaces  *armmachinelearning.WorkspacesClient

	// location of the workspace, used when a spec has none
	location string
}

// executeWithRetry is a helper to run any operation using the client's retry configuration.
func (c *Client) executeWithRetry(ctx context.Context, opName string, operation func(ctx context.Context) error) error {
	return ExecuteAction(ctx, c.RetryConfig, opName, operation)
}

// GetCloudProviderName returns the identifier for this provider.
func (c *Client) GetCloudProviderName() string {
	return "azureml"
}

// Location returns the workspace location discovered by NewClient.
func (c *Client) Location() string {
	return c.location
}

// NewClient authenticates, builds the ARM clients and verifies that the
// workspace is reachable by reading it (with retry logic).
func (c *Client) NewClient(ctx context.Context) error {
	slog.Debug("Initializing Azure ML client",
		"subscription", c.SubscriptionID,
		"resource_group", c.ResourceGroup,
		"workspace", c.Workspace)

	// 1. Credentials
	credential := c.Credential
	if credential == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return fmt.Errorf("failed to build default Azure credential: %w", err)
		}
		credential = cred
	}

	// 2. Service clients
	factory, err := armmachinelearning.NewClientFactory(c.SubscriptionID, credential, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize Azure ML client factory: %w", err)
	}
	c.endpoints = factory.NewOnlineEndpointsClient()
	c.deployments = factory.NewOnlineDeploymentsClient()
	c.workspaces = factory.NewWorkspacesClient()

	// 3. Connectivity check: the workspace must exist and be readable
	checkOperation := func(innerCtx context.Context) error {
		ws, err := c.workspaces.Get(innerCtx, c.ResourceGroup, c.Workspace, nil)
		if err != nil {
			return err
		}
		c.location = deref(ws.Location)
		return nil
	}

	if err := c.executeWithRetry(ctx, "GetWorkspace", checkOperation); err != nil {
		return fmt.Errorf("workspace '%s' in resource group '%s' is not reachable: %w", c.Workspace, c.ResourceGroup, err)
	}

	slog.Debug("Azure ML workspace reachable", "workspace", c.Workspace, "location", c.location)
	return nil
}
