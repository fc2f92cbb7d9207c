package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/workflow"
)

var deployCommand = &cobra.Command{
	Use:     "deploy",
	GroupID: "endpointsentry",
	Short:   "Deploy the registered model to a new managed online endpoint",
	Long: `Creates a uniquely named managed online endpoint and deployment for the model named in
registration_info.yaml, routes all traffic to the deployment and writes endpoint_info.yaml.
Known transient provisioning failures are cleaned up and retried under a new name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("EndpointSentry - Deploy Workflow"))

		result, err := workflow.RunDeployWorkflow(configPath, timeout, logLevel, webhookFromFlags())
		if err != nil {
			return err
		}

		fmt.Println(summaryStyle.Render(fmt.Sprintf(
			"Endpoint:    %s\nDeployment:  %s\nScoring URI: %s\nAuth mode:   %s",
			result.Endpoint.Name,
			result.Deployment.Name,
			result.Endpoint.ScoringURI,
			result.Endpoint.AuthMode,
		)))
		return nil
	},
}

func webhookFromFlags() notifications.Webhook {
	return notifications.Webhook{
		URL:      webhookURL,
		Username: webhookUsername,
		Password: webhookPassword,
	}
}

func init() {
	rootCommand.AddCommand(deployCommand)
}
