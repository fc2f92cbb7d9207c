package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/workflow"
)

var sweepDryRun bool

var sweepCommand = &cobra.Command{
	Use:     "sweep",
	GroupID: "endpointsentry",
	Short:   "Delete failed endpoints left behind by earlier runs",
	Long: `Lists the endpoints of the workspace and deletes those created by EndpointSentry whose
provisioning ended in Failed or Canceled and that are older than the configured grace period.
Endpoints without the EndpointSentry tags are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("EndpointSentry - Sweep Workflow"))
		return workflow.RunSweepWorkflow(configPath, timeout, logLevel, sweepDryRun, webhookFromFlags(), nil)
	},
}

func init() {
	rootCommand.AddCommand(sweepCommand)
	sweepCommand.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Only report what would be deleted")
}
