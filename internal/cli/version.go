package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	EndpointsentryVersion, EndpointsentryCommit, EndpointsentryDate string
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Display version, commit hash, build date, and other build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("EndpointSentry version: %s\n", EndpointsentryVersion)
		fmt.Printf("Commit: %s\n", EndpointsentryCommit)
		fmt.Printf("Built: %s\n", EndpointsentryDate)
	},
}

func init() {
	rootCommand.AddCommand(versionCommand)
}
