package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/workflow"
)

// Flags for names sub-commands
var (
	nameKind      string
	nameBase      string
	nameMaxLength int
	nameCount     int
)

var namesCommand = &cobra.Command{
	Use:     "names",
	Short:   "Generate or validate endpoint and deployment names",
	Long:    `Offline helpers around the naming rules used by the deploy workflow. No cloud access is needed.`,
	GroupID: "endpointsentry",
}

var namesGenerateCommand = &cobra.Command{
	Use:   "generate",
	Short: "Print unique candidate names for a base",
	Long:  `Generates names of the form {base}-{timestamp}-{token} that satisfy the Azure ML naming rules, shrinking or abbreviating the base when it does not fit the maximum length.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := workflow.ParseKind(nameKind)
		if err != nil {
			return err
		}
		for _, name := range workflow.GenerateNames(&naming.Generator{}, kind, nameBase, nameMaxLength, nameCount) {
			fmt.Println(name)
		}
		return nil
	},
}

var namesValidateCommand = &cobra.Command{
	Use:   "validate NAME...",
	Short: "Check names against the Azure ML naming rules",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := workflow.ParseKind(nameKind)
		if err != nil {
			return err
		}

		checks, err := workflow.ValidateNames(kind, args)
		for _, check := range checks {
			if check.Err != nil {
				fmt.Println(invalidStyle.Render(fmt.Sprintf("✗ %s: %v", check.Name, check.Err)))
				continue
			}
			fmt.Printf("✓ %s\n", check.Name)
		}
		if err != nil {
			return fmt.Errorf("%d of %d names are invalid", countInvalid(checks), len(checks))
		}
		return nil
	},
}

func countInvalid(checks []workflow.NameCheck) int {
	n := 0
	for _, check := range checks {
		if check.Err != nil {
			n++
		}
	}
	return n
}

func init() {
	rootCommand.AddCommand(namesCommand)
	namesCommand.AddCommand(namesGenerateCommand)
	namesCommand.AddCommand(namesValidateCommand)

	namesCommand.PersistentFlags().StringVar(&nameKind, "kind", string(naming.KindEndpoint), "Resource kind (endpoint, deployment)")

	namesGenerateCommand.Flags().StringVar(&nameBase, "base", naming.DefaultEndpointBase, "Base name")
	namesGenerateCommand.Flags().IntVar(&nameMaxLength, "max-length", naming.MaxNameLength, "Maximum name length (3-32)")
	namesGenerateCommand.Flags().IntVar(&nameCount, "count", 1, "Number of names to generate")
}
