package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath, logLevel string
	timeout              int
	webhookURL           string
	webhookUsername      string
	webhookPassword      string
)

var rootCommand = &cobra.Command{
	Use:     "endpointsentry-go",
	Aliases: []string{"endpointsentry"},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags bound to viper may also come from ENDPOINTSENTRY_* variables.
		configPath = viper.GetString("config")
		logLevel = viper.GetString("log-level")
		timeout = viper.GetInt("timeout")
		webhookURL = viper.GetString("webhook-url")
		webhookUsername = viper.GetString("webhook-username")
		webhookPassword = viper.GetString("webhook-password")
		return nil
	},
	Short: "EndpointSentry: Azure ML online endpoint deployer",
	Long: `EndpointSentry deploys registered models to Azure ML managed online endpoints.
Every endpoint and deployment gets a unique, valid name; creation failures that are
known to be transient are cleaned up and retried under a fresh name, and failed
leftovers from earlier runs can be swept away on a schedule.

Author: Aravindh Murugesan`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCommand.Execute()
}

func init() {
	rootCommand.AddGroup(&cobra.Group{ID: "endpointsentry", Title: "EndpointSentry"})

	// Global Persistent Flags with env vars support
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	rootCommand.PersistentFlags().IntVar(&timeout, "timeout", 0, "Global execution timeout in seconds (0 = run indefinitely)")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCommand.PersistentFlags().StringVar(&webhookURL, "webhook-url", "", "Webhook URL for alerting")
	rootCommand.PersistentFlags().StringVar(&webhookUsername, "webhook-username", "", "Webhook username for alerting")
	rootCommand.PersistentFlags().StringVar(&webhookPassword, "webhook-password", "", "Webhook password for alerting")

	// Bind to env vars (ENDPOINTSENTRY_LOG_LEVEL, ENDPOINTSENTRY_WEBHOOK_URL, ...)
	for _, name := range []string{"config", "timeout", "log-level", "webhook-url", "webhook-username", "webhook-password"} {
		_ = viper.BindPFlag(name, rootCommand.PersistentFlags().Lookup(name))
	}

	viper.SetEnvPrefix("ENDPOINTSENTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
