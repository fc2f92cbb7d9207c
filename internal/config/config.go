// Package config loads the endpointsentry configuration file.
//
// Values come from a YAML file and can be overridden by ENDPOINTSENTRY_*
// environment variables (nested keys joined with "_", e.g.
// ENDPOINTSENTRY_DEPLOYMENT_REGION). The azure section additionally supports
// "${VAR}" placeholders that are resolved from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ENDPOINTSENTRY"

// ErrInvalidConfig is wrapped by every load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Azure      Azure      `mapstructure:"azure"`
	Deployment Deployment `mapstructure:"deployment"`
	Artifacts  Artifacts  `mapstructure:"artifacts"`
	Sweep      Sweep      `mapstructure:"sweep"`
}

// Azure identifies the workspace every resource is created in.
type Azure struct {
	SubscriptionID string `mapstructure:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group"`
	WorkspaceName  string `mapstructure:"workspace_name"`
}

// Deployment describes the endpoint and deployment to create.
type Deployment struct {
	// EndpointName and DeploymentName are base names; the created resources
	// get a timestamp and a random token appended.
	EndpointName   string `mapstructure:"endpoint_name"`
	DeploymentName string `mapstructure:"deployment_name"`

	// Region is the endpoint location. Empty means the workspace region.
	Region string `mapstructure:"region"`

	AuthMode      string            `mapstructure:"auth_mode"`
	Environment   string            `mapstructure:"environment"`
	Code          string            `mapstructure:"code"`
	ScoringScript string            `mapstructure:"scoring_script"`
	InstanceType  string            `mapstructure:"instance_type"`
	InstanceCount int32             `mapstructure:"instance_count"`
	Tags          map[string]string `mapstructure:"tags"`

	// NameCandidates bounds how many generated names are tried before giving
	// up because every one of them already exists.
	NameCandidates int `mapstructure:"name_candidates"`

	// SmokeTest sends a sample request to the scoring URI after deployment.
	SmokeTest bool `mapstructure:"smoke_test"`
}

// Artifacts are the files read and written by the deploy workflow.
type Artifacts struct {
	RegistrationInfoFile string `mapstructure:"registration_info_file"`
	EndpointInfoFile     string `mapstructure:"endpoint_info_file"`
	// MetricsFile, when set, receives the run's metrics in the Prometheus
	// text format (for node_exporter's textfile collector).
	MetricsFile string `mapstructure:"metrics_file"`
}

// Sweep controls cleanup of failed resources left behind by earlier runs.
type Sweep struct {
	// GracePeriod protects endpoints that may still be in use by a running deploy.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// Schedule is the cron expression used by the daemon.
	Schedule string `mapstructure:"schedule"`
	DryRun   bool   `mapstructure:"dry_run"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("azure.subscription_id", "")
	v.SetDefault("azure.resource_group", "")
	v.SetDefault("azure.workspace_name", "")

	v.SetDefault("deployment.endpoint_name", "purchase-predictor-endpoint")
	v.SetDefault("deployment.deployment_name", "purchase-predictor-deployment")
	v.SetDefault("deployment.region", "")
	v.SetDefault("deployment.auth_mode", cloud.AuthModeKey)
	v.SetDefault("deployment.environment", "")
	v.SetDefault("deployment.code", "")
	v.SetDefault("deployment.scoring_script", "score.py")
	v.SetDefault("deployment.instance_type", "Standard_DS2_v2")
	v.SetDefault("deployment.instance_count", 1)
	v.SetDefault("deployment.name_candidates", 5)
	v.SetDefault("deployment.smoke_test", false)

	v.SetDefault("artifacts.registration_info_file", "models/registration_info.yaml")
	v.SetDefault("artifacts.endpoint_info_file", "models/endpoint_info.yaml")
	v.SetDefault("artifacts.metrics_file", "")

	v.SetDefault("sweep.grace_period", 6*time.Hour)
	v.SetDefault("sweep.schedule", "0 * * * *")
	v.SetDefault("sweep.dry_run", false)
}

// Load reads the configuration file at path, applies environment overrides,
// expands placeholders and validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup for "${VAR}"
// placeholders. ENDPOINTSENTRY_* overrides are always read from the process
// environment.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decoding %s: %w", ErrInvalidConfig, path, err)
	}

	if err := cfg.expand(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// expand resolves "${VAR}" placeholders in the azure section. A placeholder
// must span the whole value and the variable must be set and non-empty.
func (c *Config) expand(lookup func(string) (string, bool)) error {
	fields := []*string{&c.Azure.SubscriptionID, &c.Azure.ResourceGroup, &c.Azure.WorkspaceName}
	for _, field := range fields {
		value := strings.TrimSpace(*field)
		if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
			continue
		}

		name := value[2 : len(value)-1]
		resolved, ok := lookup(name)
		if !ok || resolved == "" {
			return fmt.Errorf("%w: environment variable %s not found", ErrInvalidConfig, name)
		}
		*field = resolved
	}
	return nil
}

// Validate checks required fields and value ranges. All problems are
// reported together.
func (c Config) Validate() error {
	var errs []error

	required := []struct {
		key   string
		value string
	}{
		{"subscription_id", c.Azure.SubscriptionID},
		{"resource_group", c.Azure.ResourceGroup},
		{"workspace_name", c.Azure.WorkspaceName},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("required azure configuration field '%s' is missing or empty", field.key))
		}
	}

	if err := ValidateRegion(c.Deployment.Region); err != nil {
		errs = append(errs, err)
	}

	switch c.Deployment.AuthMode {
	case cloud.AuthModeKey, cloud.AuthModeAMLToken:
	default:
		errs = append(errs, fmt.Errorf("deployment auth_mode must be %q or %q, got %q",
			cloud.AuthModeKey, cloud.AuthModeAMLToken, c.Deployment.AuthMode))
	}

	if c.Deployment.InstanceCount < 1 {
		errs = append(errs, fmt.Errorf("deployment instance_count must be at least 1, got %d", c.Deployment.InstanceCount))
	}
	if c.Deployment.InstanceType == "" {
		errs = append(errs, errors.New("deployment instance_type is required"))
	}
	if c.Deployment.NameCandidates < 1 {
		errs = append(errs, fmt.Errorf("deployment name_candidates must be at least 1, got %d", c.Deployment.NameCandidates))
	}
	if c.Sweep.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("sweep grace_period cannot be negative, got %s", c.Sweep.GracePeriod))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, utilerrors.NewAggregate(errs))
}
