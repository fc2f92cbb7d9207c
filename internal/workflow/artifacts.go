package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RegistrationInfo is written by the model registration step and names the
// model version to deploy.
type RegistrationInfo struct {
	ModelName    string `yaml:"model_name"`
	ModelVersion string `yaml:"model_version"`
}

// ModelRef returns the "name:version" reference understood by the provider.
func (r RegistrationInfo) ModelRef() string {
	return r.ModelName + ":" + r.ModelVersion
}

// LoadRegistrationInfo reads and checks registration_info.yaml.
func LoadRegistrationInfo(path string) (RegistrationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RegistrationInfo{}, fmt.Errorf("reading registration info: %w", err)
	}

	var info RegistrationInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return RegistrationInfo{}, fmt.Errorf("parsing registration info %s: %w", path, err)
	}

	if info.ModelName == "" || info.ModelVersion == "" {
		return RegistrationInfo{}, errors.New("registration info must set model_name and model_version")
	}
	return info, nil
}

// ResourceNames pairs the configured base name with the name actually created.
type ResourceNames struct {
	EndpointName   string `yaml:"endpoint_name"`
	DeploymentName string `yaml:"deployment_name"`
}

// EndpointDetails is the read-back state of the endpoint after traffic was set.
type EndpointDetails struct {
	ScoringURI        string            `yaml:"scoring_uri"`
	SwaggerURI        string            `yaml:"swagger_uri,omitempty"`
	AuthMode          string            `yaml:"auth_mode"`
	Location          string            `yaml:"location,omitempty"`
	Traffic           map[string]int32  `yaml:"traffic"`
	ProvisioningState string            `yaml:"provisioning_state"`
	Tags              map[string]string `yaml:"tags,omitempty"`
}

// EndpointInfo is the deploy run summary written to endpoint_info.yaml.
type EndpointInfo struct {
	DeploymentType  string          `yaml:"deployment_type"`
	NamingStrategy  string          `yaml:"naming_strategy"`
	RunID           string          `yaml:"run_id"`
	Model           string          `yaml:"model"`
	OriginalNames   ResourceNames   `yaml:"original_names"`
	ActualNames     ResourceNames   `yaml:"actual_names"`
	EndpointDetails EndpointDetails `yaml:"endpoint_details"`
	// Attempts counts create attempts per resource kind.
	Attempts map[string]int `yaml:"attempts"`
	Created  time.Time      `yaml:"created"`
}

// WriteEndpointInfo writes info as YAML, creating the parent directory.
func WriteEndpointInfo(path string, info EndpointInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding endpoint info: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing endpoint info %s: %w", path, err)
	}
	return nil
}

// ReadEndpointInfo reads a file written by WriteEndpointInfo.
func ReadEndpointInfo(path string) (EndpointInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EndpointInfo{}, err
	}

	var info EndpointInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return EndpointInfo{}, fmt.Errorf("parsing endpoint info %s: %w", path, err)
	}
	return info, nil
}
