package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/config"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/metrics"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/tags"
)

// Deploy stages, reported in failure notifications.
const (
	StageLoad             = "load"
	StageConnect          = "connect"
	StageReserveEndpoint  = "reserve_endpoint_name"
	StageCreateEndpoint   = "create_endpoint"
	StageCreateDeployment = "create_deployment"
	StageSetTraffic       = "set_traffic"
	StageReadBack         = "read_back"
	StageWriteInfo        = "write_endpoint_info"
)

// DeployOptions carries everything one deploy run needs. Only Config and
// Provider are required.
type DeployOptions struct {
	Config   config.Config
	Provider cloud.Provider

	// Registration overrides reading Config.Artifacts.RegistrationInfoFile.
	Registration *RegistrationInfo

	Logger    *slog.Logger
	Generator *naming.Generator
	Observers []retry.Observer
	Metrics   *metrics.Metrics
	Webhook   *notifications.Webhook

	// HTTPClient is used by the smoke test.
	HTTPClient *http.Client

	// Sleep and Now are handed to the retry creators.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	// RunID defaults to a random UUID.
	RunID string
}

// DeployResult describes what a deploy run created.
type DeployResult struct {
	RunID      string
	Endpoint   cloud.Endpoint
	Deployment cloud.Deployment
	Info       EndpointInfo
	// Attempts holds every create attempt, in order.
	Attempts []retry.Attempt
	// SmokeTestErr is set when the optional smoke test failed. It never fails the run.
	SmokeTestErr error
}

// StageError reports which deploy stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (o *DeployOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *DeployOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *DeployOptions) creator(policy retry.Policy, recorder *retry.Recorder, logger *slog.Logger) *retry.Creator {
	observers := []retry.Observer{retry.LogObserver{Logger: logger}, recorder}
	if o.Metrics != nil {
		observers = append(observers, o.Metrics)
	}
	observers = append(observers, o.Observers...)

	c := retry.NewCreator(policy, observers...)
	c.Sleep = o.Sleep
	c.Now = o.Now
	return c
}

// Deploy creates a uniquely named managed online endpoint and deployment,
// routes all traffic to the deployment and records the outcome.
//
// Workflow:
//  1. Validation: checks the configuration (including the target region) and loads the registration info.
//  2. Endpoint: reserves a free name (pre-flight existence check) and creates it with retries.
//  3. Deployment: generates a name and creates it behind the endpoint with retries.
//  4. Traffic: routes 100% of the traffic to the new deployment.
//  5. Read-back: reads the endpoint again and writes endpoint_info.yaml.
//  6. Smoke test (optional): sends a sample request. Failures are only logged.
//
// Any failure is reported to the webhook (when configured) and returned as a *StageError.
func Deploy(ctx context.Context, opts DeployOptions) (DeployResult, error) {
	cfg := opts.Config
	provider := opts.Provider

	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Generator == nil {
		opts.Generator = &naming.Generator{Now: opts.Now}
	}

	logger := opts.logger().With("workflow", "deploy", "run_id", opts.RunID)
	recorder := &retry.Recorder{}
	result := DeployResult{RunID: opts.RunID}
	started := opts.now()

	fail := func(stage string, err error) (DeployResult, error) {
		result.Attempts = recorder.Attempts()
		logger.Error("Deploy workflow failed", "stage", stage, "error", err)
		opts.notifyFailure(ctx, stage, result, recorder, err, logger)
		if opts.Metrics != nil {
			opts.Metrics.RecordRun(ctx, "failure")
		}
		return result, &StageError{Stage: stage, Err: err}
	}

	// 1. Validation
	if err := cfg.Validate(); err != nil {
		return fail(StageLoad, err)
	}

	registration, err := opts.registration()
	if err != nil {
		return fail(StageLoad, err)
	}

	region := config.NormalizeRegion(cfg.Deployment.Region)
	logger.Info("Initializing deploy workflow",
		"provider", provider.GetCloudProviderName(),
		"model", registration.ModelRef(),
		"region", regionOrWorkspace(region))

	// 2. Endpoint
	endpointBase := cfg.Deployment.EndpointName
	if endpointBase == "" {
		endpointBase = naming.DefaultEndpointBase
	}

	endpointName, err := opts.Generator.Reserve(ctx, naming.KindEndpoint, endpointBase,
		naming.MaxNameLength, cfg.Deployment.NameCandidates, endpointTaken(provider))
	if err != nil {
		return fail(StageReserveEndpoint, err)
	}

	endpointSpec := cloud.EndpointSpec{
		Name:        endpointName,
		Location:    region,
		AuthMode:    cfg.Deployment.AuthMode,
		Description: fmt.Sprintf("Managed online endpoint for model %s", registration.ModelRef()),
		Tags: tags.Managed{
			Managed:  true,
			Kind:     string(naming.KindEndpoint),
			RunID:    opts.RunID,
			Created:  started,
			BaseName: endpointBase,
		}.ToAzureTags(cfg.Deployment.Tags),
	}

	endpointLogger := logger.With("base_endpoint_name", endpointBase)
	endpointLogger.Info("Creating endpoint", "endpoint_name", endpointName)

	endpoint, endpointSpec, err := retry.Create(ctx,
		opts.creator(retry.EndpointPolicy(opts.Generator), recorder, endpointLogger),
		endpointSpec,
		provider.CreateEndpoint,
		func(ctx context.Context, name string) error {
			return ignoreNotFound(provider.DeleteEndpoint(ctx, name))
		})
	if err != nil {
		return fail(StageCreateEndpoint, err)
	}
	result.Endpoint = endpoint
	if result.Endpoint.Name == "" {
		result.Endpoint.Name = endpointSpec.Name
	}

	// 3. Deployment
	deploymentBaseName := deploymentBase(cfg.Deployment.DeploymentName)
	deploymentName, err := opts.Generator.Reserve(ctx, naming.KindDeployment, deploymentBaseName,
		naming.MaxNameLength, cfg.Deployment.NameCandidates, nil)
	if err != nil {
		return fail(StageCreateDeployment, err)
	}

	deploymentTags := tags.Managed{
		Managed:  true,
		Kind:     string(naming.KindDeployment),
		RunID:    opts.RunID,
		Created:  started,
		BaseName: cfg.Deployment.DeploymentName,
	}.ToAzureTags(cfg.Deployment.Tags)
	deploymentTags["model_name"] = registration.ModelName
	deploymentTags["model_version"] = registration.ModelVersion

	deploymentSpec := cloud.DeploymentSpec{
		Name:          deploymentName,
		EndpointName:  result.Endpoint.Name,
		Location:      region,
		Model:         registration.ModelRef(),
		Environment:   cfg.Deployment.Environment,
		Code:          cfg.Deployment.Code,
		ScoringScript: cfg.Deployment.ScoringScript,
		InstanceType:  cfg.Deployment.InstanceType,
		InstanceCount: cfg.Deployment.InstanceCount,
		Tags:          deploymentTags,
	}

	deploymentLogger := logger.With("endpoint_name", result.Endpoint.Name, "base_deployment_name", deploymentBaseName)
	deploymentLogger.Info("Creating deployment",
		"deployment_name", deploymentName,
		"instance_type", deploymentSpec.InstanceType,
		"instance_count", deploymentSpec.InstanceCount)

	deployment, deploymentSpec, err := retry.Create(ctx,
		opts.creator(retry.DeploymentPolicy(opts.Generator), recorder, deploymentLogger),
		deploymentSpec,
		provider.CreateDeployment,
		func(ctx context.Context, name string) error {
			return ignoreNotFound(provider.DeleteDeployment(ctx, result.Endpoint.Name, name))
		})
	if err != nil {
		return fail(StageCreateDeployment, err)
	}
	result.Deployment = deployment
	if result.Deployment.Name == "" {
		result.Deployment.Name = deploymentSpec.Name
	}

	// 4. Traffic
	traffic := map[string]int32{result.Deployment.Name: 100}
	if _, err := provider.SetTraffic(ctx, result.Endpoint.Name, traffic); err != nil {
		return fail(StageSetTraffic, err)
	}
	logger.Info("Traffic routed to deployment",
		"endpoint_name", result.Endpoint.Name,
		"deployment_name", result.Deployment.Name,
		"percent", 100)

	// 5. Read-back
	endpoint, err = provider.GetEndpoint(ctx, result.Endpoint.Name)
	if err != nil {
		return fail(StageReadBack, err)
	}
	result.Endpoint = endpoint
	result.Attempts = recorder.Attempts()

	result.Info = EndpointInfo{
		DeploymentType: "managed_endpoint_unique",
		NamingStrategy: "unique_names_with_retry",
		RunID:          opts.RunID,
		Model:          registration.ModelRef(),
		OriginalNames: ResourceNames{
			EndpointName:   endpointBase,
			DeploymentName: cfg.Deployment.DeploymentName,
		},
		ActualNames: ResourceNames{
			EndpointName:   result.Endpoint.Name,
			DeploymentName: result.Deployment.Name,
		},
		EndpointDetails: EndpointDetails{
			ScoringURI:        endpoint.ScoringURI,
			SwaggerURI:        endpoint.SwaggerURI,
			AuthMode:          endpoint.AuthMode,
			Location:          endpoint.Location,
			Traffic:           endpoint.Traffic,
			ProvisioningState: endpoint.ProvisioningState,
			Tags:              endpoint.Tags,
		},
		Attempts: map[string]int{
			string(naming.KindEndpoint):   len(recorder.AttemptsFor(naming.KindEndpoint)),
			string(naming.KindDeployment): len(recorder.AttemptsFor(naming.KindDeployment)),
		},
		Created: started.UTC(),
	}

	if path := cfg.Artifacts.EndpointInfoFile; path != "" {
		if err := WriteEndpointInfo(path, result.Info); err != nil {
			return fail(StageWriteInfo, err)
		}
		logger.Debug("Endpoint info saved", "path", path)
	}

	// 6. Smoke test
	if cfg.Deployment.SmokeTest {
		result.SmokeTestErr = opts.smokeTest(ctx, result, logger)
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordRun(ctx, "success")
	}

	logger.Info("Deploy workflow completed",
		"endpoint_name", result.Endpoint.Name,
		"deployment_name", result.Deployment.Name,
		"scoring_uri", result.Endpoint.ScoringURI,
		"attempts", len(result.Attempts),
		"duration", opts.now().Sub(started).Round(time.Second))

	return result, nil
}

func (o *DeployOptions) registration() (RegistrationInfo, error) {
	if o.Registration != nil {
		if o.Registration.ModelName == "" || o.Registration.ModelVersion == "" {
			return RegistrationInfo{}, errors.New("registration info must set model_name and model_version")
		}
		return *o.Registration, nil
	}
	return LoadRegistrationInfo(o.Config.Artifacts.RegistrationInfoFile)
}

// smokeTest fetches the endpoint key and sends the sample payload. Endpoints
// using AML tokens are skipped since no key exists for them.
func (o *DeployOptions) smokeTest(ctx context.Context, result DeployResult, logger *slog.Logger) error {
	smokeLogger := logger.With("endpoint_name", result.Endpoint.Name, "scoring_uri", result.Endpoint.ScoringURI)

	if result.Endpoint.AuthMode == cloud.AuthModeAMLToken {
		smokeLogger.Warn("Smoke test skipped: endpoint uses AML token auth")
		return nil
	}

	keys, err := o.Provider.EndpointKeys(ctx, result.Endpoint.Name)
	if err != nil {
		smokeLogger.Warn("Smoke test skipped: endpoint keys unavailable", "error", err)
		return err
	}

	response, err := SmokeTest(ctx, o.HTTPClient, result.Endpoint.ScoringURI, keys.Primary, result.Deployment.Name)
	if err != nil {
		// Freshly created endpoints may still be warming up.
		smokeLogger.Warn("Smoke test failed; the endpoint may still be warming up", "error", err, "response", response)
		return err
	}

	smokeLogger.Info("Smoke test succeeded", "predictions", response)
	return nil
}

func (o *DeployOptions) notifyFailure(ctx context.Context, stage string, result DeployResult, recorder *retry.Recorder, cause error, logger *slog.Logger) {
	if !o.Webhook.Enabled() {
		return
	}

	var attempts int
	switch stage {
	case StageCreateEndpoint:
		attempts = len(recorder.AttemptsFor(naming.KindEndpoint))
	case StageCreateDeployment:
		attempts = len(recorder.AttemptsFor(naming.KindDeployment))
	}

	failure := notifications.DeploymentFailure{
		Service:        ServiceName,
		RunID:          result.RunID,
		Stage:          stage,
		Workspace:      o.Config.Azure.WorkspaceName,
		ResourceGroup:  o.Config.Azure.ResourceGroup,
		EndpointName:   result.Endpoint.Name,
		DeploymentName: result.Deployment.Name,
		Attempts:       attempts,
		Message:        cause.Error(),
		Time:           o.now().UTC(),
	}

	// The run already failed; the notification must not be cut short by the same deadline.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := o.Webhook.Notify(notifyCtx, failure); err != nil {
		logger.Error("Failure notification could not be delivered", "error", err)
		return
	}
	logger.Info("Failure notification sent", "stage", stage)
}

// endpointTaken reports a name as taken when the endpoint can be read.
func endpointTaken(provider cloud.Provider) naming.TakenFunc {
	return func(ctx context.Context, name string) (bool, error) {
		_, err := provider.GetEndpoint(ctx, name)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, cloud.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

func regionOrWorkspace(region string) string {
	if region == "" {
		return "workspace region"
	}
	return region
}

// RunDeployWorkflow is the CLI entry point of the deploy command.
//
// Responsibilities:
//  1. Setup: logger, run id and the optional global timeout.
//  2. Connection: loads the configuration and connects to the Azure ML workspace.
//  3. Execution: runs Deploy with logging, metrics and webhook notifications wired in.
//  4. Reporting: writes the metrics textfile when configured.
func RunDeployWorkflow(configPath string, timeoutSeconds int, logLevel string, webhook notifications.Webhook) (DeployResult, error) {
	logger := SetupLogger(logLevel)
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	ctx, cancel := withTimeout(context.Background(), timeoutSeconds)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Configuration could not be loaded", "path", configPath, "error", err)
		return DeployResult{RunID: runID}, &StageError{Stage: StageLoad, Err: err}
	}
	logger = logger.With("workspace", cfg.Azure.WorkspaceName, "resource_group", cfg.Azure.ResourceGroup)

	m, err := metrics.New()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
		m = nil
	} else {
		defer func() {
			if path := cfg.Artifacts.MetricsFile; path != "" {
				if err := m.WriteTextfile(path); err != nil {
					logger.Warn("Metrics textfile not written", "error", err)
				}
			}
			_ = m.Shutdown(context.Background())
		}()
	}

	opts := DeployOptions{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Webhook: &webhook,
		RunID:   runID,
	}

	logger.Debug("Attempting to connect to Azure ML")
	client, err := initClient(ctx, cfg)
	if err != nil {
		result := DeployResult{RunID: runID}
		opts.notifyFailure(ctx, StageConnect, result, &retry.Recorder{}, err, logger)
		if m != nil {
			m.RecordRun(ctx, "failure")
		}
		return result, &StageError{Stage: StageConnect, Err: err}
	}
	logger.Debug("Azure ML connection established", "location", client.Location())

	opts.Provider = client
	return Deploy(ctx, opts)
}
