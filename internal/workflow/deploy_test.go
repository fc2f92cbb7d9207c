package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/config"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/tags"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 12, 0, time.UTC)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Azure: config.Azure{
			SubscriptionID: "sub",
			ResourceGroup:  "ml-rg",
			WorkspaceName:  "ml-ws",
		},
		Deployment: config.Deployment{
			EndpointName:   "churn",
			DeploymentName: "blue-deployment",
			Region:         "West Europe",
			AuthMode:       cloud.AuthModeKey,
			Environment:    "churn-env:2",
			ScoringScript:  "score.py",
			InstanceType:   "Standard_DS2_v2",
			InstanceCount:  1,
			NameCandidates: 5,
			Tags:           map[string]string{"team": "ml"},
		},
		Artifacts: config.Artifacts{
			EndpointInfoFile: filepath.Join(t.TempDir(), "models", "endpoint_info.yaml"),
		},
		Sweep: config.Sweep{GracePeriod: time.Hour},
	}
}

type sleepLog struct {
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testOptions(t *testing.T, provider *fakeProvider, sleeper *sleepLog) DeployOptions {
	t.Helper()
	return DeployOptions{
		Config:       testConfig(t),
		Provider:     provider,
		Registration: &RegistrationInfo{ModelName: "purchase-model", ModelVersion: "3"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Generator:    &naming.Generator{Now: func() time.Time { return fixedNow }},
		Sleep:        sleeper.sleep,
		Now:          func() time.Time { return fixedNow },
		RunID:        "run-1",
	}
}

func TestDeploy_HappyPath(t *testing.T) {
	provider := newFakeProvider()
	sleeper := &sleepLog{}
	opts := testOptions(t, provider, sleeper)

	result, err := Deploy(context.Background(), opts)
	require.NoError(t, err)

	assert.Regexp(t, `^churn-1015-0930-[0-9a-f]{6}$`, result.Endpoint.Name)
	assert.Regexp(t, `^blue-10150930-[0-9a-f]{4}$`, result.Deployment.Name)
	assert.Equal(t, result.Endpoint.Name, result.Deployment.EndpointName)
	assert.Equal(t, map[string]int32{result.Deployment.Name: 100}, result.Endpoint.Traffic)
	assert.Equal(t, "westeurope", result.Endpoint.Location)
	assert.Len(t, result.Attempts, 2)
	assert.Empty(t, sleeper.delays)
	assert.Empty(t, provider.deletedEndpoints)

	// The endpoint name was checked before it was used.
	assert.Contains(t, provider.getCalls, result.Endpoint.Name)

	meta, err := tags.ParseManaged(result.Endpoint.Tags)
	require.NoError(t, err)
	assert.True(t, meta.Managed)
	assert.Equal(t, "endpoint", meta.Kind)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, "churn", meta.BaseName)
	assert.Equal(t, "ml", result.Endpoint.Tags["team"])

	deploymentTags := provider.deployments[result.Endpoint.Name+"/"+result.Deployment.Name].Tags
	assert.Equal(t, "purchase-model", deploymentTags["model_name"])
	assert.Equal(t, "3", deploymentTags["model_version"])

	info, err := ReadEndpointInfo(opts.Config.Artifacts.EndpointInfoFile)
	require.NoError(t, err)
	assert.Equal(t, "run-1", info.RunID)
	assert.Equal(t, "purchase-model:3", info.Model)
	assert.Equal(t, ResourceNames{EndpointName: "churn", DeploymentName: "blue-deployment"}, info.OriginalNames)
	assert.Equal(t, result.Endpoint.Name, info.ActualNames.EndpointName)
	assert.Equal(t, result.Deployment.Name, info.ActualNames.DeploymentName)
	assert.Equal(t, map[string]int{"endpoint": 1, "deployment": 1}, info.Attempts)
	assert.Equal(t, cloud.StateSucceeded, info.EndpointDetails.ProvisioningState)
	assert.Equal(t, int32(100), info.EndpointDetails.Traffic[result.Deployment.Name])
}

func TestDeploy_EndpointRetriedUnderNewName(t *testing.T) {
	provider := newFakeProvider()
	provider.endpointErrs = []error{
		retry.Transient("provisioning failed", errors.New("endpoint provisioning failed")),
	}
	sleeper := &sleepLog{}
	opts := testOptions(t, provider, sleeper)

	result, err := Deploy(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, provider.createdEndpoints, 2)
	first, second := provider.createdEndpoints[0], provider.createdEndpoints[1]
	assert.NotEqual(t, first, second)
	assert.True(t, naming.IsValid(second, naming.KindEndpoint), second)
	assert.Equal(t, second, result.Endpoint.Name)

	// The broken first endpoint is cleaned up before the retry.
	assert.Equal(t, []string{first}, provider.deletedEndpoints)
	assert.NotContains(t, provider.endpoints, first)
	assert.Equal(t, []time.Duration{300 * time.Second}, sleeper.delays)

	require.Len(t, result.Attempts, 3)
	assert.Equal(t, retry.OutcomeRetryable, result.Attempts[0].Outcome)
	assert.Equal(t, retry.OutcomeSuccess, result.Attempts[1].Outcome)
	assert.Equal(t, 2, result.Info.Attempts["endpoint"])
}

func TestDeploy_DeploymentFatalFailureNotifies(t *testing.T) {
	var received notifications.DeploymentFailure
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := newFakeProvider()
	provider.deploymentErrs = []error{errors.New("QuotaExceeded: not enough cores")}
	sleeper := &sleepLog{}
	opts := testOptions(t, provider, sleeper)
	opts.Webhook = &notifications.Webhook{URL: server.URL}

	result, err := Deploy(context.Background(), opts)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCreateDeployment, stageErr.Stage)
	assert.False(t, errors.Is(err, retry.ErrRetriesExhausted))
	assert.Len(t, provider.createdDeployments, 1)
	assert.Empty(t, sleeper.delays)

	assert.Equal(t, "endpointsentry", received.Service)
	assert.Equal(t, "run-1", received.RunID)
	assert.Equal(t, StageCreateDeployment, received.Stage)
	assert.Equal(t, "ml-ws", received.Workspace)
	assert.Equal(t, result.Endpoint.Name, received.EndpointName)
	assert.Equal(t, 1, received.Attempts)
	assert.Contains(t, received.Message, "QuotaExceeded")
}

func TestDeploy_DeploymentRetriesExhausted(t *testing.T) {
	transient := retry.Transient("deployment failed", errors.New("deployment failed"))
	provider := newFakeProvider()
	provider.deploymentErrs = []error{transient, transient, transient}
	sleeper := &sleepLog{}

	_, err := Deploy(context.Background(), testOptions(t, provider, sleeper))
	require.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Len(t, provider.createdDeployments, 3)
	assert.Len(t, provider.deletedDeployments, 2)
	assert.Equal(t, []time.Duration{180 * time.Second, 180 * time.Second}, sleeper.delays)
}

func TestDeploy_ReserveSkipsTakenNames(t *testing.T) {
	seeded := func() *naming.Generator {
		return &naming.Generator{
			Now:     func() time.Time { return fixedNow },
			Entropy: rand.New(rand.NewSource(42)),
		}
	}

	// The same seed yields the same first candidate; make it taken.
	taken := seeded().EndpointName("churn", naming.MaxNameLength)

	provider := newFakeProvider()
	provider.endpoints[taken] = cloud.Endpoint{Name: taken, ProvisioningState: cloud.StateSucceeded}

	opts := testOptions(t, provider, &sleepLog{})
	opts.Generator = seeded()

	result, err := Deploy(context.Background(), opts)
	require.NoError(t, err)
	assert.NotEqual(t, taken, result.Endpoint.Name)
	assert.Equal(t, taken, provider.getCalls[0])
	assert.Contains(t, provider.endpoints, taken, "existing endpoint must be left alone")
}

func TestDeploy_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeProvider, *DeployOptions)
		wantStage string
		wantIs    error
	}{
		{
			name: "Invalid Config",
			setup: func(_ *fakeProvider, o *DeployOptions) {
				o.Config.Azure.WorkspaceName = ""
			},
			wantStage: StageLoad,
			wantIs:    config.ErrInvalidConfig,
		},
		{
			name: "Unsupported Region",
			setup: func(_ *fakeProvider, o *DeployOptions) {
				o.Config.Deployment.Region = "mars-north"
			},
			wantStage: StageLoad,
			wantIs:    config.ErrInvalidConfig,
		},
		{
			name: "Missing Registration",
			setup: func(_ *fakeProvider, o *DeployOptions) {
				o.Registration = &RegistrationInfo{ModelName: "purchase-model"}
			},
			wantStage: StageLoad,
		},
		{
			name: "Existence Check Fails",
			setup: func(p *fakeProvider, o *DeployOptions) {
				o.Generator = &naming.Generator{Now: func() time.Time { return fixedNow }, Entropy: rand.New(rand.NewSource(7))}
				name := (&naming.Generator{Now: func() time.Time { return fixedNow }, Entropy: rand.New(rand.NewSource(7))}).EndpointName("churn", naming.MaxNameLength)
				p.getErrs[name] = errors.New("forbidden")
			},
			wantStage: StageReserveEndpoint,
		},
		{
			name: "Traffic Update Fails",
			setup: func(p *fakeProvider, _ *DeployOptions) {
				p.trafficErr = errors.New("conflict")
			},
			wantStage: StageSetTraffic,
		},
		{
			name: "Cancelled Context",
			setup:     func(_ *fakeProvider, _ *DeployOptions) {},
			wantStage: StageReserveEndpoint,
			wantIs:    context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider()
			opts := testOptions(t, provider, &sleepLog{})
			tt.setup(provider, &opts)

			ctx := context.Background()
			if tt.wantIs == context.Canceled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			_, err := Deploy(ctx, opts)
			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestDeploy_SmokeTest(t *testing.T) {
	var (
		gotAuth       string
		gotDeployment string
		gotPayload    map[string][][]float64
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDeployment = r.Header.Get("azureml-model-deployment")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = io.WriteString(w, "[1, 0]")
	}))
	defer server.Close()

	provider := newFakeProvider()
	provider.scoringURI = server.URL
	opts := testOptions(t, provider, &sleepLog{})
	opts.Config.Deployment.SmokeTest = true
	opts.HTTPClient = server.Client()

	result, err := Deploy(context.Background(), opts)
	require.NoError(t, err)
	assert.NoError(t, result.SmokeTestErr)
	assert.Equal(t, "Bearer primary-key", gotAuth)
	assert.Equal(t, result.Deployment.Name, gotDeployment)
	assert.Equal(t, [][]float64{{25.99, 4, 1, 1}, {150.00, 2, 0, 0}}, gotPayload["data"])
}

func TestDeploy_SmokeTestFailureIsOnlyAWarning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not ready", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := newFakeProvider()
	provider.scoringURI = server.URL
	opts := testOptions(t, provider, &sleepLog{})
	opts.Config.Deployment.SmokeTest = true

	result, err := Deploy(context.Background(), opts)
	require.NoError(t, err)
	require.Error(t, result.SmokeTestErr)
	assert.True(t, strings.Contains(result.SmokeTestErr.Error(), "503"))
}
