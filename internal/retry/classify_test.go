package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestPatternClassifier(t *testing.T) {
	tests := []struct {
		name          string
		classifier    PatternClassifier
		err           error
		wantTransient bool
		wantReason    string
	}{
		{
			name:          "Endpoint Not Created",
			classifier:    EndpointPatterns,
			err:           errors.New("Endpoint churn-ep has not been created successfully"),
			wantTransient: true,
			wantReason:    "has not been created successfully",
		},
		{
			name:          "Endpoint Case Insensitive",
			classifier:    EndpointPatterns,
			err:           errors.New("RESOURCE CONFLICT: operation in progress"),
			wantTransient: true,
			wantReason:    "resource conflict",
		},
		{
			name:          "Endpoint Already Exists",
			classifier:    EndpointPatterns,
			err:           errors.New("An endpoint with this name already exists"),
			wantTransient: true,
			wantReason:    "already exists",
		},
		{
			name:          "Endpoint Fatal",
			classifier:    EndpointPatterns,
			err:           errors.New("InvalidSubscriptionId"),
			wantTransient: false,
		},
		{
			name:          "Deployment Image Build",
			classifier:    DeploymentPatterns,
			err:           errors.New("Image build failed for environment"),
			wantTransient: true,
			wantReason:    "image build failed",
		},
		{
			name:          "Deployment Ignores Endpoint Pattern",
			classifier:    DeploymentPatterns,
			err:           errors.New("endpoint is being deleted"),
			wantTransient: false,
		},
		{
			name:          "Wrapped Message",
			classifier:    DeploymentPatterns,
			err:           fmt.Errorf("polling: %w", errors.New("resource temporarily unavailable")),
			wantTransient: true,
			wantReason:    "resource temporarily unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.classifier.Classify(tt.err)

			if IsTransient(got) != tt.wantTransient {
				t.Fatalf("IsTransient(Classify(%v)) = %v, want %v", tt.err, !tt.wantTransient, tt.wantTransient)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error no longer wraps the original")
			}
			if got.Error() != tt.err.Error() {
				t.Errorf("message changed: %q -> %q", tt.err.Error(), got.Error())
			}

			var transient *TransientError
			if tt.wantTransient && errors.As(got, &transient) && transient.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", transient.Reason, tt.wantReason)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if EndpointPatterns.Classify(nil) != nil {
		t.Error("Classify(nil) must stay nil")
	}
	if Transient("x", nil) != nil {
		t.Error("Transient(x, nil) must stay nil")
	}
}

func TestClassified(t *testing.T) {
	raw := func(_ context.Context, cfg fakeConfig) (fakeHandle, error) {
		if cfg.name == "bad" {
			return fakeHandle{}, errors.New("deployment failed: probe")
		}
		return fakeHandle{Name: cfg.name}, nil
	}
	create := Classified(raw, DeploymentPatterns)

	if _, err := create(context.Background(), fakeConfig{name: "bad"}); !IsTransient(err) {
		t.Errorf("Classified error = %v, want transient", err)
	}
	if h, err := create(context.Background(), fakeConfig{name: "good"}); err != nil || h.Name != "good" {
		t.Errorf("Classified success = (%v, %v)", h, err)
	}
}
