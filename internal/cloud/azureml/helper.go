package azureml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
)

// isRetryable determines if a read or delete error is transient and warrants a retry.
// It checks the standard HTTP 408/429/5xx codes carried by azcore.ResponseError
// and assumes other unknown network errors are also retryable.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, cloud.ErrNotFound) {
		return false
	}

	var respErr *azcore.ResponseError

	// Unwrap the error to see if it's a specific ARM HTTP response error
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusTooManyRequests, // 429 - Throttling
			http.StatusRequestTimeout,      // 408 - Client Timeout
			http.StatusInternalServerError, // 500 - Server Error
			http.StatusServiceUnavailable,  // 503 - Maintenance/Overload
			http.StatusGatewayTimeout:      // 504 - Upstream Timeout
			return true
		default:
			// Client errors (400, 401, 403, 404, ...) are not retryable
			// as the request itself is invalid.
			return false
		}
	}
	// Fallback: DNS failures, connection resets and the like are treated as transient.
	return true
}

// ExecuteAction wraps a function with retry logic, including exponential backoff,
// jitter, and context timeouts.
//
// opName is used for logging and debugging purposes.
// operation is the function to execute; it must accept a context to support cancellation.
func ExecuteAction(ctx context.Context, cfg cloud.RetryConfig, opName string, operation func(ctx context.Context) error) error {
	// Bound the whole loop when an operation timeout is configured.
	if cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// 1. Pre-check: Stop immediately if the context is cancelled or timed out.
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out before attempt %d: %w", opName, attempt+1, ctx.Err())
		}

		// 2. Execute the operation
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		// 3. Decision: Should we retry?
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		slog.Warn("Transient error detected, scheduling retry",
			"operation", opName,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"error", lastErr)

		// 4. Backoff: BaseDelay * 2^attempt plus up to 50% jitter, capped at MaxDelay
		backoff := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
		sleepDuration := time.Duration(backoff)
		if half := int64(backoff) / 2; half > 0 {
			sleepDuration += time.Duration(rand.Int63n(half))
		}
		if cfg.MaxDelay > 0 {
			sleepDuration = min(sleepDuration, cfg.MaxDelay)
		}

		// 5. Wait with Context awareness
		select {
		case <-time.After(sleepDuration):
			continue
		case <-ctx.Done():
			return fmt.Errorf("%s context cancelled during backoff: %w", opName, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", opName, cfg.MaxRetries, lastErr)
}

// classifyCreateError tags a create failure as transient or leaves it fatal.
//
// Order of evidence: HTTP status, then the ARM error code spelled out as words
// ("ProvisioningFailed" -> "provisioning failed"), then the error message.
func classifyCreateError(err error, patterns retry.PatternClassifier) error {
	if err == nil {
		return nil
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusConflict,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return retry.Transient(fmt.Sprintf("http %d", respErr.StatusCode), err)
		}

		if respErr.ErrorCode != "" {
			code := humanizeCode(respErr.ErrorCode)
			for _, pattern := range patterns.Patterns {
				if strings.Contains(code, pattern) {
					return retry.Transient(pattern, err)
				}
			}
		}
	}

	return patterns.Classify(err)
}

func classifyEndpointError(err error) error {
	return classifyCreateError(err, retry.EndpointPatterns)
}

func classifyDeploymentError(err error) error {
	return classifyCreateError(err, retry.DeploymentPatterns)
}

// humanizeCode turns an ARM error code like "EndpointAlreadyExists" into
// "endpoint already exists".
func humanizeCode(code string) string {
	var b strings.Builder
	for i, r := range code {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// isNotFound reports whether err is an ARM 404.
func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// AssetID expands a workspace asset reference into its ARM resource ID.
//
// Accepted forms:
//
//	name:version
//	azureml:name:version
//	/subscriptions/.../workspaces/<ws>/<collection>/<name>/versions/<version>
func AssetID(subscriptionID, resourceGroup, workspace, collection, ref string) (string, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "azureml:")
	if ref == "" {
		return "", fmt.Errorf("empty %s reference", collection)
	}

	if strings.HasPrefix(ref, "/") {
		return ref, nil
	}

	name, version, ok := strings.Cut(ref, ":")
	if !ok || name == "" || version == "" {
		return "", fmt.Errorf("invalid %s reference %q: want name:version", collection, ref)
	}

	return fmt.Sprintf(
		"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s/%s/%s/versions/%s",
		subscriptionID, resourceGroup, workspace, collection, name, version,
	), nil
}
