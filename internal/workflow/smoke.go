package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SamplePayload is the request sent by the smoke test. Each row is
// price, user rating, encoded category and whether the customer bought before.
var SamplePayload = map[string]any{
	"data": [][]float64{
		{25.99, 4, 1, 1},
		{150.00, 2, 0, 0},
	},
}

// SmokeTest posts SamplePayload to scoringURI, routed to deployment, and
// returns the response body. Any non-2xx status is an error.
func SmokeTest(ctx context.Context, client *http.Client, scoringURI, key, deployment string) (string, error) {
	if scoringURI == "" {
		return "", fmt.Errorf("endpoint has no scoring URI yet")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	payload, err := json.Marshal(SamplePayload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, scoringURI, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if deployment != "" {
		// Routes the request to one deployment regardless of the traffic split.
		req.Header.Set("azureml-model-deployment", deployment)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("reading scoring response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return string(body), fmt.Errorf("scoring request returned %d", resp.StatusCode)
	}
	return string(body), nil
}
