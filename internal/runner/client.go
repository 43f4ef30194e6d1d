// Package runner talks to the external time-based task runner that actually
// delivers reminders. The core only ever submits and cancels runs; delivery
// itself, including any "fired" state, lives entirely in the runner.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TriggerPayload is the body submitted for one reminder run. Ids are in
// their encoded public form so the runner can call back without learning
// row ids.
type TriggerPayload struct {
	ReminderID  string    `json:"reminderId"`
	EventID     string    `json:"eventId"`
	TriggerTime time.Time `json:"triggerTime"`
}

// Runner is the task-runner surface the scheduler depends on. The HTTP
// Client implements it; tests substitute a stub.
type Runner interface {
	// Trigger submits one run and returns its opaque run handle.
	Trigger(ctx context.Context, task string, payload TriggerPayload) (string, error)

	// Cancel revokes a previously submitted run by handle.
	Cancel(ctx context.Context, runID string) error
}

// Client is a thin HTTP client for the task runner API. It handles Bearer
// token authentication, JSON marshaling, and automatic retry with
// exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new task runner client. The baseURL is the root URL
// of the runner API; the token authenticates as this deployment.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// triggerResponse is the runner's reply to a trigger call.
type triggerResponse struct {
	RunID string `json:"runId"`
}

// errorResponse is the runner's error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

// Trigger submits one run. Each call carries a fresh idempotency key so a
// retried request cannot double-schedule.
func (c *Client) Trigger(ctx context.Context, task string, payload TriggerPayload) (string, error) {
	var result triggerResponse
	path := fmt.Sprintf("/api/v1/tasks/%s/trigger", task)
	if err := c.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return "", err
	}
	if result.RunID == "" {
		return "", fmt.Errorf("runner returned no run id for task %s", task)
	}
	return result.RunID, nil
}

// Cancel revokes a run by handle.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	path := fmt.Sprintf("/api/v1/runs/%s/cancel", runID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// do is the core HTTP method that builds the request, handles auth, rate
// limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path
	idempotencyKey := uuid.New().String()

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if data != nil {
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("authentication failed (401): check the runner API token for %s", c.baseURL)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var runnerErr errorResponse
			if json.Unmarshal(respBody, &runnerErr) == nil && runnerErr.Error != "" {
				return fmt.Errorf("runner error (%d) on %s %s: %s",
					resp.StatusCode, method, path, runnerErr.Error)
			}
			return fmt.Errorf("unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody))
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
