// Package sixtyfour is a thin client for the Sixtyfour lead-data API: async
// lead enrichment (submit then poll) and synchronous email lookup. One pooled
// HTTP client is shared by every job for the process lifetime and closed once
// at shutdown.
package sixtyfour

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://api.sixtyfour.ai"

	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 20 * time.Minute
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// PollInterval and PollTimeout gate PollTask. Exposed so tests can
	// compress time.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		PollInterval: defaultPollInterval,
		PollTimeout:  defaultPollTimeout,
	}
}

// Close releases pooled connections. Called exactly once at process shutdown.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type enrichResponse struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Error  string         `json:"error"`
}

// EnrichLead submits one async enrichment request and returns its task id.
func (c *Client) EnrichLead(ctx context.Context, leadInfo map[string]any, structFields map[string]string, researchPlan string) (string, error) {
	body := map[string]any{
		"lead_info": leadInfo,
		"struct":    structFields,
	}
	if researchPlan != "" {
		body["research_plan"] = researchPlan
	}

	var response enrichResponse
	if err := c.post(ctx, "/enrich-lead-async", body, &response); err != nil {
		return "", fmt.Errorf("enrich-lead submit failed: %w", err)
	}

	return response.TaskID, nil
}

// PollTask checks the task status every PollInterval until it completes,
// fails, or PollTimeout elapses. Only the submit is concurrency-bounded by
// callers; these status checks are cheap and run unbounded.
func (c *Client) PollTask(ctx context.Context, taskID string) (map[string]any, error) {
	deadline := time.Now().Add(c.PollTimeout)

	for {
		var status taskStatusResponse
		if err := c.get(ctx, "/job-status/"+taskID, &status); err != nil {
			return nil, fmt.Errorf("enrich-lead status check failed: %w", err)
		}

		switch status.Status {
		case "completed":
			return status.Result, nil
		case "failed":
			message := status.Error
			if message == "" {
				message = "unknown error"
			}

			return nil, fmt.Errorf("enrich-lead task %s failed: %s", taskID, message)
		}

		if time.Now().Add(c.PollInterval).After(deadline) {
			return nil, fmt.Errorf("enrich-lead task %s did not complete within %s", taskID, c.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}

// FindEmail looks up an email address for a lead. One-shot request/response.
func (c *Client) FindEmail(ctx context.Context, lead map[string]any, mode string) (map[string]any, error) {
	body := map[string]any{
		"lead": lead,
		"mode": mode,
	}

	var response map[string]any
	if err := c.post(ctx, "/find-email", body, &response); err != nil {
		return nil, fmt.Errorf("find-email failed: %w", err)
	}

	return response, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}

	return nil
}
