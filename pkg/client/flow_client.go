// Package client implements the editor's FlowStore over the chatflow REST
// API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// ErrNotFound is returned when the server reports 404 for a flow id.
var ErrNotFound = errors.New("flow not found")

// FlowClient talks to the chatflow backend. It implements editor.FlowStore.
type FlowClient struct {
	baseURL string
	client  *http.Client
}

// NewFlowClient creates a client for the API at baseURL (e.g.
// "http://localhost:8080").
func NewFlowClient(baseURL string) *FlowClient {
	return &FlowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *FlowClient) SetHTTPClient(hc *http.Client) {
	c.client = hc
}

// ListFlows returns summaries of every stored flow.
func (c *FlowClient) ListFlows(ctx context.Context) ([]models.FlowSummary, error) {
	var flows []models.Flow
	if err := c.do(ctx, http.MethodGet, "/api/flows", nil, &flows); err != nil {
		return nil, err
	}
	summaries := make([]models.FlowSummary, len(flows))
	for i := range flows {
		summaries[i] = flows[i].Summary()
	}
	return summaries, nil
}

// GetFlow retrieves a full flow by id.
func (c *FlowClient) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	if err := c.do(ctx, http.MethodGet, "/api/flows/"+url.PathEscape(id), nil, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// CreateFlow stores a new flow; the server assigns the id.
func (c *FlowClient) CreateFlow(ctx context.Context, input models.FlowCreate) (*models.Flow, error) {
	var flow models.Flow
	if err := c.do(ctx, http.MethodPost, "/api/flows", input, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// UpdateFlow applies a partial update to a stored flow.
func (c *FlowClient) UpdateFlow(ctx context.Context, id string, patch models.FlowPatch) (*models.Flow, error) {
	var flow models.Flow
	if err := c.do(ctx, http.MethodPut, "/api/flows/"+url.PathEscape(id), patch, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// DeleteFlow removes a stored flow.
func (c *FlowClient) DeleteFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/flows/"+url.PathEscape(id), nil, nil)
}

// do executes a JSON request against the API. Non-2xx responses are turned
// into errors carrying the server's detail message when one is present,
// falling back to a status-derived message.
func (c *FlowClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Unwrap so callers can match context.Canceled on aborted loads.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *FlowClient) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	detail := ""
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		detail = payload.Detail
	}
	if detail == "" {
		detail = fmt.Sprintf("server returned %s", resp.Status)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	}
	return errors.New(detail)
}
