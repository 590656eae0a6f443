// Package simulator generates synthetic fleet traffic against the monitor
// API: it seeds demo machines and keeps posting simulated vital readings.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"procodus.dev/machine-monitor/internal/store"
)

// Client is a thin HTTP client for the monitor API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// createMachinePayload mirrors the POST /machines request body.
type createMachinePayload struct {
	Name                string            `json:"name"`
	Code                string            `json:"code,omitempty"`
	Location            string            `json:"location,omitempty"`
	NextMaintenanceDate string            `json:"nextMaintenanceDate"`
	ResponsibleEmail    string            `json:"responsibleEmail,omitempty"`
	Thresholds          *store.Thresholds `json:"thresholds,omitempty"`
}

// vitalPayload mirrors the POST /machines/{id}/vitals request body.
type vitalPayload struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Vibration   *float64 `json:"vibration,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
}

// CreateMachine registers a machine and returns the created record.
func (c *Client) CreateMachine(ctx context.Context, m store.NewMachine) (store.Machine, error) {
	payload := createMachinePayload{
		Name:                m.Name,
		Code:                m.Code,
		Location:            m.Location,
		NextMaintenanceDate: m.NextMaintenanceDate.Format(time.RFC3339),
		ResponsibleEmail:    m.ResponsibleEmail,
		Thresholds:          m.Thresholds,
	}

	var machine store.Machine
	if err := c.post(ctx, "/machines", payload, &machine); err != nil {
		return store.Machine{}, err
	}
	return machine, nil
}

// SimulateVital asks the server to generate and store a synthetic reading.
func (c *Client) SimulateVital(ctx context.Context, machineID string) (store.Vital, error) {
	var vital store.Vital
	path := fmt.Sprintf("/machines/%s/vitals/simulate", machineID)
	if err := c.post(ctx, path, nil, &vital); err != nil {
		return store.Vital{}, err
	}
	return vital, nil
}

// PostVital appends an explicit reading, used to inject abnormal values.
func (c *Client) PostVital(ctx context.Context, machineID string, temperature, vibration, pressure *float64) error {
	path := fmt.Sprintf("/machines/%s/vitals", machineID)
	return c.post(ctx, path, vitalPayload{
		Temperature: temperature,
		Vibration:   vibration,
		Pressure:    pressure,
	}, nil)
}

// post issues a JSON POST and decodes the response into out when non-nil.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
