package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProvisionRequest carries the credentials captured by a registration order.
type ProvisionRequest struct {
	OrderNo      string `json:"order_no"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"password_hash"`
}

// UserProvisioner creates the account for a paid registration order. It is
// invoked at most once per order.
type UserProvisioner interface {
	Provision(ctx context.Context, req ProvisionRequest) (string, error)
}

// HTTPUserProvisioner calls the user service's internal provisioning endpoint.
type HTTPUserProvisioner struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPUserProvisioner(baseURL, token string, timeout time.Duration) *HTTPUserProvisioner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPUserProvisioner{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type provisionResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Provision posts to /internal/users. The order number is sent as the
// idempotency key, and a 409 carrying an id counts as success.
func (c *HTTPUserProvisioner) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/users", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", "register-"+req.OrderNo)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provisioning request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read provisioning response: %w", err)
	}

	var out provisionResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusConflict && out.ID != "":
	default:
		return "", fmt.Errorf("user service returned %d: %s", resp.StatusCode, out.Error)
	}
	if out.ID == "" {
		return "", fmt.Errorf("user service returned no user id")
	}
	return out.ID, nil
}
