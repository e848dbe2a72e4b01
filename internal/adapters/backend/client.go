// Package backend calls the application's own backend to initialize a
// payment. This is the preferred path: the backend holds the processor
// secret key, so nothing secret ever reaches a client context.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
)

// Client implements ports.BackendInitializer over the app backend's
// /payments/initialize endpoint
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   ports.HTTPClient
	logger       ports.Logger
}

// NewClient creates a new backend initializer client
func NewClient(baseURL, serviceToken string, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   httpClient,
		logger:       logger,
	}
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	PlanCode    string            `json:"plan_code,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize asks the backend to open a checkout session. Transport
// failures and 5xx responses classify as BACKEND_UNAVAILABLE so the
// orchestrator can fall back; an explicit rejection from the backend is
// final and classifies as PROCESSOR_REJECTED.
func (c *Client) Initialize(ctx context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	if c.baseURL == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "backend not configured")
	}

	apiReq := initializeRequest{
		Email:       req.Email,
		Amount:      domain.ToMinorUnits(req.Amount),
		Currency:    req.Currency,
		PlanCode:    req.PlanCode,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	payload, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.serviceToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeBackendUnavailable, "backend unreachable", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeBackendUnavailable, "read backend response", err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "backend error").
			WithDetail("status_code", httpResp.StatusCode)
	}

	var resp initializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeBackendUnavailable, "undecodable backend response", err)
	}

	if httpResp.StatusCode >= 400 || !resp.Success {
		// The backend relayed a processor decision; trying another path
		// cannot change a rejection.
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorRejected, "payment rejected").
			WithDetail("backend_error", resp.Error)
	}

	if resp.AuthorizationURL == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "backend returned no checkout url")
	}

	return &ports.InitializeResult{
		CheckoutURL: resp.AuthorizationURL,
		AccessCode:  resp.AccessCode,
		Reference:   resp.Reference,
	}, nil
}
