// Package paystack wraps the external payment processor's REST API.
// Every call is side-effecting exactly once per invocation; retry policy
// belongs to the checkout orchestrator, never to this client.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	pkgerrors "github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/errors"
)

// Client implements ports.ProcessorGateway against the Paystack API
type Client struct {
	baseURL    string
	secretKey  string
	httpClient ports.HTTPClient
	logger     ports.Logger
}

// NewClient creates a new processor client with dependency injection
func NewClient(baseURL, secretKey string, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // minor currency units
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Plan        string            `json:"plan,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status   string                 `json:"status"`
	Channel  string                 `json:"channel"`
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Metadata map[string]interface{} `json:"metadata"`
}

type subscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
}

// InitializeTransaction opens a checkout session and returns the URL the
// user is redirected to
func (c *Client) InitializeTransaction(ctx context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	apiReq := initializeRequest{
		Email:       req.Email,
		Amount:      domain.ToMinorUnits(req.Amount),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Plan:        req.PlanCode,
		Metadata:    req.Metadata,
	}

	var data initializeData
	if err := c.makeRequest(ctx, http.MethodPost, "/transaction/initialize", apiReq, &data); err != nil {
		return nil, err
	}

	if data.AuthorizationURL == "" {
		return nil, domain.WrapError(domain.ErrorCodeProcessorMalformed, "initialize returned no checkout url",
			pkgerrors.NewProcessorError("MALFORMED", "missing authorization_url", pkgerrors.CategoryMalformed, false))
	}

	return &ports.InitializeResult{
		CheckoutURL: data.AuthorizationURL,
		AccessCode:  data.AccessCode,
		Reference:   data.Reference,
	}, nil
}

// VerifyTransaction fetches the processor's authoritative view of a
// transaction by reference
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*ports.VerifyResult, error) {
	if reference == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "reference is required")
	}

	var data verifyData
	endpoint := "/transaction/verify/" + reference
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, err
	}

	planType := domain.PlanType("")
	if v, ok := data.Metadata["planType"].(string); ok {
		planType = domain.PlanType(v)
	}

	return &ports.VerifyResult{
		Reference: reference,
		Success:   data.Status == "success",
		Status:    data.Status,
		Channel:   data.Channel,
		Amount:    decimal.NewFromInt(data.Amount).Div(decimal.NewFromInt(100)),
		Currency:  data.Currency,
		PlanType:  planType,
		Raw:       data.Metadata,
	}, nil
}

// CreateSubscription enrolls a customer in processor-managed recurring
// billing and returns the processor subscription id
func (c *Client) CreateSubscription(ctx context.Context, customerEmail, planCode, authorizationCode string) (string, error) {
	apiReq := map[string]string{
		"customer":      customerEmail,
		"plan":          planCode,
		"authorization": authorizationCode,
	}

	var data subscriptionData
	if err := c.makeRequest(ctx, http.MethodPost, "/subscription", apiReq, &data); err != nil {
		return "", err
	}

	if data.SubscriptionCode == "" {
		return "", domain.WrapError(domain.ErrorCodeProcessorMalformed, "subscription create returned no code",
			pkgerrors.NewProcessorError("MALFORMED", "missing subscription_code", pkgerrors.CategoryMalformed, false))
	}

	return data.SubscriptionCode, nil
}

// CancelSubscription disables processor-side recurring billing
func (c *Client) CancelSubscription(ctx context.Context, processorSubscriptionID string) error {
	if processorSubscriptionID == "" {
		return domain.NewDomainError(domain.ErrorCodeInvalidInput, "processor subscription id is required")
	}

	apiReq := map[string]string{
		"code": processorSubscriptionID,
	}

	var data json.RawMessage
	return c.makeRequest(ctx, http.MethodPost, "/subscription/disable", apiReq, &data)
}

// makeRequest performs one HTTP call and classifies failures:
// transport errors and 5xx are PROCESSOR_NETWORK (recoverable), 4xx with
// a message is PROCESSOR_REJECTED (authoritative, never retried), and an
// undecodable body is PROCESSOR_MALFORMED.
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, request interface{}, out interface{}) error {
	var payload []byte
	var err error

	if request != nil {
		payload, err = json.Marshal(request)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	if c.logger != nil {
		c.logger.Debug("processor request",
			ports.String("method", method),
			ports.String("endpoint", endpoint),
		)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeProcessorNetwork, "processor unreachable",
			pkgerrors.NewProcessorError("NETWORK_ERROR", "failed to connect to payment processor", pkgerrors.CategoryNetworkError, true))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeProcessorNetwork, "read processor response",
			pkgerrors.NewProcessorError("NETWORK_ERROR", "failed to read processor response", pkgerrors.CategoryNetworkError, true))
	}

	if httpResp.StatusCode >= 500 {
		return domain.WrapError(domain.ErrorCodeProcessorNetwork, "processor error",
			pkgerrors.NewProcessorError("GATEWAY_ERROR", "payment processor error", pkgerrors.CategorySystemError, true))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.WrapError(domain.ErrorCodeProcessorMalformed, "undecodable processor response",
			pkgerrors.NewProcessorError("MALFORMED", "malformed processor response", pkgerrors.CategoryMalformed, false))
	}

	if httpResp.StatusCode >= 400 || !envelope.Status {
		return domain.WrapError(domain.ErrorCodeProcessorRejected, "processor rejected request",
			pkgerrors.NewProcessorError("REJECTED", "payment rejected", pkgerrors.CategoryDeclined, false).
				WithProcessorMessage(envelope.Message)).
			WithDetail("processor_message", envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return domain.WrapError(domain.ErrorCodeProcessorMalformed, "undecodable processor payload",
				pkgerrors.NewProcessorError("MALFORMED", "malformed processor payload", pkgerrors.CategoryMalformed, false))
		}
	}

	return nil
}
