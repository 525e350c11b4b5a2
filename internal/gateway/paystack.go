package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
)

// PaystackClient implements Client against the Paystack REST API.
// Amounts cross the wire in subunits (cents).
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPaystackClient builds a client with a bounded request timeout from config.
func NewPaystackClient(logger *slog.Logger, cfg *config.GatewayConfig) *PaystackClient {
	return &PaystackClient{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateRecipient registers a provider's bank account and returns the
// gateway-assigned recipient code.
func (c *PaystackClient) CreateRecipient(ctx context.Context, params RecipientParams) (string, error) {
	body := map[string]string{
		"type":           "basa",
		"name":           params.Name,
		"account_number": params.AccountNumber,
		"bank_code":      params.BankCode,
		"currency":       "ZAR",
	}

	data, err := c.post(ctx, "createRecipient", "/transferrecipient", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode recipient response: %w", err)
	}
	if resp.RecipientCode == "" {
		return "", fmt.Errorf("gateway returned empty recipient code")
	}

	return resp.RecipientCode, nil
}

// CreateTransfer initiates a payout transfer. The reference deduplicates
// retries on the gateway side.
func (c *PaystackClient) CreateTransfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	body := map[string]interface{}{
		"source":    "balance",
		"amount":    toSubunits(params.Amount),
		"recipient": params.RecipientCode,
		"reference": params.Reference,
		"reason":    params.Reason,
	}

	data, err := c.post(ctx, "createTransfer", "/transfer", body)
	if err != nil {
		return nil, err
	}

	return decodeTransfer(data)
}

// FetchTransfer reads the current state of a transfer by its code.
func (c *PaystackClient) FetchTransfer(ctx context.Context, transferCode string) (*TransferResult, error) {
	data, err := c.do(ctx, "fetchTransfer", http.MethodGet, "/transfer/"+transferCode, nil)
	if err != nil {
		return nil, err
	}

	return decodeTransfer(data)
}

// ProcessRefund asks the gateway to reverse (part of) a charge.
func (c *PaystackClient) ProcessRefund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	body := map[string]interface{}{
		"transaction":   params.GatewayRef,
		"amount":        toSubunits(params.Amount),
		"merchant_note": params.Reason,
	}

	data, err := c.post(ctx, "processRefund", "/refund", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode refund response: %w", err)
	}

	return &RefundResult{
		RefundID: resp.ID.String(),
		Status:   resp.Status,
	}, nil
}

func (c *PaystackClient) post(ctx context.Context, op, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, path, payload)
}

func (c *PaystackClient) do(ctx context.Context, op, method, path string, payload []byte) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// Keep the raw payload; a paraphrased decode error hides what
		// the gateway actually said.
		c.logger.Error("Gateway returned undecodable payload",
			"op", op,
			"status_code", resp.StatusCode,
			"raw_body", string(raw),
		)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "undecodable response", RawBody: string(raw)}
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		c.logger.Error("Gateway call failed",
			"op", op,
			"status_code", resp.StatusCode,
			"message", envelope.Message,
			"raw_body", string(raw),
		)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: envelope.Message, RawBody: string(raw)}
	}

	return envelope.Data, nil
}

func decodeTransfer(data json.RawMessage) (*TransferResult, error) {
	var resp struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transfer response: %w", err)
	}

	result := &TransferResult{
		TransferCode: resp.TransferCode,
		GatewayRef:   resp.Reference,
		Status:       TransferStatus(resp.Status),
	}
	switch result.Status {
	case TransferStatusSuccess, TransferStatusPending, TransferStatusFailed:
	case "otp", "processing", "queued":
		result.Status = TransferStatusPending
	default:
		result.Status = TransferStatusPending
	}

	return result, nil
}

// toSubunits converts a 2-decimal amount to integer cents.
func toSubunits(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}
