package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider initiates payments on a remote rail over JSON/HTTP. The rail
// reports the outcome later to the callback endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type initiateRequest struct {
	Amount      int64  `json:"amount"`
	PayerHandle string `json:"payer_handle"`
	Reference   string `json:"reference"`
}

type initiateResponse struct {
	RequestID string `json:"request_id"`
}

func (p *HTTPProvider) Initiate(ctx context.Context, amount int64, payerHandle, reference string) (string, error) {
	body, err := json.Marshal(initiateRequest{Amount: amount, PayerHandle: payerHandle, Reference: reference})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provider response: %w", err)
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("provider response: empty request id")
	}
	return out.RequestID, nil
}
