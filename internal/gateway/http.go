package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// HTTPGateway submits reports to the regulator's reporting API. A transport
// error or timeout is returned as an error (gateway unavailable); a 4xx
// answer comes back as an unsuccessful SubmitResult so the scheduler can
// record the rejection reason.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	ReportType string `json:"report_type"`
	models.ReportPayload
}

type submitResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ReportID string `json:"report_id"`
}

func (g *HTTPGateway) Submit(ctx context.Context, kind models.ReportKind, payload models.ReportPayload) (interfaces.SubmitResult, error) {
	body, err := json.Marshal(submitRequest{ReportType: string(kind), ReportPayload: payload})
	if err != nil {
		return interfaces.SubmitResult{}, fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/reports", bytes.NewReader(body))
	if err != nil {
		return interfaces.SubmitResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return interfaces.SubmitResult{}, fmt.Errorf("submit report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return interfaces.SubmitResult{}, fmt.Errorf("reporting api returned %d", resp.StatusCode)
	}

	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return interfaces.SubmitResult{}, fmt.Errorf("decode response: %w", err)
	}

	result := interfaces.SubmitResult{
		Success:  decoded.Success && resp.StatusCode < 400,
		Message:  decoded.Message,
		ReportID: decoded.ReportID,
	}
	if !result.Success && result.Message == "" {
		result.Message = fmt.Sprintf("reporting api returned %d", resp.StatusCode)
	}
	return result, nil
}

var _ interfaces.ReportingGateway = (*HTTPGateway)(nil)
