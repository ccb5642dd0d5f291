// File: internal/infra/adapters/provider/razorpay_gateway.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.RefundGateway = (*RazorpayGateway)(nil)

// RazorpayGateway issues refunds against a Razorpay-compatible REST API
// (POST /v1/payments/{id}/refund with basic auth).
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id/secret empty")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) CreateRefund(ctx context.Context, providerPaymentID string, amount int64, speed model.RefundSpeed) (adapter.RefundResult, error) {
	payload := map[string]any{
		"amount": amount,
		"speed":  providerSpeed(speed),
	}
	b, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/v1/payments/%s/refund", g.baseURL, providerPaymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return adapter.RefundResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error.Code == "" {
			return adapter.RefundResult{
				Status:           "failed",
				ErrorCode:        fmt.Sprintf("HTTP_%d", resp.StatusCode),
				ErrorDescription: "refund rejected",
			}, fmt.Errorf("refund http %d", resp.StatusCode)
		}
		return adapter.RefundResult{
			Status:           "failed",
			ErrorCode:        out.Error.Code,
			ErrorDescription: out.Error.Description,
		}, fmt.Errorf("refund rejected: %s", out.Error.Code)
	}

	var out struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		SpeedProcessed string `json:"speed_processed"`
		CreatedAt      int64  `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.RefundResult{}, fmt.Errorf("decode refund response: %w", err)
	}
	return adapter.RefundResult{
		ProviderRefundID: out.ID,
		Status:           out.Status,
		SpeedProcessed:   domainSpeed(out.SpeedProcessed),
		ProcessedAt:      time.Unix(out.CreatedAt, 0).UTC(),
	}, nil
}

func providerSpeed(s model.RefundSpeed) string {
	if s == model.RefundSpeedOptimum {
		return "optimum"
	}
	return "normal"
}

func domainSpeed(s string) model.RefundSpeed {
	if s == "optimum" {
		return model.RefundSpeedOptimum
	}
	if s == "normal" {
		return model.RefundSpeedNormal
	}
	return ""
}
