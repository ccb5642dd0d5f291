package adapter

import (
	"context"
	"time"

	"subscription-billing/internal/domain/model"
)

// RefundResult captures a minimal, provider-agnostic result of a refund request.
type RefundResult struct {
	ProviderRefundID string
	Status           string            // provider status e.g. "processed" / "pending" / "failed"
	SpeedProcessed   model.RefundSpeed // speed the provider actually applied
	ProcessedAt      time.Time         // provider timestamp if available
	ErrorCode        string            // set on rejection
	ErrorDescription string
}

// RefundGateway is the hex port for the payment provider's refund API.
// The provider call is opaque: it either accepts the refund or rejects it with
// its own error codes; this core never retries automatically.
type RefundGateway interface {
	Name() string

	// CreateRefund issues a refund against a captured payment.
	// providerPaymentID is the provider-side payment id, amount is minor units.
	CreateRefund(ctx context.Context, providerPaymentID string, amount int64, speed model.RefundSpeed) (RefundResult, error)
}
