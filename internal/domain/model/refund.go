package model

import (
	"time"

	"subscription-billing/internal/domain"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"   // ledger row written; provider call in flight
	RefundStatusProcessed RefundStatus = "PROCESSED" // provider accepted; terminal
	RefundStatusFailed    RefundStatus = "FAILED"    // provider rejected or timed out; terminal
)

type RefundSpeed string

const (
	RefundSpeedOptimum RefundSpeed = "OPTIMUM" // instant when the provider supports it
	RefundSpeedNormal  RefundSpeed = "NORMAL"
)

// Refund is one row of the refund ledger. Created by an admin action and
// mutated exactly once, when the provider call is finalized.
type Refund struct {
	ID               string // ULID, time-ordered
	PaymentID        string // UUID of the refunded payment
	UserEmail        string
	Amount           int64 // minor units
	Status           RefundStatus
	SpeedRequested   RefundSpeed
	SpeedProcessed   RefundSpeed
	Reason           string
	ProviderRefundID string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	ErrorCode        string
	ErrorDescription string
	InitiatedBy      string // admin actor, for audit
}

// NewRefund builds a PENDING ledger row. Amount must already have been
// validated against the payment's remaining refundable amount.
func NewRefund(id string, payment *Payment, amount int64, speed RefundSpeed, reason, actor string) (*Refund, error) {
	if id == "" || payment == nil {
		return nil, domain.ErrValidation
	}
	if amount <= 0 {
		return nil, domain.ErrValidation
	}
	if speed == "" {
		speed = RefundSpeedNormal
	}
	return &Refund{
		ID:             id,
		PaymentID:      payment.ID,
		UserEmail:      payment.UserEmail,
		Amount:         amount,
		Status:         RefundStatusPending,
		SpeedRequested: speed,
		Reason:         reason,
		CreatedAt:      time.Now(),
		InitiatedBy:    actor,
	}, nil
}

// IsTerminal reports whether the refund may no longer be mutated.
func (r *Refund) IsTerminal() bool {
	return r.Status == RefundStatusProcessed || r.Status == RefundStatusFailed
}

// RefundSummary is the read model returned for a payment's refund history.
type RefundSummary struct {
	PaymentID           string
	OriginalAmount      int64
	TotalRefunded       int64
	RemainingRefundable int64
	Refunds             []*Refund
	IsFullyRefunded     bool
}
