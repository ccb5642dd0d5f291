package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // created on provider side; awaiting verification
	PaymentStatusVerified PaymentStatus = "verified" // signature verified, money captured
)

// Payment records a captured payment as reported by the provider.
// Immutable after creation except Status.
type Payment struct {
	ID                string // UUID
	UserEmail         string
	OrderID           string // provider order id
	ProviderPaymentID string // provider payment id, used for refunds
	Amount            int64  // minor units (e.g. paise), to avoid float errors
	Currency          string
	Status            PaymentStatus
	CreatedAt         time.Time
}

// IsRefundable reports whether refunds may be initiated against this payment.
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusVerified
}
