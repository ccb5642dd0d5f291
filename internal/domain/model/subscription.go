package model

import (
	"time"

	"subscription-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive      SubscriptionStatus = "ACTIVE"
	SubscriptionStatusGracePeriod SubscriptionStatus = "GRACE_PERIOD"
	SubscriptionStatusExpired     SubscriptionStatus = "EXPIRED"   // terminal
	SubscriptionStatusCancelled   SubscriptionStatus = "CANCELLED" // terminal
)

// Subscription is a user's paid entitlement to a service. Rows are never
// deleted; a subscription is archived in place via its status.
type Subscription struct {
	ID             string // UUID
	UserEmail      string
	Service        string
	StartDate      time.Time
	EndDate        time.Time
	GracePeriodEnd time.Time
	Status         SubscriptionStatus
	PaymentID      string // UUID of the originating payment
	Amount         int64  // minor units paid
	LastNotifiedAt *time.Time
}

// NewSubscription creates an ACTIVE subscription for a verified payment.
func NewSubscription(id string, payment *Payment, service string, duration, grace time.Duration) (*Subscription, error) {
	if id == "" || payment == nil || service == "" || duration <= 0 {
		return nil, domain.ErrValidation
	}
	now := time.Now()
	end := now.Add(duration)
	return &Subscription{
		ID:             id,
		UserEmail:      payment.UserEmail,
		Service:        service,
		StartDate:      now,
		EndDate:        end,
		GracePeriodEnd: end.Add(grace),
		Status:         SubscriptionStatusActive,
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
	}, nil
}

// IsTerminal reports whether no further status transition is allowed.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusExpired || s.Status == SubscriptionStatusCancelled
}

// CanCancel reports whether an explicit cancel action is allowed.
func (s *Subscription) CanCancel() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusGracePeriod
}
