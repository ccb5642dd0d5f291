package adapter

import (
	"context"
	"time"
)

// Notification is what the dispatcher needs to render an expiry warning.
type Notification struct {
	SubscriptionID string
	UserEmail      string
	Service        string
	EndDate        time.Time
	Template       string // e.g. "subscription_expiring"
}

// NotificationDispatcher is the hex port for the outbound notification channel.
// Send is fire-and-forget from the caller's perspective: failures are logged by
// the caller, never retried.
type NotificationDispatcher interface {
	Send(ctx context.Context, n Notification) error
}
