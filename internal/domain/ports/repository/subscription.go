package repository

import (
	"context"
	"time"

	"subscription-billing/internal/domain/model"
)

// SubscriptionRepository is the port for subscription entitlements.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)

	// FindActivePastEndDate returns ACTIVE subscriptions whose EndDate is before `now`.
	FindActivePastEndDate(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	// FindGracePastGraceEnd returns GRACE_PERIOD subscriptions whose GracePeriodEnd is before `now`.
	FindGracePastGraceEnd(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	// FindExpiringWithin returns non-terminal subscriptions whose EndDate falls
	// inside [now, now+window], for expiry notifications.
	FindExpiringWithin(ctx context.Context, tx Tx, now time.Time, window time.Duration, limit int) ([]*model.Subscription, error)

	// MarkGracePeriod atomically moves an ACTIVE subscription into GRACE_PERIOD
	// and stamps the grace deadline. Returns false when the row was no longer
	// ACTIVE; re-checking the current status here is what makes the scheduled
	// ticks idempotent.
	MarkGracePeriod(ctx context.Context, tx Tx, id string, graceEnd time.Time) (bool, error)
	// UpdateStatusIf atomically moves a subscription from `from` to `to` and
	// returns false when the row was no longer in `from`.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.SubscriptionStatus) (bool, error)
	// SetLastNotifiedAt records that an expiry notification went out.
	SetLastNotifiedAt(ctx context.Context, tx Tx, id string, at time.Time) error
}
