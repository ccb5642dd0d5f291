//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"subscription-billing/internal/domain/model"
)

func seedSubscription(t *testing.T, payment *model.Payment, status model.SubscriptionStatus, endDate time.Time) *model.Subscription {
	t.Helper()
	sub := &model.Subscription{
		ID:             uuid.NewString(),
		UserEmail:      payment.UserEmail,
		Service:        "premium",
		StartDate:      endDate.AddDate(0, -1, 0),
		EndDate:        endDate,
		GracePeriodEnd: endDate.Add(72 * time.Hour),
		Status:         status,
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
	}
	if err := NewSubscriptionRepo(testPool).Save(context.Background(), nil, sub); err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
	return sub
}

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)

	t.Run("should save and find a subscription", func(t *testing.T) {
		cleanup(t)

		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, time.Now())
		sub := seedSubscription(t, payment, model.SubscriptionStatusActive, time.Now().AddDate(0, 1, 0))

		found, err := repo.FindByID(ctx, nil, sub.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Service != "premium" || found.PaymentID != payment.ID {
			t.Errorf("found wrong subscription: %+v", found)
		}
		if found.LastNotifiedAt != nil {
			t.Error("expected LastNotifiedAt to start empty")
		}
	})

	t.Run("should find active subscriptions past their end date", func(t *testing.T) {
		cleanup(t)

		now := time.Now()
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		overdue := seedSubscription(t, payment, model.SubscriptionStatusActive, now.Add(-time.Hour))
		seedSubscription(t, payment, model.SubscriptionStatusActive, now.AddDate(0, 1, 0))
		seedSubscription(t, payment, model.SubscriptionStatusCancelled, now.Add(-time.Hour))

		due, err := repo.FindActivePastEndDate(ctx, nil, now, 100)
		if err != nil {
			t.Fatalf("FindActivePastEndDate failed: %v", err)
		}
		if len(due) != 1 || due[0].ID != overdue.ID {
			t.Errorf("expected only the overdue active subscription, got %d rows", len(due))
		}
	})

	t.Run("should find grace subscriptions past their grace deadline", func(t *testing.T) {
		cleanup(t)

		now := time.Now()
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		lapsed := seedSubscription(t, payment, model.SubscriptionStatusGracePeriod, now.Add(-100*time.Hour))
		seedSubscription(t, payment, model.SubscriptionStatusGracePeriod, now.Add(-time.Hour))

		due, err := repo.FindGracePastGraceEnd(ctx, nil, now, 100)
		if err != nil {
			t.Fatalf("FindGracePastGraceEnd failed: %v", err)
		}
		if len(due) != 1 || due[0].ID != lapsed.ID {
			t.Errorf("expected only the lapsed grace subscription, got %d rows", len(due))
		}
	})

	t.Run("should find subscriptions expiring within the window", func(t *testing.T) {
		cleanup(t)

		now := time.Now()
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		soon := seedSubscription(t, payment, model.SubscriptionStatusActive, now.Add(24*time.Hour))
		seedSubscription(t, payment, model.SubscriptionStatusActive, now.AddDate(0, 1, 0))
		seedSubscription(t, payment, model.SubscriptionStatusExpired, now.Add(24*time.Hour))

		expiring, err := repo.FindExpiringWithin(ctx, nil, now, 72*time.Hour, 100)
		if err != nil {
			t.Fatalf("FindExpiringWithin failed: %v", err)
		}
		if len(expiring) != 1 || expiring[0].ID != soon.ID {
			t.Errorf("expected only the soon-to-expire subscription, got %d rows", len(expiring))
		}
	})

	t.Run("should mark grace period only from active", func(t *testing.T) {
		cleanup(t)

		now := time.Now()
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		sub := seedSubscription(t, payment, model.SubscriptionStatusActive, now.Add(-time.Hour))

		graceEnd := now.Add(72 * time.Hour).Truncate(time.Millisecond)
		ok, err := repo.MarkGracePeriod(ctx, nil, sub.ID, graceEnd)
		if err != nil {
			t.Fatalf("MarkGracePeriod failed: %v", err)
		}
		if !ok {
			t.Fatal("expected first MarkGracePeriod to succeed")
		}

		ok, err = repo.MarkGracePeriod(ctx, nil, sub.ID, graceEnd.Add(time.Hour))
		if err != nil {
			t.Fatalf("second MarkGracePeriod errored: %v", err)
		}
		if ok {
			t.Error("expected second MarkGracePeriod to be a no-op")
		}

		found, _ := repo.FindByID(ctx, nil, sub.ID)
		if found.Status != model.SubscriptionStatusGracePeriod {
			t.Errorf("expected GRACE_PERIOD, got %q", found.Status)
		}
		if !found.GracePeriodEnd.Equal(graceEnd) {
			t.Errorf("grace deadline not stamped, got %v want %v", found.GracePeriodEnd, graceEnd)
		}
	})

	t.Run("should update status only from the expected state", func(t *testing.T) {
		cleanup(t)

		now := time.Now()
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		sub := seedSubscription(t, payment, model.SubscriptionStatusGracePeriod, now.Add(-time.Hour))

		ok, err := repo.UpdateStatusIf(ctx, nil, sub.ID, model.SubscriptionStatusGracePeriod, model.SubscriptionStatusExpired)
		if err != nil || !ok {
			t.Fatalf("UpdateStatusIf failed: ok=%v err=%v", ok, err)
		}

		ok, err = repo.UpdateStatusIf(ctx, nil, sub.ID, model.SubscriptionStatusActive, model.SubscriptionStatusCancelled)
		if err != nil {
			t.Fatalf("second UpdateStatusIf errored: %v", err)
		}
		if ok {
			t.Error("expected transition from a stale state to be rejected")
		}

		found, _ := repo.FindByID(ctx, nil, sub.ID)
		if found.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected EXPIRED to stick, got %q", found.Status)
		}
	})

	t.Run("should record the notification timestamp", func(t *testing.T) {
		cleanup(t)

		now := time.Now().Truncate(time.Millisecond)
		payment := seedPayment(t, "alice@example.com", 49_900, model.PaymentStatusVerified, now)
		sub := seedSubscription(t, payment, model.SubscriptionStatusActive, now.Add(24*time.Hour))

		if err := repo.SetLastNotifiedAt(ctx, nil, sub.ID, now); err != nil {
			t.Fatalf("SetLastNotifiedAt failed: %v", err)
		}

		found, _ := repo.FindByID(ctx, nil, sub.ID)
		if found.LastNotifiedAt == nil || !found.LastNotifiedAt.Equal(now) {
			t.Errorf("LastNotifiedAt not persisted, got %v", found.LastNotifiedAt)
		}
	})
}
