// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ LifecycleUseCase = (*lifecycleUC)(nil)

// LifecycleUseCase owns the subscription state machine:
// ACTIVE -> GRACE_PERIOD -> EXPIRED, with CANCELLED reachable only from
// ACTIVE or GRACE_PERIOD via an explicit action. EXPIRED and CANCELLED
// are terminal.
type LifecycleUseCase interface {
	// ProcessExpired moves every ACTIVE subscription past its end date into
	// GRACE_PERIOD. Returns the number successfully transitioned.
	ProcessExpired(ctx context.Context) (int, error)
	// ProcessGraceExpiry moves every GRACE_PERIOD subscription past its grace
	// end into EXPIRED. Returns the number successfully transitioned.
	ProcessGraceExpiry(ctx context.Context) (int, error)
	// Cancel terminates a subscription immediately, skipping grace.
	Cancel(ctx context.Context, subscriptionID, actor string) (*model.Subscription, error)
	// ActivateForPayment creates an ACTIVE subscription for a verified payment.
	ActivateForPayment(ctx context.Context, paymentID, service string, duration time.Duration) (*model.Subscription, error)
}

type lifecycleUC struct {
	subs       repository.SubscriptionRepository
	payments   repository.PaymentRepository
	grace      time.Duration
	batchLimit int
	log        *zerolog.Logger
}

func NewLifecycleUseCase(subs repository.SubscriptionRepository, payments repository.PaymentRepository, grace time.Duration, batchLimit int, logger *zerolog.Logger) *lifecycleUC {
	if grace <= 0 {
		grace = 72 * time.Hour
	}
	if batchLimit <= 0 {
		batchLimit = 500
	}
	l := logger.With().Str("component", "LifecycleUC").Logger()
	return &lifecycleUC{subs: subs, payments: payments, grace: grace, batchLimit: batchLimit, log: &l}
}

func (u *lifecycleUC) ProcessExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "LifecycleUC.ProcessExpired")()
	now := time.Now()
	due, err := u.subs.FindActivePastEndDate(ctx, nil, now, u.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}
	count := 0
	for _, s := range due {
		// One bad record is logged and skipped, never aborts the batch.
		graceEnd := s.EndDate.Add(u.grace)
		ok, err := u.subs.MarkGracePeriod(ctx, nil, s.ID, graceEnd)
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", s.ID).Msg("grace transition failed")
			continue
		}
		if !ok {
			// Re-checked status lost the race (cancelled or already moved).
			continue
		}
		metrics.IncSubscriptionTransition("grace_period")
		count++
	}
	return count, nil
}

func (u *lifecycleUC) ProcessGraceExpiry(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "LifecycleUC.ProcessGraceExpiry")()
	now := time.Now()
	due, err := u.subs.FindGracePastGraceEnd(ctx, nil, now, u.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list grace-expired: %w", err)
	}
	count := 0
	for _, s := range due {
		ok, err := u.subs.UpdateStatusIf(ctx, nil, s.ID, model.SubscriptionStatusGracePeriod, model.SubscriptionStatusExpired)
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", s.ID).Msg("expire transition failed")
			continue
		}
		if !ok {
			continue
		}
		metrics.IncSubscriptionTransition("expired")
		count++
	}
	return count, nil
}

func (u *lifecycleUC) Cancel(ctx context.Context, subscriptionID, actor string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "LifecycleUC.Cancel")()
	s, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !s.CanCancel() {
		return nil, fmt.Errorf("subscription %s is %s: %w", s.ID, s.Status, domain.ErrTerminalState)
	}
	ok, err := u.subs.UpdateStatusIf(ctx, nil, s.ID, s.Status, model.SubscriptionStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("subscription %s changed state concurrently: %w", s.ID, domain.ErrConflict)
	}
	s.Status = model.SubscriptionStatusCancelled
	metrics.IncSubscriptionTransition("cancelled")
	u.log.Info().Str("subscription_id", s.ID).Str("actor", actor).Msg("subscription cancelled")
	return s, nil
}

func (u *lifecycleUC) ActivateForPayment(ctx context.Context, paymentID, service string, duration time.Duration) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "LifecycleUC.ActivateForPayment")()
	payment, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusVerified {
		return nil, fmt.Errorf("payment %s has status %s: %w", payment.ID, payment.Status, domain.ErrPaymentNotVerified)
	}
	s, err := model.NewSubscription(uuid.NewString(), payment, service, duration, u.grace)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", s.ID).Str("payment_id", payment.ID).Str("service", service).Msg("subscription activated")
	return s, nil
}
