// File: internal/usecase/notification_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// CheckAndNotify dispatches at most one expiry warning per subscription per
	// warn-window crossing. Returns the number of notifications sent.
	CheckAndNotify(ctx context.Context) (int, error)
}

type notificationUC struct {
	subs       repository.SubscriptionRepository
	dispatcher adapter.NotificationDispatcher
	window     time.Duration
	batchLimit int
	log        *zerolog.Logger
}

func NewNotificationUseCase(subs repository.SubscriptionRepository, dispatcher adapter.NotificationDispatcher, window time.Duration, batchLimit int, logger *zerolog.Logger) *notificationUC {
	if window <= 0 {
		window = 72 * time.Hour
	}
	if batchLimit <= 0 {
		batchLimit = 500
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{subs: subs, dispatcher: dispatcher, window: window, batchLimit: batchLimit, log: &l}
}

func (n *notificationUC) CheckAndNotify(ctx context.Context) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.CheckAndNotify")()
	now := time.Now()
	expiring, err := n.subs.FindExpiringWithin(ctx, nil, now, n.window, n.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list expiring: %w", err)
	}
	sent := 0
	for _, s := range expiring {
		if s.IsTerminal() {
			continue
		}
		// LastNotifiedAt inside the current window means this crossing was
		// already announced; a re-run must not notify again.
		windowStart := s.EndDate.Add(-n.window)
		if s.LastNotifiedAt != nil && s.LastNotifiedAt.After(windowStart) {
			continue
		}
		err := n.dispatcher.Send(ctx, adapter.Notification{
			SubscriptionID: s.ID,
			UserEmail:      s.UserEmail,
			Service:        s.Service,
			EndDate:        s.EndDate,
			Template:       "subscription_expiring",
		})
		if err != nil {
			// Fire-and-forget: log, never retry here. LastNotifiedAt is not
			// advanced, so the next tick will try again.
			n.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("expiry notification failed")
			continue
		}
		if err := n.subs.SetLastNotifiedAt(ctx, nil, s.ID, now); err != nil {
			n.log.Error().Err(err).Str("subscription_id", s.ID).Msg("recording notification time failed")
			continue
		}
		metrics.IncNotificationSent()
		sent++
	}
	return sent, nil
}
