package sched

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-billing/internal/config"
	"subscription-billing/internal/infra/scheduler"
	"subscription-billing/internal/usecase"
)

// ReconciliationTasks builds the three periodic reconciliation jobs. Each is
// independently scheduled and independently failing; the notification task is
// offset so the three never contend on the same tick.
func ReconciliationTasks(cfg config.SchedulerConfig, lifecycle usecase.LifecycleUseCase, notif usecase.NotificationUseCase, logger *zerolog.Logger) []scheduler.Task {
	expLog := logger.With().Str("component", "ExpirationCheck").Logger()
	graceLog := logger.With().Str("component", "GraceCheck").Logger()
	notifLog := logger.With().Str("component", "NotificationCheck").Logger()

	return []scheduler.Task{
		{
			Name:         "expiration_check",
			Interval:     cfg.ExpirationInterval,
			InitialDelay: cfg.StartupDelay,
			Handler: func(ctx context.Context) error {
				n, err := lifecycle.ProcessExpired(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					expLog.Info().Int("count", n).Msg("subscriptions moved to grace period")
				}
				return nil
			},
		},
		{
			Name:         "grace_check",
			Interval:     cfg.GraceInterval,
			InitialDelay: cfg.StartupDelay,
			Handler: func(ctx context.Context) error {
				n, err := lifecycle.ProcessGraceExpiry(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					graceLog.Info().Int("count", n).Msg("subscriptions expired")
				}
				return nil
			},
		},
		{
			Name:         "notification_check",
			Interval:     cfg.NotificationInterval,
			InitialDelay: cfg.StartupDelay + cfg.NotificationOffset,
			Handler: func(ctx context.Context) error {
				n, err := notif.CheckAndNotify(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					notifLog.Info().Int("count", n).Msg("expiry notifications sent")
				}
				return nil
			},
		},
	}
}
