// File: internal/infra/adapters/notify/noop_dispatcher.go
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.NotificationDispatcher = (*NoopDispatcher)(nil)

// NoopDispatcher logs the notification instead of delivering it.
type NoopDispatcher struct {
	log *zerolog.Logger
}

func NewNoopDispatcher(logger *zerolog.Logger) *NoopDispatcher {
	l := logger.With().Str("component", "NoopDispatcher").Logger()
	return &NoopDispatcher{log: &l}
}

func (d *NoopDispatcher) Send(ctx context.Context, n adapter.Notification) error {
	d.log.Info().
		Str("subscription_id", n.SubscriptionID).
		Str("user_email", n.UserEmail).
		Str("template", n.Template).
		Time("end_date", n.EndDate).
		Msg("notification suppressed")
	return nil
}
