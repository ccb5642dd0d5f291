package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(subscriptionTransitionsTotal, expiryNotificationsSent) }

var subscriptionTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Subscription lifecycle transitions by target state.",
	},
	[]string{"to"}, // 'grace_period', 'expired', 'cancelled'
)

var expiryNotificationsSent = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "expiry_notifications_sent_total",
		Help: "Expiry warning notifications dispatched.",
	},
)

func IncSubscriptionTransition(to string) {
	subscriptionTransitionsTotal.WithLabelValues(norm(to)).Inc()
}

func IncNotificationSent() {
	expiryNotificationsSent.Inc()
}
