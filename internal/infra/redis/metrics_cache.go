package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/infra/metrics"
	"subscription-billing/internal/usecase"
)

var _ usecase.MetricsUseCase = (*metricsCacheDecorator)(nil)
var _ usecase.SnapshotInvalidator = (*metricsCacheDecorator)(nil)

const (
	keyFinancial = "metrics:financial"
	keyRefunds   = "metrics:refunds"
)

// metricsCacheDecorator caches aggregate snapshots with an explicit TTL and
// explicit invalidation. History and export queries pass straight through:
// they are parameterized and rarely repeated.
type metricsCacheDecorator struct {
	inner usecase.MetricsUseCase
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewMetricsCacheDecorator(inner usecase.MetricsUseCase, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) *metricsCacheDecorator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "MetricsCache").Logger()
	return &metricsCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *metricsCacheDecorator) Financial(ctx context.Context) (*model.FinancialMetrics, error) {
	if val, err := d.cache.Get(ctx, keyFinancial); err == nil {
		var m model.FinancialMetrics
		if json.Unmarshal([]byte(val), &m) == nil {
			metrics.IncCacheRequest("financial", "hit")
			return &m, nil
		}
	}
	metrics.IncCacheRequest("financial", "miss")

	m, err := d.inner.Financial(ctx)
	if err != nil {
		return nil, err
	}
	// Degraded snapshots are not cached; the next read should see real
	// refund numbers as soon as they are available again.
	if !m.RefundDataDegraded {
		d.store(ctx, keyFinancial, m)
	}
	return m, nil
}

func (d *metricsCacheDecorator) RefundMetrics(ctx context.Context) (*model.RefundMetrics, error) {
	if val, err := d.cache.Get(ctx, keyRefunds); err == nil {
		var m model.RefundMetrics
		if json.Unmarshal([]byte(val), &m) == nil {
			metrics.IncCacheRequest("refunds", "hit")
			return &m, nil
		}
	}
	metrics.IncCacheRequest("refunds", "miss")

	m, err := d.inner.RefundMetrics(ctx)
	if err != nil {
		return nil, err
	}
	d.store(ctx, keyRefunds, m)
	return m, nil
}

func (d *metricsCacheDecorator) PaymentHistory(ctx context.Context, page, pageSize int, filter model.PaymentFilter) (*model.PaymentPage, error) {
	return d.inner.PaymentHistory(ctx, page, pageSize, filter)
}

func (d *metricsCacheDecorator) ExportCSV(ctx context.Context, from, to time.Time) (string, error) {
	return d.inner.ExportCSV(ctx, from, to)
}

// Invalidate drops a single cached snapshot.
func (d *metricsCacheDecorator) Invalidate(ctx context.Context, key string) {
	if err := d.cache.Del(ctx, key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

// Clear drops every cached snapshot. Ledger writes call this so dashboards
// never serve refund totals older than the last finalized refund plus TTL.
func (d *metricsCacheDecorator) Clear(ctx context.Context) {
	if err := d.cache.Del(ctx, keyFinancial, keyRefunds); err != nil {
		d.log.Warn().Err(err).Msg("cache clear failed")
	}
}

func (d *metricsCacheDecorator) store(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache store failed")
	}
}
