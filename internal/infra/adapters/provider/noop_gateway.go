// File: internal/infra/adapters/provider/noop_gateway.go
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.RefundGateway = (*NoopGateway)(nil)

// NoopGateway approves every refund in memory. Used in dev and tests.
type NoopGateway struct {
	mu  sync.Mutex
	seq int64
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateRefund(ctx context.Context, providerPaymentID string, amount int64, speed model.RefundSpeed) (adapter.RefundResult, error) {
	g.mu.Lock()
	g.seq++
	id := fmt.Sprintf("rfnd_noop_%d", g.seq)
	g.mu.Unlock()
	return adapter.RefundResult{
		ProviderRefundID: id,
		Status:           "processed",
		SpeedProcessed:   speed,
		ProcessedAt:      time.Now().UTC(),
	}, nil
}
