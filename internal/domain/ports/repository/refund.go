package repository

import (
	"context"
	"time"

	"subscription-billing/internal/domain/model"
)

// RefundRepository is the port for the refund ledger.
type RefundRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Refund) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Refund, error)
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.Refund, error)

	// SumProcessedByPayment returns the sum of PROCESSED refund amounts for a
	// payment. This is the remaining-refundable basis exposed to readers.
	SumProcessedByPayment(ctx context.Context, tx Tx, paymentID string) (int64, error)

	// SumReservedByPayment returns the sum of non-FAILED (PENDING + PROCESSED)
	// refund amounts. The write path checks against this so that an in-flight
	// PENDING row already reserves its amount; callers must read it inside the
	// transaction that serializes refund writes per payment.
	SumReservedByPayment(ctx context.Context, tx Tx, paymentID string) (int64, error)

	// Finalize moves a PENDING refund to PROCESSED or FAILED exactly once.
	// Returns false when the refund was no longer PENDING.
	Finalize(ctx context.Context, tx Tx, id string, status model.RefundStatus, speedProcessed model.RefundSpeed, providerRefundID string, processedAt *time.Time, errCode, errDesc string) (bool, error)

	// --- Aggregates for the metrics read side ---
	// SumProcessed returns total PROCESSED amount (minor units) and count.
	SumProcessed(ctx context.Context, tx Tx) (int64, int, error)
	// SumProcessedSince returns the PROCESSED amount finalized at or after `since`.
	SumProcessedSince(ctx context.Context, tx Tx, since time.Time) (int64, int, error)
	// MonthlyProcessedTotals returns amount/count per calendar month for the last `months` months.
	MonthlyProcessedTotals(ctx context.Context, tx Tx, months int) (map[string]model.MonthlyPoint, error)
	// CountBySpeed returns PROCESSED refund counts keyed by processed speed.
	CountBySpeed(ctx context.Context, tx Tx) (map[model.RefundSpeed]int, error)
	// AvgProcessingSeconds averages processedAt-createdAt over PROCESSED refunds.
	AvgProcessingSeconds(ctx context.Context, tx Tx) (float64, error)
}
