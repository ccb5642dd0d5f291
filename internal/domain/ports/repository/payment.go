package repository

import (
	"context"
	"time"

	"subscription-billing/internal/domain/model"
)

// PaymentRepository is the port for captured payments. Payments are written by
// the checkout flow (outside this core) and read-mostly here.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)

	// AcquireRefundLock serializes refund check-then-write per payment for the
	// duration of the surrounding transaction. Must be called with a real Tx.
	AcquireRefundLock(ctx context.Context, tx Tx, paymentID string) error

	// --- Aggregates for the metrics read side ---
	// SumVerified returns the total amount (minor units) and count of verified payments.
	SumVerified(ctx context.Context, tx Tx) (int64, int, error)
	// SumVerifiedSince returns the verified amount captured at or after `since`.
	SumVerifiedSince(ctx context.Context, tx Tx, since time.Time) (int64, error)
	// MonthlyVerifiedTotals returns amount/count per calendar month for the last `months` months.
	MonthlyVerifiedTotals(ctx context.Context, tx Tx, months int) (map[string]model.MonthlyPoint, error)

	// --- History / export ---
	List(ctx context.Context, tx Tx, filter model.PaymentFilter, offset, limit int) ([]*model.Payment, error)
	Count(ctx context.Context, tx Tx, filter model.PaymentFilter) (int, error)
}
