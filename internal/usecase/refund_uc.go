// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

// RefundUseCase owns the refund ledger: it enforces that cumulative refunds
// never exceed what was paid and drives each refund through its single
// PENDING -> PROCESSED|FAILED transition.
type RefundUseCase interface {
	// Initiate writes a PENDING ledger row, calls the provider, and finalizes
	// the row exactly once. A nil amount means "refund everything remaining".
	Initiate(ctx context.Context, paymentID string, amount *int64, speed model.RefundSpeed, reason, actor string) (*model.Refund, error)
	// Summary is a pure read of a payment's refund history.
	Summary(ctx context.Context, paymentID string) (*model.RefundSummary, error)
}

// SnapshotInvalidator lets ledger writes drop cached metric snapshots.
// Implemented by the redis metrics cache decorator; nil-safe when caching is off.
type SnapshotInvalidator interface {
	Clear(ctx context.Context)
}

type refundUC struct {
	payments repository.PaymentRepository
	refunds  repository.RefundRepository
	gateway  adapter.RefundGateway
	tm       repository.TransactionManager
	inv      SnapshotInvalidator
	log      *zerolog.Logger
}

func NewRefundUseCase(payments repository.PaymentRepository, refunds repository.RefundRepository, gateway adapter.RefundGateway, tm repository.TransactionManager, inv SnapshotInvalidator, logger *zerolog.Logger) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{payments: payments, refunds: refunds, gateway: gateway, tm: tm, inv: inv, log: &l}
}

func newRefundID() string {
	return ulid.Make().String()
}

func (u *refundUC) Initiate(ctx context.Context, paymentID string, amount *int64, speed model.RefundSpeed, reason, actor string) (*model.Refund, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Initiate")()
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is empty: %w", domain.ErrValidation)
	}
	if amount != nil && *amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive: %w", domain.ErrValidation)
	}

	var (
		refund  *model.Refund
		payment *model.Payment
	)
	// The check-then-write is serialized per payment: the advisory lock is held
	// for the duration of the transaction, and the remaining amount is re-read
	// under it. A PENDING row reserves its amount until it is finalized, so two
	// concurrent initiations that jointly overflow can never both commit.
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.AcquireRefundLock(ctx, tx, paymentID); err != nil {
			return fmt.Errorf("acquire refund lock: %w", err)
		}
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if !p.IsRefundable() {
			return fmt.Errorf("payment %s has status %s: %w", p.ID, p.Status, domain.ErrPaymentNotVerified)
		}
		reserved, err := u.refunds.SumReservedByPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		remaining := p.Amount - reserved
		amt := remaining
		if amount != nil {
			amt = *amount
		}
		if amt <= 0 || amt > remaining {
			return fmt.Errorf("requested %d with %d remaining on payment %s: %w",
				amt, remaining, p.ID, domain.ErrInvariantViolation)
		}
		r, err := model.NewRefund(newRefundID(), p, amt, speed, reason, actor)
		if err != nil {
			return err
		}
		if err := u.refunds.Save(ctx, tx, r); err != nil {
			return err
		}
		refund = r
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("refund_id", refund.ID).
		Str("payment_id", payment.ID).
		Str("user_email", logging.Redact(payment.UserEmail)).
		Int64("amount", refund.Amount).
		Str("actor", actor).
		Msg("refund initiated")

	// Provider call happens outside the transaction; the committed PENDING row
	// keeps the amount reserved whatever happens here.
	res, provErr := u.gateway.CreateRefund(ctx, payment.ProviderPaymentID, refund.Amount, refund.SpeedRequested)
	if provErr != nil {
		return u.finalizeFailed(ctx, refund, res, provErr)
	}
	return u.finalizeProcessed(ctx, refund, res)
}

func (u *refundUC) finalizeProcessed(ctx context.Context, r *model.Refund, res adapter.RefundResult) (*model.Refund, error) {
	speed := res.SpeedProcessed
	if speed == "" {
		speed = r.SpeedRequested
	}
	processedAt := res.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	ok, err := u.refunds.Finalize(ctx, nil, r.ID, model.RefundStatusProcessed, speed, res.ProviderRefundID, &processedAt, "", "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("refund %s was finalized concurrently: %w", r.ID, domain.ErrConflict)
	}
	r.Status = model.RefundStatusProcessed
	r.SpeedProcessed = speed
	r.ProviderRefundID = res.ProviderRefundID
	r.ProcessedAt = &processedAt

	metrics.IncRefund("processed")
	metrics.ObserveRefundProcessing(processedAt.Sub(r.CreatedAt).Seconds())
	if u.inv != nil {
		u.inv.Clear(ctx)
	}
	u.log.Info().Str("refund_id", r.ID).Str("provider_refund_id", res.ProviderRefundID).Msg("refund processed")
	return r, nil
}

func (u *refundUC) finalizeFailed(ctx context.Context, r *model.Refund, res adapter.RefundResult, provErr error) (*model.Refund, error) {
	code := res.ErrorCode
	if code == "" {
		code = "PROVIDER_ERROR"
	}
	desc := res.ErrorDescription
	if desc == "" {
		desc = provErr.Error()
	}
	now := time.Now()
	ok, err := u.refunds.Finalize(ctx, nil, r.ID, model.RefundStatusFailed, "", "", &now, code, desc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("refund %s was finalized concurrently: %w", r.ID, domain.ErrConflict)
	}
	r.Status = model.RefundStatusFailed
	r.ProcessedAt = &now
	r.ErrorCode = code
	r.ErrorDescription = desc

	metrics.IncRefund("failed")
	if u.inv != nil {
		u.inv.Clear(ctx)
	}
	u.log.Warn().Str("refund_id", r.ID).Str("error_code", code).Str("error_description", desc).Msg("refund failed at provider")
	// No automatic retry: recovery requires a fresh Initiate call.
	return r, fmt.Errorf("%w: %s", domain.ErrProvider, desc)
}

func (u *refundUC) Summary(ctx context.Context, paymentID string) (*model.RefundSummary, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Summary")()
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	refunds, err := u.refunds.ListByPayment(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	var processed int64
	for _, r := range refunds {
		if r.Status == model.RefundStatusProcessed {
			processed += r.Amount
		}
	}
	return &model.RefundSummary{
		PaymentID:           p.ID,
		OriginalAmount:      p.Amount,
		TotalRefunded:       processed,
		RemainingRefundable: p.Amount - processed,
		Refunds:             refunds,
		IsFullyRefunded:     processed >= p.Amount,
	}, nil
}
