package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.RefundRepository = (*refundRepo)(nil)

// Schema (managed outside this core):
//
//	refunds(id text PK, payment_id uuid, user_email text, amount bigint,
//	        status text, speed_requested text, speed_processed text, reason text,
//	        provider_refund_id text, created_at timestamptz, processed_at timestamptz,
//	        error_code text, error_description text, initiated_by text)
type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundCols = `id, payment_id, user_email, amount, status, speed_requested, speed_processed, reason, provider_refund_id, created_at, processed_at, error_code, error_description, initiated_by`

func scanRefund(row interface{ Scan(...interface{}) error }) (*model.Refund, error) {
	r := &model.Refund{}
	var speedProcessed, providerRefundID, errCode, errDesc *string
	err := row.Scan(&r.ID, &r.PaymentID, &r.UserEmail, &r.Amount, &r.Status, &r.SpeedRequested,
		&speedProcessed, &r.Reason, &providerRefundID, &r.CreatedAt, &r.ProcessedAt, &errCode, &errDesc, &r.InitiatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if speedProcessed != nil {
		r.SpeedProcessed = model.RefundSpeed(*speedProcessed)
	}
	if providerRefundID != nil {
		r.ProviderRefundID = *providerRefundID
	}
	if errCode != nil {
		r.ErrorCode = *errCode
	}
	if errDesc != nil {
		r.ErrorDescription = *errDesc
	}
	return r, nil
}

func (r *refundRepo) Save(ctx context.Context, tx repository.Tx, ref *model.Refund) error {
	const q = `
INSERT INTO refunds (` + refundCols + `)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,NULLIF($9,''),$10,$11,NULLIF($12,''),NULLIF($13,''),$14);`

	_, err := execSQL(ctx, r.pool, tx, q, ref.ID, ref.PaymentID, ref.UserEmail, ref.Amount, ref.Status,
		ref.SpeedRequested, string(ref.SpeedProcessed), ref.Reason, ref.ProviderRefundID,
		ref.CreatedAt, ref.ProcessedAt, ref.ErrorCode, ref.ErrorDescription, ref.InitiatedBy)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	const q = `SELECT ` + refundCols + ` FROM refunds WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.Refund, error) {
	const q = `SELECT ` + refundCols + ` FROM refunds WHERE payment_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (r *refundRepo) SumProcessedByPayment(ctx context.Context, tx repository.Tx, paymentID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM refunds WHERE payment_id=$1 AND status='PROCESSED';`
	return r.sumOne(ctx, tx, q, paymentID)
}

func (r *refundRepo) SumReservedByPayment(ctx context.Context, tx repository.Tx, paymentID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM refunds WHERE payment_id=$1 AND status <> 'FAILED';`
	return r.sumOne(ctx, tx, q, paymentID)
}

func (r *refundRepo) sumOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

// Finalize flips a PENDING row exactly once; the status guard in the WHERE
// clause is what keeps PROCESSED/FAILED refunds immutable.
func (r *refundRepo) Finalize(ctx context.Context, tx repository.Tx, id string, status model.RefundStatus, speedProcessed model.RefundSpeed, providerRefundID string, processedAt *time.Time, errCode, errDesc string) (bool, error) {
	const q = `
UPDATE refunds
   SET status=$2,
       speed_processed=NULLIF($3,''),
       provider_refund_id=NULLIF($4,''),
       processed_at=$5,
       error_code=NULLIF($6,''),
       error_description=NULLIF($7,'')
 WHERE id=$1
   AND status='PENDING';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, string(speedProcessed), providerRefundID, processedAt, errCode, errDesc)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *refundRepo) SumProcessed(ctx context.Context, tx repository.Tx) (int64, int, error) {
	const q = `SELECT COALESCE(SUM(amount),0), COUNT(*) FROM refunds WHERE status='PROCESSED';`
	return r.sumCount(ctx, tx, q)
}

func (r *refundRepo) SumProcessedSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, int, error) {
	const q = `SELECT COALESCE(SUM(amount),0), COUNT(*) FROM refunds WHERE status='PROCESSED' AND processed_at >= $1;`
	return r.sumCount(ctx, tx, q, since)
}

func (r *refundRepo) sumCount(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int64, int, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, 0, err
	}
	var sum int64
	var count int
	if err := row.Scan(&sum, &count); err != nil {
		return 0, 0, domain.ErrReadDatabaseRow
	}
	return sum, count, nil
}

func (r *refundRepo) MonthlyProcessedTotals(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error) {
	const q = `
SELECT to_char(date_trunc('month', processed_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       COALESCE(SUM(amount),0), COUNT(*)
  FROM refunds
 WHERE status='PROCESSED'
   AND processed_at AT TIME ZONE 'UTC' >= date_trunc('month', NOW() AT TIME ZONE 'UTC') - make_interval(months => $1 - 1)
 GROUP BY 1;`
	rows, err := queryRows(ctx, r.pool, tx, q, months)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[string]model.MonthlyPoint)
	for rows.Next() {
		var p model.MonthlyPoint
		if err := rows.Scan(&p.Month, &p.Amount, &p.Count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[p.Month] = p
	}
	return out, nil
}

func (r *refundRepo) CountBySpeed(ctx context.Context, tx repository.Tx) (map[model.RefundSpeed]int, error) {
	const q = `
SELECT COALESCE(speed_processed, speed_requested), COUNT(*)
  FROM refunds
 WHERE status='PROCESSED'
 GROUP BY 1;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[model.RefundSpeed]int)
	for rows.Next() {
		var speed string
		var count int
		if err := rows.Scan(&speed, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.RefundSpeed(speed)] = count
	}
	return out, nil
}

func (r *refundRepo) AvgProcessingSeconds(ctx context.Context, tx repository.Tx) (float64, error) {
	const q = `
SELECT COALESCE(AVG(EXTRACT(EPOCH FROM processed_at - created_at)), 0)
  FROM refunds
 WHERE status='PROCESSED' AND processed_at IS NOT NULL;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, err
	}
	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return avg, nil
}
