package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

// Schema (managed outside this core):
//
//	payments(id uuid PK, user_email text, order_id text, provider_payment_id text,
//	         amount bigint, currency text, status text, created_at timestamptz)
type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentCols = `id, user_email, order_id, provider_payment_id, amount, currency, status, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserEmail, &p.OrderID, &p.ProviderPaymentID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET status=$7;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserEmail, p.OrderID, p.ProviderPaymentID, p.Amount, p.Currency, p.Status, p.CreatedAt)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// AcquireRefundLock takes a transaction-scoped advisory lock on the payment's
// hash. Every refund check-then-write on the same payment queues behind it.
func (r *paymentRepo) AcquireRefundLock(ctx context.Context, tx repository.Tx, paymentID string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, hashToInt64(paymentID))
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) SumVerified(ctx context.Context, tx repository.Tx) (int64, int, error) {
	const q = `SELECT COALESCE(SUM(amount),0), COUNT(*) FROM payments WHERE status='verified';`
	row, err := pickRow(ctx, r.pool, tx, q)
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

func (r *paymentRepo) SumVerifiedSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='verified' AND created_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *paymentRepo) MonthlyVerifiedTotals(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error) {
	const q = `
SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       COALESCE(SUM(amount),0), COUNT(*)
  FROM payments
 WHERE status='verified'
   AND created_at AT TIME ZONE 'UTC' >= date_trunc('month', NOW() AT TIME ZONE 'UTC') - make_interval(months => $1 - 1)
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

// listFilter renders the optional history filters into a WHERE clause.
func listFilter(filter model.PaymentFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	n := 0
	if filter.Status != "" {
		n++
		where += ` AND status=$` + strconv.Itoa(n)
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		n++
		where += ` AND created_at >= $` + strconv.Itoa(n)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		n++
		where += ` AND created_at <= $` + strconv.Itoa(n)
		args = append(args, *filter.To)
	}
	return where, args
}

func (r *paymentRepo) List(ctx context.Context, tx repository.Tx, filter model.PaymentFilter, offset, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := listFilter(filter)
	q := `SELECT ` + paymentCols + ` FROM payments` + where +
		` ORDER BY created_at DESC OFFSET $` + strconv.Itoa(len(args)+1) + ` LIMIT $` + strconv.Itoa(len(args)+2) + `;`
	args = append(args, offset, limit)

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p := &model.Payment{}
		if err := rows.Scan(&p.ID, &p.UserEmail, &p.OrderID, &p.ProviderPaymentID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) Count(ctx context.Context, tx repository.Tx, filter model.PaymentFilter) (int, error) {
	where, args := listFilter(filter)
	q := `SELECT COUNT(*) FROM payments` + where + `;`
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return count, nil
}
