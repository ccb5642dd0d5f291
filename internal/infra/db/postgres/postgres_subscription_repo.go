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

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

// Schema (managed outside this core):
//
//	subscriptions(id uuid PK, user_email text, service text, start_date timestamptz,
//	              end_date timestamptz, grace_period_end timestamptz, status text,
//	              payment_id uuid, amount bigint, last_notified_at timestamptz)
type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_email, service, start_date, end_date, grace_period_end, status, payment_id, amount, last_notified_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.UserEmail, &s.Service, &s.StartDate, &s.EndDate, &s.GracePeriodEnd,
		&s.Status, &s.PaymentID, &s.Amount, &s.LastNotifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  end_date=$5, grace_period_end=$6, status=$7, last_notified_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q, sub.ID, sub.UserEmail, sub.Service, sub.StartDate, sub.EndDate,
		sub.GracePeriodEnd, sub.Status, sub.PaymentID, sub.Amount, sub.LastNotifiedAt)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActivePastEndDate(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions
 WHERE status='ACTIVE' AND end_date < $1 ORDER BY end_date ASC LIMIT $2;`
	return r.list(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) FindGracePastGraceEnd(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions
 WHERE status='GRACE_PERIOD' AND grace_period_end < $1 ORDER BY grace_period_end ASC LIMIT $2;`
	return r.list(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) FindExpiringWithin(ctx context.Context, tx repository.Tx, now time.Time, window time.Duration, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions
 WHERE status IN ('ACTIVE','GRACE_PERIOD') AND end_date >= $1 AND end_date <= $2
 ORDER BY end_date ASC LIMIT $3;`
	return r.list(ctx, tx, q, now, now.Add(window), limit)
}

func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) MarkGracePeriod(ctx context.Context, tx repository.Tx, id string, graceEnd time.Time) (bool, error) {
	const q = `
UPDATE subscriptions SET status='GRACE_PERIOD', grace_period_end=$2
 WHERE id=$1 AND status='ACTIVE';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, graceEnd)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (bool, error) {
	const q = `UPDATE subscriptions SET status=$3 WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) SetLastNotifiedAt(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE subscriptions SET last_notified_at=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		if err == domain.ErrValidation || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
