// File: internal/usecase/metrics_uc.go
package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/logging"
)

// Compile-time check
var _ MetricsUseCase = (*metricsUC)(nil)

// MetricsUseCase is the read-only financial aggregator. Reads take no locks
// and tolerate eventual consistency with recent ledger writes.
type MetricsUseCase interface {
	// Financial aggregates revenue, refunds and net revenue. When refund data
	// is unavailable the refund-derived fields degrade to zero and the call
	// still succeeds.
	Financial(ctx context.Context) (*model.FinancialMetrics, error)
	// RefundMetrics aggregates the refund side of the ledger.
	RefundMetrics(ctx context.Context) (*model.RefundMetrics, error)
	// PaymentHistory pages through payments, newest first.
	PaymentHistory(ctx context.Context, page, pageSize int, filter model.PaymentFilter) (*model.PaymentPage, error)
	// ExportCSV renders payments in a range as CSV text. Ranges matching more
	// than the configured record cap are rejected outright.
	ExportCSV(ctx context.Context, from, to time.Time) (string, error)
}

const revenueChartMonths = 12

type metricsUC struct {
	payments     repository.PaymentRepository
	refunds      repository.RefundRepository
	seriesMonths int
	exportLimit  int
	log          *zerolog.Logger
}

func NewMetricsUseCase(payments repository.PaymentRepository, refunds repository.RefundRepository, seriesMonths, exportLimit int, logger *zerolog.Logger) *metricsUC {
	if seriesMonths <= 0 {
		seriesMonths = 6
	}
	if exportLimit <= 0 {
		exportLimit = 10000
	}
	l := logger.With().Str("component", "MetricsUC").Logger()
	return &metricsUC{payments: payments, refunds: refunds, seriesMonths: seriesMonths, exportLimit: exportLimit, log: &l}
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func toMajor(minor int64) float64 { return float64(minor) / 100 }

// fillMonths produces a zero-filled series for the trailing `months` calendar
// months, oldest first, overlaying whatever buckets the store returned.
func fillMonths(now time.Time, months int, data map[string]model.MonthlyPoint) []model.MonthlyPoint {
	out := make([]model.MonthlyPoint, 0, months)
	first := startOfMonth(now).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		m := first.AddDate(0, i, 0)
		key := m.Format("2006-01")
		p := model.MonthlyPoint{Month: key}
		if got, ok := data[key]; ok {
			p.Amount = got.Amount
			p.Count = got.Count
		}
		out = append(out, p)
	}
	return out
}

func (u *metricsUC) Financial(ctx context.Context) (*model.FinancialMetrics, error) {
	defer logging.TraceDuration(u.log, "MetricsUC.Financial")()
	now := time.Now().UTC()

	total, count, err := u.payments.SumVerified(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sum verified payments: %w", err)
	}
	monthly, err := u.payments.SumVerifiedSince(ctx, nil, startOfMonth(now))
	if err != nil {
		return nil, fmt.Errorf("sum monthly payments: %w", err)
	}
	buckets, err := u.payments.MonthlyVerifiedTotals(ctx, nil, revenueChartMonths)
	if err != nil {
		return nil, fmt.Errorf("monthly revenue chart: %w", err)
	}

	m := &model.FinancialMetrics{
		TotalRevenue:        toMajor(total),
		MonthlyRevenue:      toMajor(monthly),
		TotalPaymentsCount:  count,
		MonthlyRevenueChart: fillMonths(now, revenueChartMonths, buckets),
	}

	// Refund-side failures degrade the refund fields to zero instead of
	// failing the whole call.
	refTotal, _, refErr := u.refunds.SumProcessed(ctx, nil)
	var refMonthly int64
	if refErr == nil {
		refMonthly, _, refErr = u.refunds.SumProcessedSince(ctx, nil, startOfMonth(now))
	}
	if refErr != nil {
		u.log.Warn().Err(refErr).Msg("refund metrics unavailable; degrading to zero")
		m.RefundDataDegraded = true
		refTotal, refMonthly = 0, 0
	}

	m.TotalRefunds = toMajor(refTotal)
	m.MonthlyRefunds = toMajor(refMonthly)
	m.NetRevenue = m.TotalRevenue - m.TotalRefunds
	if m.TotalRevenue > 0 {
		m.RefundRate = m.TotalRefunds / m.TotalRevenue * 100
	}
	return m, nil
}

func (u *metricsUC) RefundMetrics(ctx context.Context) (*model.RefundMetrics, error) {
	defer logging.TraceDuration(u.log, "MetricsUC.RefundMetrics")()
	now := time.Now().UTC()

	total, count, err := u.refunds.SumProcessed(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sum refunds: %w", err)
	}
	monthly, monthlyCount, err := u.refunds.SumProcessedSince(ctx, nil, startOfMonth(now))
	if err != nil {
		return nil, fmt.Errorf("sum monthly refunds: %w", err)
	}
	bySpeed, err := u.refunds.CountBySpeed(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count by speed: %w", err)
	}
	avg, err := u.refunds.AvgProcessingSeconds(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("avg processing time: %w", err)
	}
	buckets, err := u.refunds.MonthlyProcessedTotals(ctx, nil, u.seriesMonths)
	if err != nil {
		return nil, fmt.Errorf("monthly refund series: %w", err)
	}

	return &model.RefundMetrics{
		TotalRefundAmount:    toMajor(total),
		TotalRefundCount:     count,
		MonthlyRefundAmount:  toMajor(monthly),
		MonthlyRefundCount:   monthlyCount,
		InstantRefundCount:   bySpeed[model.RefundSpeedOptimum],
		NormalRefundCount:    bySpeed[model.RefundSpeedNormal],
		AvgProcessingSeconds: avg,
		MonthlySeries:        fillMonths(now, u.seriesMonths, buckets),
	}, nil
}

func (u *metricsUC) PaymentHistory(ctx context.Context, page, pageSize int, filter model.PaymentFilter) (*model.PaymentPage, error) {
	defer logging.TraceDuration(u.log, "MetricsUC.PaymentHistory")()
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	total, err := u.payments.Count(ctx, nil, filter)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	items, err := u.payments.List(ctx, nil, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return &model.PaymentPage{Payments: items, Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (u *metricsUC) ExportCSV(ctx context.Context, from, to time.Time) (string, error) {
	defer logging.TraceDuration(u.log, "MetricsUC.ExportCSV")()
	if !to.After(from) {
		return "", fmt.Errorf("export range end must be after start: %w", domain.ErrValidation)
	}
	filter := model.PaymentFilter{From: &from, To: &to}
	total, err := u.payments.Count(ctx, nil, filter)
	if err != nil {
		return "", fmt.Errorf("count export rows: %w", err)
	}
	// Hard cap: refuse before fetching anything so an oversized range can
	// never balloon memory.
	if total > u.exportLimit {
		return "", fmt.Errorf("export matches %d records, exceeding the %d-record limit: %w",
			total, u.exportLimit, domain.ErrValidation)
	}
	payments, err := u.payments.List(ctx, nil, filter, 0, u.exportLimit)
	if err != nil {
		return "", fmt.Errorf("list export rows: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "user_email", "order_id", "provider_payment_id", "amount", "currency", "status", "created_at"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, p := range payments {
		row := []string{
			p.ID,
			p.UserEmail,
			p.OrderID,
			p.ProviderPaymentID,
			strconv.FormatInt(p.Amount, 10),
			p.Currency,
			string(p.Status),
			p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
