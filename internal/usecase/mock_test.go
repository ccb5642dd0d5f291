//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	SaveFunc              func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc          func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	SumVerifiedFunc       func(ctx context.Context, tx repository.Tx) (int64, int, error)
	SumVerifiedSinceFunc  func(ctx context.Context, tx repository.Tx, since time.Time) (int64, error)
	MonthlyVerifiedFunc   func(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error)
	ListFunc              func(ctx context.Context, tx repository.Tx, filter model.PaymentFilter, offset, limit int) ([]*model.Payment, error)
	CountFunc             func(ctx context.Context, tx repository.Tx, filter model.PaymentFilter) (int, error)
	AcquireRefundLockFunc func(ctx context.Context, tx repository.Tx, paymentID string) error

	LockCalls int
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) AcquireRefundLock(ctx context.Context, tx repository.Tx, paymentID string) error {
	m.mu.Lock()
	m.LockCalls++
	m.mu.Unlock()
	if m.AcquireRefundLockFunc != nil {
		return m.AcquireRefundLockFunc(ctx, tx, paymentID)
	}
	return nil
}

func (m *MockPaymentRepo) SumVerified(ctx context.Context, tx repository.Tx) (int64, int, error) {
	if m.SumVerifiedFunc != nil {
		return m.SumVerifiedFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	count := 0
	for _, p := range m.store {
		if p.Status == model.PaymentStatusVerified {
			sum += p.Amount
			count++
		}
	}
	return sum, count, nil
}

func (m *MockPaymentRepo) SumVerifiedSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	if m.SumVerifiedSinceFunc != nil {
		return m.SumVerifiedSinceFunc(ctx, tx, since)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusVerified && !p.CreatedAt.Before(since) {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (m *MockPaymentRepo) MonthlyVerifiedTotals(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error) {
	if m.MonthlyVerifiedFunc != nil {
		return m.MonthlyVerifiedFunc(ctx, tx, months)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.MonthlyPoint)
	for _, p := range m.store {
		if p.Status != model.PaymentStatusVerified {
			continue
		}
		key := p.CreatedAt.Format("2006-01")
		pt := out[key]
		pt.Month = key
		pt.Amount += p.Amount
		pt.Count++
		out[key] = pt
	}
	return out, nil
}

func (m *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, filter model.PaymentFilter, offset, limit int) ([]*model.Payment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, tx, filter, offset, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := m.filtered(filter)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *MockPaymentRepo) Count(ctx context.Context, tx repository.Tx, filter model.PaymentFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, tx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filtered(filter)), nil
}

func (m *MockPaymentRepo) filtered(filter model.PaymentFilter) []*model.Payment {
	var out []*model.Payment
	for _, p := range m.store {
		if filter.Status != "" && string(p.Status) != filter.Status {
			continue
		}
		if filter.From != nil && p.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && p.CreatedAt.After(*filter.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	// Newest first, matching the real repo's ordering.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ---- Mock RefundRepository ----

type MockRefundRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Refund
	order []string

	SaveFunc         func(ctx context.Context, tx repository.Tx, r *model.Refund) error
	FinalizeFunc     func(ctx context.Context, tx repository.Tx, id string, status model.RefundStatus, speedProcessed model.RefundSpeed, providerRefundID string, processedAt *time.Time, errCode, errDesc string) (bool, error)
	SumProcessedFunc func(ctx context.Context, tx repository.Tx) (int64, int, error)
	SumSinceFunc     func(ctx context.Context, tx repository.Tx, since time.Time) (int64, int, error)
	BySpeedFunc      func(ctx context.Context, tx repository.Tx) (map[model.RefundSpeed]int, error)
	AvgFunc          func(ctx context.Context, tx repository.Tx) (float64, error)
	MonthlyFunc      func(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error)
}

var _ repository.RefundRepository = (*MockRefundRepo)(nil)

func NewMockRefundRepo() *MockRefundRepo {
	return &MockRefundRepo{store: make(map[string]*model.Refund)}
}

func (m *MockRefundRepo) Save(ctx context.Context, tx repository.Tx, r *model.Refund) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.store[r.ID]; !dup {
		m.order = append(m.order, r.ID)
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *MockRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRefundRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Refund
	for _, id := range m.order {
		if r := m.store[id]; r.PaymentID == paymentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRefundRepo) SumProcessedByPayment(ctx context.Context, tx repository.Tx, paymentID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, r := range m.store {
		if r.PaymentID == paymentID && r.Status == model.RefundStatusProcessed {
			sum += r.Amount
		}
	}
	return sum, nil
}

func (m *MockRefundRepo) SumReservedByPayment(ctx context.Context, tx repository.Tx, paymentID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, r := range m.store {
		if r.PaymentID == paymentID && r.Status != model.RefundStatusFailed {
			sum += r.Amount
		}
	}
	return sum, nil
}

func (m *MockRefundRepo) Finalize(ctx context.Context, tx repository.Tx, id string, status model.RefundStatus, speedProcessed model.RefundSpeed, providerRefundID string, processedAt *time.Time, errCode, errDesc string) (bool, error) {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, tx, id, status, speedProcessed, providerRefundID, processedAt, errCode, errDesc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.Status != model.RefundStatusPending {
		return false, nil
	}
	r.Status = status
	r.SpeedProcessed = speedProcessed
	r.ProviderRefundID = providerRefundID
	r.ProcessedAt = processedAt
	r.ErrorCode = errCode
	r.ErrorDescription = errDesc
	return true, nil
}

func (m *MockRefundRepo) SumProcessed(ctx context.Context, tx repository.Tx) (int64, int, error) {
	if m.SumProcessedFunc != nil {
		return m.SumProcessedFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	count := 0
	for _, r := range m.store {
		if r.Status == model.RefundStatusProcessed {
			sum += r.Amount
			count++
		}
	}
	return sum, count, nil
}

func (m *MockRefundRepo) SumProcessedSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, int, error) {
	if m.SumSinceFunc != nil {
		return m.SumSinceFunc(ctx, tx, since)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	count := 0
	for _, r := range m.store {
		if r.Status == model.RefundStatusProcessed && r.ProcessedAt != nil && !r.ProcessedAt.Before(since) {
			sum += r.Amount
			count++
		}
	}
	return sum, count, nil
}

func (m *MockRefundRepo) MonthlyProcessedTotals(ctx context.Context, tx repository.Tx, months int) (map[string]model.MonthlyPoint, error) {
	if m.MonthlyFunc != nil {
		return m.MonthlyFunc(ctx, tx, months)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.MonthlyPoint)
	for _, r := range m.store {
		if r.Status != model.RefundStatusProcessed || r.ProcessedAt == nil {
			continue
		}
		key := r.ProcessedAt.Format("2006-01")
		pt := out[key]
		pt.Month = key
		pt.Amount += r.Amount
		pt.Count++
		out[key] = pt
	}
	return out, nil
}

func (m *MockRefundRepo) CountBySpeed(ctx context.Context, tx repository.Tx) (map[model.RefundSpeed]int, error) {
	if m.BySpeedFunc != nil {
		return m.BySpeedFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.RefundSpeed]int)
	for _, r := range m.store {
		if r.Status != model.RefundStatusProcessed {
			continue
		}
		speed := r.SpeedProcessed
		if speed == "" {
			speed = r.SpeedRequested
		}
		out[speed]++
	}
	return out, nil
}

func (m *MockRefundRepo) AvgProcessingSeconds(ctx context.Context, tx repository.Tx) (float64, error) {
	if m.AvgFunc != nil {
		return m.AvgFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	count := 0
	for _, r := range m.store {
		if r.Status == model.RefundStatusProcessed && r.ProcessedAt != nil {
			total += r.ProcessedAt.Sub(r.CreatedAt).Seconds()
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	FindActiveFunc      func(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error)
	MarkGraceFunc       func(ctx context.Context, tx repository.Tx, id string, graceEnd time.Time) (bool, error)
	UpdateStatusIfFunc  func(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (bool, error)
	SetLastNotifiedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindActivePastEndDate(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if m.FindActiveFunc != nil {
		return m.FindActiveFunc(ctx, tx, now, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.EndDate.Before(now) && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) FindGracePastGraceEnd(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusGracePeriod && s.GracePeriodEnd.Before(now) && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) FindExpiringWithin(ctx context.Context, tx repository.Tx, now time.Time, window time.Duration, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cut := now.Add(window)
	var out []*model.Subscription
	for _, s := range m.store {
		if s.IsTerminal() {
			continue
		}
		if !s.EndDate.Before(now) && !s.EndDate.After(cut) && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) MarkGracePeriod(ctx context.Context, tx repository.Tx, id string, graceEnd time.Time) (bool, error) {
	if m.MarkGraceFunc != nil {
		return m.MarkGraceFunc(ctx, tx, id, graceEnd)
	}
	return m.markGraceDefault(id, graceEnd)
}

// markGraceDefault is the built-in MarkGracePeriod behavior, callable from a
// MarkGraceFunc override that only wants to intercept some ids.
func (m *MockSubscriptionRepo) markGraceDefault(id string, graceEnd time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = model.SubscriptionStatusGracePeriod
	s.GracePeriodEnd = graceEnd
	return true, nil
}

func (m *MockSubscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (bool, error) {
	if m.UpdateStatusIfFunc != nil {
		return m.UpdateStatusIfFunc(ctx, tx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (m *MockSubscriptionRepo) SetLastNotifiedAt(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if m.SetLastNotifiedFunc != nil {
		return m.SetLastNotifiedFunc(ctx, tx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := at
	s.LastNotifiedAt = &cp
	return nil
}

// ---- Mock RefundGateway (adapter) ----

type MockRefundGateway struct {
	mu    sync.Mutex
	Calls []struct {
		ProviderPaymentID string
		Amount            int64
		Speed             model.RefundSpeed
	}

	CreateRefundFunc func(ctx context.Context, providerPaymentID string, amount int64, speed model.RefundSpeed) (adapter.RefundResult, error)
}

var _ adapter.RefundGateway = (*MockRefundGateway)(nil)

func (m *MockRefundGateway) Name() string { return "mock" }

func (m *MockRefundGateway) CreateRefund(ctx context.Context, providerPaymentID string, amount int64, speed model.RefundSpeed) (adapter.RefundResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, struct {
		ProviderPaymentID string
		Amount            int64
		Speed             model.RefundSpeed
	}{providerPaymentID, amount, speed})
	m.mu.Unlock()
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, providerPaymentID, amount, speed)
	}
	return adapter.RefundResult{
		ProviderRefundID: "rfnd_mock_1",
		Status:           "processed",
		SpeedProcessed:   speed,
		ProcessedAt:      time.Now(),
	}, nil
}

// ---- Mock NotificationDispatcher ----

type MockDispatcher struct {
	mu   sync.Mutex
	Sent []adapter.Notification

	SendFunc func(ctx context.Context, n adapter.Notification) error
}

var _ adapter.NotificationDispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) Send(ctx context.Context, n adapter.Notification) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

// ---- Mock TransactionManager ----

// MockTxManager serializes WithTx bodies with a single mutex, standing in for
// the per-payment advisory lock the Postgres implementation takes.
type MockTxManager struct {
	mu sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}

// ---- Mock SnapshotInvalidator ----

type MockInvalidator struct {
	mu     sync.Mutex
	Clears int
}

func (m *MockInvalidator) Clear(ctx context.Context) {
	m.mu.Lock()
	m.Clears++
	m.mu.Unlock()
}
