package model

import "time"

// MonthlyPoint is one bucket of a zero-filled monthly time series.
type MonthlyPoint struct {
	Month  string `json:"month"` // "2026-01"
	Amount int64  `json:"amount"`
	Count  int    `json:"count"`
}

// FinancialMetrics is the dashboard read model. Amounts are in major units
// (minor units / 100) because this surface is for humans, not ledgers.
type FinancialMetrics struct {
	TotalRevenue        float64        `json:"totalRevenue"`
	MonthlyRevenue      float64        `json:"monthlyRevenue"`
	TotalPaymentsCount  int            `json:"totalPaymentsCount"`
	MonthlyRevenueChart []MonthlyPoint `json:"monthlyRevenueChart"`
	TotalRefunds        float64        `json:"totalRefunds"`
	MonthlyRefunds      float64        `json:"monthlyRefunds"`
	RefundRate          float64        `json:"refundRate"` // percent; 0 when revenue is 0
	NetRevenue          float64        `json:"netRevenue"`
	RefundDataDegraded  bool           `json:"refundDataDegraded,omitempty"`
}

// RefundMetrics is the refund-side read model.
type RefundMetrics struct {
	TotalRefundAmount    float64        `json:"totalRefundAmount"`
	TotalRefundCount     int            `json:"totalRefundCount"`
	MonthlyRefundAmount  float64        `json:"monthlyRefundAmount"`
	MonthlyRefundCount   int            `json:"monthlyRefundCount"`
	InstantRefundCount   int            `json:"instantRefundCount"`
	NormalRefundCount    int            `json:"normalRefundCount"`
	AvgProcessingSeconds float64        `json:"avgProcessingSeconds"`
	MonthlySeries        []MonthlyPoint `json:"monthlySeries"`
}

// PaymentPage is one page of payment history, newest first.
type PaymentPage struct {
	Payments   []*Payment `json:"payments"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalCount int        `json:"totalCount"`
}

// PaymentFilter narrows history and export queries.
type PaymentFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
}
