package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps sentinel domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPaymentNotVerified),
		errors.Is(err, domain.ErrInvariantViolation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrTerminalState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if s.apiKey == "" || req.APIKey != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			s.log.Error().Err(err).Msg("mint session token")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

type initiateRefundRequest struct {
	PaymentID string `json:"payment_id"`
	Amount    *int64 `json:"amount"` // nil refunds everything remaining
	Speed     string `json:"speed"`  // "OPTIMUM" | "NORMAL"; empty means NORMAL
	Reason    string `json:"reason"`
}

func (s *Server) handleInitiateRefund() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req initiateRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ctx = logging.WithPaymentID(ctx, req.PaymentID)

		refund, err := s.refundUC.Initiate(ctx, req.PaymentID, req.Amount, model.RefundSpeed(req.Speed), req.Reason, "admin")
		if err != nil {
			// A FAILED refund is still a ledger row worth returning.
			if refund != nil && errors.Is(err, domain.ErrProvider) {
				writeJSON(w, http.StatusBadGateway, refund)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, refund)
	}
}

func (s *Server) handleRefundSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.refundUC.Summary(r.Context(), chi.URLParam(r, "paymentID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleFinancialMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.metricsUC.Financial(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) handleRefundMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.metricsUC.RefundMetrics(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) handlePaymentHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		pageSize, _ := strconv.Atoi(q.Get("pageSize"))

		filter := model.PaymentFilter{Status: q.Get("status")}
		var err error
		if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' timestamp")
			return
		}
		if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' timestamp")
			return
		}

		pg, err := s.metricsUC.PaymentHistory(r.Context(), page, pageSize, filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pg)
	}
}

func (s *Server) handleExportCSV() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err := parseTimeParam(q.Get("from"))
		if err != nil || from == nil {
			writeError(w, http.StatusBadRequest, "'from' timestamp is required")
			return
		}
		to, err := parseTimeParam(q.Get("to"))
		if err != nil || to == nil {
			writeError(w, http.StatusBadRequest, "'to' timestamp is required")
			return
		}

		csvText, err := s.metricsUC.ExportCSV(r.Context(), *from, *to)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="payments.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(csvText))
	}
}

type activateSubscriptionRequest struct {
	PaymentID    string `json:"payment_id"`
	Service      string `json:"service"`
	DurationDays int    `json:"duration_days"`
}

func (s *Server) handleActivateSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sub, err := s.lifecycleUC.ActivateForPayment(r.Context(), req.PaymentID, req.Service,
			time.Duration(req.DurationDays)*24*time.Hour)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func (s *Server) handleCancelSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.lifecycleUC.Cancel(r.Context(), chi.URLParam(r, "subscriptionID"), "admin")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		// Date-only form is accepted for dashboard convenience.
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
