package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-billing/internal/config"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/usecase"
)

// Server exposes the admin API: refund operations, the financial dashboard
// reads, and subscription cancellation. Everything under /api/v1 except login
// is behind the session JWT.
type Server struct {
	refundUC    usecase.RefundUseCase
	lifecycleUC usecase.LifecycleUseCase
	metricsUC   usecase.MetricsUseCase
	auth        *AuthManager
	apiKey      string
	log         *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(cfg config.AdminConfig, refundUC usecase.RefundUseCase, lifecycleUC usecase.LifecycleUseCase, metricsUC usecase.MetricsUseCase, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	s := &Server{
		refundUC:    refundUC,
		lifecycleUC: lifecycleUC,
		metricsUC:   metricsUC,
		auth:        NewAuthManager(cfg.JWTSecret, cfg.SecureCookies, cfg.SessionTTL),
		apiKey:      cfg.APIKey,
		log:         &l,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the chi router. Exposed separately so tests can drive the
// handlers without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)

	r.Get("/health", s.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin())
		r.Post("/logout", s.handleLogout())

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Post("/refunds", s.handleInitiateRefund())
			r.Get("/payments/{paymentID}/refunds", s.handleRefundSummary())
			r.Get("/payments", s.handlePaymentHistory())
			r.Get("/payments/export", s.handleExportCSV())
			r.Get("/metrics/financial", s.handleFinancialMetrics())
			r.Get("/metrics/refunds", s.handleRefundMetrics())
			r.Post("/subscriptions", s.handleActivateSubscription())
			r.Post("/subscriptions/{subscriptionID}/cancel", s.handleCancelSubscription())
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("admin API listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// traceMiddleware carries the chi request id into the context so lower layers
// log with the same trace_id.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware rejects requests without a valid session JWT.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			logging.With(r.Context(), s.log).Warn().Str("path", r.URL.Path).Msg("unauthorized request")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
