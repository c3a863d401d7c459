package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/staffledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/roles/{principal}", h.GetRole)
		r.Get("/authorization/{principal}", h.IsAuthorized)

		r.Get("/liquidity/{account}", h.GetLiquidity)
		r.Get("/liquidity/{account}/deposits/{id}", h.GetDepositHistory)
		r.Get("/liquidity/{account}/cooldown", h.TimeToNextWithdrawal)
		r.Get("/liquidity/{account}/withdrawal-info", h.GetWithdrawalInfo)

		r.Get("/performance/{staff}", h.GetPerformance)
		r.Get("/performance/{staff}/history/{index}", h.GetPerformanceHistory)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/roles", h.SetRole)

			r.Post("/liquidity/deposit", h.Deposit)
			r.Post("/liquidity/withdraw", h.Withdraw)
			r.Post("/liquidity/{account}/reward", h.Reward)

			r.Post("/performance/{staff}", h.InitializePerformance)
			r.Put("/performance/{staff}", h.UpdateMetrics)
			r.Post("/performance/{staff}/deactivate", h.DeactivateStaff)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
