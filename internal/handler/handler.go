// Package handler содержит HTTP-обработчики API сервиса.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/middleware"
	"github.com/mmeshcher/staffledger/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error
	SetRole(ctx context.Context, caller, target model.Principal, role string) (model.Role, error)
	GetRole(ctx context.Context, p model.Principal) (model.Role, error)
	IsAuthorized(ctx context.Context, p model.Principal, action model.Action) (bool, error)
	DepositLiquidity(ctx context.Context, caller, account model.Principal, amount int64) (model.DepositRecord, error)
	GetLiquidity(ctx context.Context, account model.Principal) (int64, error)
	GetDepositHistory(ctx context.Context, account model.Principal, id int64) (model.DepositRecord, error)
	RewardStaff(ctx context.Context, caller, account model.Principal) (int64, error)
	WithdrawLiquidity(ctx context.Context, account model.Principal, amount int64) error
	TimeToNextWithdrawal(ctx context.Context, account model.Principal) (int64, error)
	GetWithdrawalInfo(ctx context.Context, account model.Principal) (model.WithdrawalInfo, error)
	InitializePerformance(ctx context.Context, caller, staff model.Principal) (model.PerformanceRecord, error)
	UpdateMetrics(ctx context.Context, caller, staff model.Principal, m model.Metrics, status model.PerformanceStatus) (model.PerformanceRecord, error)
	GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error)
	GetPerformanceHistory(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error)
	DeactivateStaff(ctx context.Context, caller, staff model.Principal) (model.PerformanceRecord, error)
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. metrics может быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metrics http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metrics,
	}
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusForKind(k ledger.Kind) int {
	switch k {
	case ledger.KindUnauthorized:
		return http.StatusForbidden
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindInvalidRole, ledger.KindInvalidPrincipal, ledger.KindInvalidAmount,
		ledger.KindOutOfRange, ledger.KindWithdrawalConditionsNotMet:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// writeError отдаёт доменный отказ структурированным ответом, прочие ошибки отдаются как 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if e, ok := ledger.KindOf(err); ok {
		writeJSON(w, statusForKind(e.Kind), resultResponse{
			Success: false,
			Message: e.Message,
			Reason:  string(e.Kind),
			Error:   e.Message,
		})
		return
	}

	h.logger.Error(op+" error", zap.Error(err), zap.String("uri", r.RequestURI))
	writeJSON(w, http.StatusInternalServerError, resultResponse{
		Success: false,
		Message: http.StatusText(http.StatusInternalServerError),
		Reason:  "internal",
		Error:   http.StatusText(http.StatusInternalServerError),
	})
}

func caller(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return p, ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func principalParam(r *http.Request, name string) model.Principal {
	return model.Principal(chi.URLParam(r, name))
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
