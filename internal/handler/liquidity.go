package handler

import (
	"net/http"

	"github.com/mmeshcher/staffledger/internal/model"
)

const (
	msgDeposited = "Liquidity deposited successfully."
	msgWithdrawn = "Liquidity withdrawn successfully."
)

type depositRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type depositResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	DepositID int64  `json:"depositId"`
}

// Deposit зачисляет ликвидность на счёт от имени текущего пользователя.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decode(w, r, &req) {
		return
	}

	rec, err := h.service.DepositLiquidity(r.Context(), p, model.Principal(req.Account), req.Amount)
	if err != nil {
		h.writeError(w, r, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, depositResponse{Success: true, Message: msgDeposited, DepositID: rec.ID})
}

type liquidityResponse struct {
	Account model.Principal `json:"account"`
	Balance int64           `json:"balance"`
}

// GetLiquidity возвращает баланс счёта.
func (h *Handler) GetLiquidity(w http.ResponseWriter, r *http.Request) {
	account := principalParam(r, "account")

	balance, err := h.service.GetLiquidity(r.Context(), account)
	if err != nil {
		h.writeError(w, r, "get liquidity", err)
		return
	}

	writeJSON(w, http.StatusOK, liquidityResponse{Account: account, Balance: balance})
}

// GetDepositHistory возвращает запись о пополнении по номеру.
func (h *Handler) GetDepositHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.service.GetDepositHistory(r.Context(), principalParam(r, "account"), id)
	if err != nil {
		h.writeError(w, r, "get deposit history", err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type rewardResponse struct {
	Success bool  `json:"success"`
	Reward  int64 `json:"reward"`
}

// Reward начисляет вознаграждение на счёт сотрудника.
func (h *Handler) Reward(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	balance, err := h.service.RewardStaff(r.Context(), p, principalParam(r, "account"))
	if err != nil {
		h.writeError(w, r, "reward", err)
		return
	}

	writeJSON(w, http.StatusOK, rewardResponse{Success: true, Reward: balance})
}

type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

type withdrawResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Withdraw списывает ликвидность со счёта текущего пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.WithdrawLiquidity(r.Context(), p, req.Amount); err != nil {
		h.writeError(w, r, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{Success: true, Message: msgWithdrawn, Status: "success"})
}

type cooldownResponse struct {
	BlocksRemaining int64 `json:"blocksRemaining"`
}

// TimeToNextWithdrawal возвращает число блоков до открытия окна вывода.
func (h *Handler) TimeToNextWithdrawal(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.service.TimeToNextWithdrawal(r.Context(), principalParam(r, "account"))
	if err != nil {
		h.writeError(w, r, "time to next withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, cooldownResponse{BlocksRemaining: blocks})
}

// GetWithdrawalInfo возвращает сводку условий вывода.
func (h *Handler) GetWithdrawalInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetWithdrawalInfo(r.Context(), principalParam(r, "account"))
	if err != nil {
		h.writeError(w, r, "get withdrawal info", err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
