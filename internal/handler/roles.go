package handler

import (
	"net/http"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

type setRoleRequest struct {
	Target string `json:"target"`
	Role   string `json:"role"`
}

type roleResponse struct {
	Success   bool            `json:"success"`
	Principal model.Principal `json:"principal"`
	Role      model.Role      `json:"role"`
}

// SetRole назначает роль участнику от имени текущего пользователя.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if !decode(w, r, &req) {
		return
	}

	role, err := h.service.SetRole(r.Context(), p, model.Principal(req.Target), req.Role)
	if err != nil {
		h.writeError(w, r, "set role", err)
		return
	}

	writeJSON(w, http.StatusOK, roleResponse{Success: true, Principal: model.Principal(req.Target), Role: role})
}

// GetRole возвращает роль участника.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	target := principalParam(r, "principal")

	role, err := h.service.GetRole(r.Context(), target)
	if err != nil {
		h.writeError(w, r, "get role", err)
		return
	}

	writeJSON(w, http.StatusOK, roleResponse{Success: true, Principal: target, Role: role})
}

type authorizationResponse struct {
	Principal  model.Principal `json:"principal"`
	Action     model.Action    `json:"action"`
	Authorized bool            `json:"authorized"`
}

// IsAuthorized сообщает, разрешено ли участнику действие из параметра action (по умолчанию deposit).
func (h *Handler) IsAuthorized(w http.ResponseWriter, r *http.Request) {
	target := principalParam(r, "principal")

	action := model.ActionDeposit
	if v := r.URL.Query().Get("action"); v != "" {
		a, ok := ledger.ParseAction(v)
		if !ok {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		action = a
	}

	allowed, err := h.service.IsAuthorized(r.Context(), target, action)
	if err != nil {
		h.writeError(w, r, "is authorized", err)
		return
	}

	writeJSON(w, http.StatusOK, authorizationResponse{Principal: target, Action: action, Authorized: allowed})
}
