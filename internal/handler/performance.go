package handler

import (
	"net/http"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

// updateMetricsRequest требует все восемь оценок: пропущенное поле не должно обнуляться.
type updateMetricsRequest struct {
	Productivity        *int   `json:"productivity"`
	ProductKnowledge    *int   `json:"productKnowledge"`
	QualityOfService    *int   `json:"qualityOfService"`
	AdherenceToSchedule *int   `json:"adherenceToSchedule"`
	Discipline          *int   `json:"discipline"`
	TaskCompletion      *int   `json:"taskCompletion"`
	GoalAchievement     *int   `json:"goalAchievement"`
	TeamPlayer          *int   `json:"teamPlayer"`
	Status              string `json:"status"`
}

// metrics собирает оценки; ok равен false, если хотя бы одна не передана.
func (req updateMetricsRequest) metrics() (model.Metrics, bool) {
	fields := []*int{
		req.Productivity,
		req.ProductKnowledge,
		req.QualityOfService,
		req.AdherenceToSchedule,
		req.Discipline,
		req.TaskCompletion,
		req.GoalAchievement,
		req.TeamPlayer,
	}
	for _, f := range fields {
		if f == nil {
			return model.Metrics{}, false
		}
	}

	return model.Metrics{
		Productivity:        *req.Productivity,
		ProductKnowledge:    *req.ProductKnowledge,
		QualityOfService:    *req.QualityOfService,
		AdherenceToSchedule: *req.AdherenceToSchedule,
		Discipline:          *req.Discipline,
		TaskCompletion:      *req.TaskCompletion,
		GoalAchievement:     *req.GoalAchievement,
		TeamPlayer:          *req.TeamPlayer,
	}, true
}

type performanceResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Record  model.PerformanceRecord `json:"record"`
}

// InitializePerformance заводит карточку эффективности сотрудника.
func (h *Handler) InitializePerformance(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	rec, err := h.service.InitializePerformance(r.Context(), p, principalParam(r, "staff"))
	if err != nil {
		h.writeError(w, r, "initialize performance", err)
		return
	}

	writeJSON(w, http.StatusCreated, performanceResponse{Success: true, Message: "Performance initialized.", Record: rec})
}

// UpdateMetrics перезаписывает оценки и статус карточки.
func (h *Handler) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	var req updateMetricsRequest
	if !decode(w, r, &req) {
		return
	}

	m, ok := req.metrics()
	if !ok {
		http.Error(w, "all eight metrics are required", http.StatusBadRequest)
		return
	}

	status := model.StatusActive
	if req.Status != "" {
		st, err := ledger.ParseStatus(req.Status)
		if err != nil {
			h.writeError(w, r, "update metrics", err)
			return
		}
		status = st
	}

	rec, err := h.service.UpdateMetrics(r.Context(), p, principalParam(r, "staff"), m, status)
	if err != nil {
		h.writeError(w, r, "update metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, performanceResponse{Success: true, Message: "Metrics updated.", Record: rec})
}

// GetPerformance возвращает карточку эффективности.
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetPerformance(r.Context(), principalParam(r, "staff"))
	if err != nil {
		h.writeError(w, r, "get performance", err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetPerformanceHistory возвращает снимок карточки по индексу.
func (h *Handler) GetPerformanceHistory(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}

	snap, err := h.service.GetPerformanceHistory(r.Context(), principalParam(r, "staff"), index)
	if err != nil {
		h.writeError(w, r, "get performance history", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// DeactivateStaff переводит карточку сотрудника в Inactive.
func (h *Handler) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	rec, err := h.service.DeactivateStaff(r.Context(), p, principalParam(r, "staff"))
	if err != nil {
		h.writeError(w, r, "deactivate staff", err)
		return
	}

	writeJSON(w, http.StatusOK, performanceResponse{Success: true, Message: "Staff deactivated.", Record: rec})
}
