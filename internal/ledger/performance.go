package ledger

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/staffledger/internal/model"
)

const (
	MetricMin = 0
	MetricMax = 100
)

// NewPerformance создаёт активную карточку с нулевыми оценками и фиксирует снимок #0.
func NewPerformance(staff model.Principal, height int64) (model.PerformanceRecord, model.PerformanceSnapshot) {
	rec := model.PerformanceRecord{
		Staff:         staff,
		Status:        model.StatusActive,
		UpdatedHeight: height,
	}
	return rec, takeSnapshot(&rec)
}

// ParseStatus разбирает статус карточки.
func ParseStatus(s string) (model.PerformanceStatus, error) {
	switch st := model.PerformanceStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.StatusActive, model.StatusInactive:
		return st, nil
	}
	return "", fmt.Errorf("%w: status %q", ErrOutOfRange, s)
}

// ValidateMetrics проверяет, что все оценки лежат в шкале 0–100.
func ValidateMetrics(m model.Metrics) error {
	for i, v := range m.Values() {
		if v < MetricMin || v > MetricMax {
			return fmt.Errorf("%w: metric #%d = %d", ErrOutOfRange, i+1, v)
		}
	}
	return nil
}

// UpdateMetrics перезаписывает все оценки и статус целиком и возвращает снимок нового состояния.
func UpdateMetrics(rec *model.PerformanceRecord, m model.Metrics, status model.PerformanceStatus, height int64) (model.PerformanceSnapshot, error) {
	if rec.Status != model.StatusActive {
		return model.PerformanceSnapshot{}, ErrNotActive
	}
	if err := ValidateMetrics(m); err != nil {
		return model.PerformanceSnapshot{}, err
	}
	if status != model.StatusActive && status != model.StatusInactive {
		return model.PerformanceSnapshot{}, fmt.Errorf("%w: status %q", ErrOutOfRange, status)
	}

	rec.Metrics = m
	rec.Status = status
	rec.UpdatedHeight = height

	return takeSnapshot(rec), nil
}

// Deactivate переводит карточку в Inactive. Повторный вызов ничего не меняет и возвращает false.
func Deactivate(rec *model.PerformanceRecord, height int64) bool {
	if rec.Status == model.StatusInactive {
		return false
	}
	rec.Status = model.StatusInactive
	rec.UpdatedHeight = height
	return true
}

// FirstRetained возвращает наименьший индекс снимка, который ещё хранится.
func FirstRetained(snapshotCount int64, retention int) int64 {
	first := snapshotCount - int64(retention)
	if first < 0 {
		return 0
	}
	return first
}

func takeSnapshot(rec *model.PerformanceRecord) model.PerformanceSnapshot {
	snap := rec.Snapshot()
	rec.SnapshotCount++
	return snap
}
