package service

import (
	"context"

	"github.com/mmeshcher/staffledger/internal/audit"
	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

// InitializePerformance заводит карточку эффективности сотрудника staff.
func (s *Service) InitializePerformance(ctx context.Context, caller, staff model.Principal) (rec model.PerformanceRecord, err error) {
	defer func() { s.observe("initialize_performance", err) }()

	if err := checkPrincipal(caller); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := checkPrincipal(staff); err != nil {
		return model.PerformanceRecord{}, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	rec, err = s.repo.CreatePerformance(ctx, caller, staff, func(callerRole model.Role) (model.PerformanceRecord, model.PerformanceSnapshot, error) {
		if err := s.authorize(callerRole, model.ActionManagePerformance); err != nil {
			return model.PerformanceRecord{}, model.PerformanceSnapshot{}, err
		}
		r, snap := ledger.NewPerformance(staff, h)
		return r, snap, nil
	})
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	s.publish(ctx, audit.NewEvent(audit.EventPerformanceInitialized, caller, staff, h))

	return rec, nil
}

// UpdateMetrics перезаписывает все восемь оценок и статус карточки целиком.
func (s *Service) UpdateMetrics(ctx context.Context, caller, staff model.Principal, m model.Metrics, status model.PerformanceStatus) (rec model.PerformanceRecord, err error) {
	defer func() { s.observe("update_metrics", err) }()

	if err := checkPrincipal(caller); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := checkPrincipal(staff); err != nil {
		return model.PerformanceRecord{}, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	rec, err = s.repo.UpdatePerformance(ctx, caller, staff, func(callerRole model.Role, r *model.PerformanceRecord) (*model.PerformanceSnapshot, error) {
		if err := s.authorize(callerRole, model.ActionManagePerformance); err != nil {
			return nil, err
		}
		if r == nil {
			return nil, ledger.ErrNotFound
		}
		snap, err := ledger.UpdateMetrics(r, m, status, h)
		if err != nil {
			return nil, err
		}
		return &snap, nil
	})
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	e := audit.NewEvent(audit.EventMetricsUpdated, caller, staff, h)
	e.Detail = string(rec.Status)
	s.publish(ctx, e)

	return rec, nil
}

// GetPerformance возвращает текущую карточку эффективности.
func (s *Service) GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error) {
	if err := checkPrincipal(staff); err != nil {
		return model.PerformanceRecord{}, err
	}
	return s.repo.GetPerformance(ctx, staff)
}

// GetPerformanceHistory возвращает снимок карточки по индексу. Хранятся только
// последние снимки в пределах лимита, более старые недоступны.
func (s *Service) GetPerformanceHistory(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error) {
	if err := checkPrincipal(staff); err != nil {
		return model.PerformanceSnapshot{}, err
	}
	if index < 0 {
		return model.PerformanceSnapshot{}, ledger.ErrNotFound
	}
	return s.repo.GetPerformanceSnapshot(ctx, staff, index)
}

// DeactivateStaff переводит карточку в Inactive. Повторный вызов успешен и ничего не меняет.
func (s *Service) DeactivateStaff(ctx context.Context, caller, staff model.Principal) (rec model.PerformanceRecord, err error) {
	defer func() { s.observe("deactivate_staff", err) }()

	if err := checkPrincipal(caller); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := checkPrincipal(staff); err != nil {
		return model.PerformanceRecord{}, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	changed := false
	rec, err = s.repo.UpdatePerformance(ctx, caller, staff, func(callerRole model.Role, r *model.PerformanceRecord) (*model.PerformanceSnapshot, error) {
		if err := s.authorize(callerRole, model.ActionManagePerformance); err != nil {
			return nil, err
		}
		if r == nil {
			return nil, ledger.ErrNotFound
		}
		changed = ledger.Deactivate(r, h)
		return nil, nil
	})
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	if changed {
		s.publish(ctx, audit.NewEvent(audit.EventStaffDeactivated, caller, staff, h))
	}

	return rec, nil
}
