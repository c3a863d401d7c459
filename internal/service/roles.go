package service

import (
	"context"

	"github.com/mmeshcher/staffledger/internal/audit"
	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

// SetRole назначает target роль role от имени caller. Права caller проверяются
// в той же транзакции, что и запись; назначить admin или сменить роль admin
// может только admin.
func (s *Service) SetRole(ctx context.Context, caller, target model.Principal, role string) (r model.Role, err error) {
	defer func() { s.observe("set_role", err) }()

	if err := checkPrincipal(caller); err != nil {
		return "", err
	}
	if err := checkPrincipal(target); err != nil {
		return "", err
	}

	r, err = ledger.ParseRole(role)
	if err != nil {
		return "", err
	}

	err = s.repo.AssignRole(ctx, caller, target, r, func(callerRole, targetRole model.Role) error {
		if err := s.authorize(callerRole, model.ActionAssignRole); err != nil {
			return err
		}
		if r == model.RoleAdmin || targetRole == model.RoleAdmin {
			return s.authorize(callerRole, model.ActionAssignAdmin)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e := audit.NewEvent(audit.EventRoleAssigned, caller, target, 0)
	e.Detail = string(r)
	s.publish(ctx, e)

	return r, nil
}

// GetRole возвращает роль участника; для неизвестного участника — unassigned.
func (s *Service) GetRole(ctx context.Context, p model.Principal) (model.Role, error) {
	if err := checkPrincipal(p); err != nil {
		return "", err
	}
	return s.repo.GetRole(ctx, p)
}

// IsAuthorized сообщает, разрешено ли действие текущей роли участника.
// Роль читается из хранилища при каждом вызове.
func (s *Service) IsAuthorized(ctx context.Context, p model.Principal, action model.Action) (bool, error) {
	role, err := s.GetRole(ctx, p)
	if err != nil {
		return false, err
	}
	return s.policy.Allows(role, action), nil
}

// BootstrapAdmins назначает роль admin перечисленным участникам без проверки прав.
func (s *Service) BootstrapAdmins(ctx context.Context, admins []model.Principal) error {
	for _, p := range admins {
		if err := checkPrincipal(p); err != nil {
			return err
		}
		if err := s.repo.AssignRole(ctx, "", p, model.RoleAdmin, nil); err != nil {
			return err
		}
		s.logger.Sugar().Infow("bootstrap admin assigned", "principal", p)
	}
	return nil
}
