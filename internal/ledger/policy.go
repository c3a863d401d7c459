package ledger

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/staffledger/internal/model"
)

// Policy — таблица разрешений роль × действие.
type Policy map[model.Role]map[model.Action]bool

// DefaultPolicy возвращает политику доступа сервиса.
func DefaultPolicy() Policy {
	privileged := map[model.Action]bool{
		model.ActionDeposit:           true,
		model.ActionReward:            true,
		model.ActionManagePerformance: true,
	}

	admin := map[model.Action]bool{
		model.ActionAssignRole:  true,
		model.ActionAssignAdmin: true,
	}
	manager := map[model.Action]bool{
		model.ActionAssignRole: true,
	}
	hr := map[model.Action]bool{}

	for a := range privileged {
		admin[a] = true
		manager[a] = true
		hr[a] = true
	}

	return Policy{
		model.RoleAdmin:   admin,
		model.RoleManager: manager,
		model.RoleHR:      hr,
	}
}

// Allows сообщает, разрешено ли действие роли. Неизвестные пары запрещены.
func (p Policy) Allows(role model.Role, action model.Action) bool {
	return p[role][action]
}

// ParseRole разбирает роль из строки, допуская только закрытый набор значений.
func ParseRole(s string) (model.Role, error) {
	r := model.Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range model.Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// ParseAction разбирает действие из строки.
func ParseAction(s string) (model.Action, bool) {
	switch a := model.Action(strings.ToLower(strings.TrimSpace(s))); a {
	case model.ActionDeposit, model.ActionReward, model.ActionAssignRole,
		model.ActionAssignAdmin, model.ActionManagePerformance:
		return a, true
	}
	return "", false
}
