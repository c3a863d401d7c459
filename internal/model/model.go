// Package model содержит доменные сущности сервиса учёта персонала и ликвидности.
package model

// Principal задаёт уникальный идентификатор сотрудника или администратора.
type Principal string

// Role описывает класс полномочий участника.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleHR         Role = "hr"
	RoleStaff      Role = "staff"
	RoleUnassigned Role = "unassigned"
)

// Roles перечисляет все допустимые роли.
var Roles = []Role{RoleAdmin, RoleManager, RoleHR, RoleStaff, RoleUnassigned}

// Action описывает привилегированное действие, доступ к которому проверяется по роли.
type Action string

const (
	ActionDeposit           Action = "deposit"
	ActionReward            Action = "reward"
	ActionAssignRole        Action = "assign-role"
	ActionAssignAdmin       Action = "assign-admin"
	ActionManagePerformance Action = "manage-performance"
)

// DepositRecord описывает неизменяемую запись о пополнении счёта.
type DepositRecord struct {
	ID          int64     `json:"id"`
	Amount      int64     `json:"amount"`
	DepositedBy Principal `json:"depositedBy"`
	Height      int64     `json:"date"`
}

// LiquidityAccount содержит баланс участника и состояние окна вывода средств.
// История пополнений хранится отдельно и адресуется по DepositCount.
type LiquidityAccount struct {
	Owner                Principal
	Balance              int64
	DepositCount         int64
	LastWithdrawalHeight int64
	HasWithdrawn         bool
}

// WithdrawalInfo содержит сводку условий вывода средств для счёта.
type WithdrawalInfo struct {
	AvailableBalance        int64 `json:"availableBalance"`
	CooldownBlocksRemaining int64 `json:"cooldownBlocksRemaining"`
	MinWithdrawal           int64 `json:"minWithdrawal"`
	MaxWithdrawal           int64 `json:"maxWithdrawal"`
}

// PerformanceStatus описывает состояние карточки эффективности.
type PerformanceStatus string

const (
	StatusActive   PerformanceStatus = "active"
	StatusInactive PerformanceStatus = "inactive"
)

// Metrics содержит восемь оценок эффективности сотрудника по шкале 0–100.
type Metrics struct {
	Productivity        int `json:"productivity"`
	ProductKnowledge    int `json:"productKnowledge"`
	QualityOfService    int `json:"qualityOfService"`
	AdherenceToSchedule int `json:"adherenceToSchedule"`
	Discipline          int `json:"discipline"`
	TaskCompletion      int `json:"taskCompletion"`
	GoalAchievement     int `json:"goalAchievement"`
	TeamPlayer          int `json:"teamPlayer"`
}

// Values возвращает оценки в фиксированном порядке.
func (m Metrics) Values() [8]int {
	return [8]int{
		m.Productivity,
		m.ProductKnowledge,
		m.QualityOfService,
		m.AdherenceToSchedule,
		m.Discipline,
		m.TaskCompletion,
		m.GoalAchievement,
		m.TeamPlayer,
	}
}

// PerformanceRecord описывает текущую карточку эффективности сотрудника.
type PerformanceRecord struct {
	Staff         Principal         `json:"staff"`
	Metrics       Metrics           `json:"metrics"`
	Status        PerformanceStatus `json:"status"`
	UpdatedHeight int64             `json:"updatedHeight"`
	SnapshotCount int64             `json:"snapshotCount"`
}

// PerformanceSnapshot хранит копию карточки на момент изменения.
type PerformanceSnapshot struct {
	Index   int64             `json:"index"`
	Metrics Metrics           `json:"metrics"`
	Status  PerformanceStatus `json:"status"`
	Height  int64             `json:"height"`
}

// Snapshot фиксирует текущее состояние карточки под очередным индексом.
func (r *PerformanceRecord) Snapshot() PerformanceSnapshot {
	return PerformanceSnapshot{
		Index:   r.SnapshotCount,
		Metrics: r.Metrics,
		Status:  r.Status,
		Height:  r.UpdatedHeight,
	}
}
