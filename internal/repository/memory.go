package repository

import (
	"context"
	"sync"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

type memoryAccount struct {
	account  model.LiquidityAccount
	deposits []model.DepositRecord
}

type memoryPerformance struct {
	record    model.PerformanceRecord
	snapshots []model.PerformanceSnapshot
}

// MemoryRepository хранит состояние в памяти процесса. Каждая операция выполняется
// под одной блокировкой, поэтому проверка и запись не разделяются.
type MemoryRepository struct {
	mu          sync.Mutex
	retention   int
	roles       map[model.Principal]model.Role
	accounts    map[model.Principal]*memoryAccount
	performance map[model.Principal]*memoryPerformance
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository(snapshotRetention int) *MemoryRepository {
	return &MemoryRepository{
		retention:   snapshotRetention,
		roles:       make(map[model.Principal]model.Role),
		accounts:    make(map[model.Principal]*memoryAccount),
		performance: make(map[model.Principal]*memoryPerformance),
	}
}

// Close ничего не освобождает.
func (r *MemoryRepository) Close() error { return nil }

// Ping всегда успешен.
func (r *MemoryRepository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *MemoryRepository) roleLocked(p model.Principal) model.Role {
	if role, ok := r.roles[p]; ok {
		return role
	}
	return model.RoleUnassigned
}

// GetRole возвращает роль участника или unassigned.
func (r *MemoryRepository) GetRole(ctx context.Context, p model.Principal) (model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roleLocked(p), nil
}

// AssignRole назначает роль, если authorize разрешает это для ролей вызывающего и цели.
func (r *MemoryRepository) AssignRole(ctx context.Context, caller, target model.Principal, role model.Role, authorize RoleFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if authorize != nil {
		if err := authorize(r.roleLocked(caller), r.roleLocked(target)); err != nil {
			return err
		}
	}
	r.roles[target] = role
	return nil
}

// GetAccount возвращает копию счёта; для неизвестного участника возвращается пустой счёт.
func (r *MemoryRepository) GetAccount(ctx context.Context, owner model.Principal) (model.LiquidityAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.accounts[owner]; ok {
		return a.account, nil
	}
	return model.LiquidityAccount{Owner: owner}, nil
}

// UpdateAccount применяет fn к копии счёта и сохраняет результат, только если fn не вернула ошибку.
func (r *MemoryRepository) UpdateAccount(ctx context.Context, caller, owner model.Principal, fn AccountFunc) (model.LiquidityAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[owner]
	acc := model.LiquidityAccount{Owner: owner}
	if ok {
		acc = a.account
	}

	dep, err := fn(r.roleLocked(caller), &acc)
	if err != nil {
		return model.LiquidityAccount{}, err
	}

	if !ok {
		a = &memoryAccount{}
		r.accounts[owner] = a
	}
	a.account = acc
	if dep != nil {
		a.deposits = append(a.deposits, *dep)
	}

	return acc, nil
}

// GetDeposit возвращает запись о пополнении по её порядковому номеру в счёте.
func (r *MemoryRepository) GetDeposit(ctx context.Context, owner model.Principal, id int64) (model.DepositRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[owner]
	if !ok || id < 1 || id > int64(len(a.deposits)) {
		return model.DepositRecord{}, ledger.ErrNotFound
	}
	return a.deposits[id-1], nil
}

// CreatePerformance заводит карточку эффективности, если её ещё нет.
func (r *MemoryRepository) CreatePerformance(ctx context.Context, caller, staff model.Principal, fn CreatePerformanceFunc) (model.PerformanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, snap, err := fn(r.roleLocked(caller))
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	if _, exists := r.performance[staff]; exists {
		return model.PerformanceRecord{}, ledger.ErrAlreadyInitialized
	}

	r.performance[staff] = &memoryPerformance{
		record:    rec,
		snapshots: []model.PerformanceSnapshot{snap},
	}
	return rec, nil
}

// UpdatePerformance применяет fn к копии карточки; возвращённый снимок добавляется в историю.
func (r *MemoryRepository) UpdatePerformance(ctx context.Context, caller, staff model.Principal, fn PerformanceFunc) (model.PerformanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	callerRole := r.roleLocked(caller)

	p, ok := r.performance[staff]
	if !ok {
		// сначала права, затем существование карточки
		if _, err := fn(callerRole, nil); err != nil {
			return model.PerformanceRecord{}, err
		}
		return model.PerformanceRecord{}, ledger.ErrNotFound
	}

	rec := p.record
	snap, err := fn(callerRole, &rec)
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	p.record = rec
	if snap != nil {
		p.snapshots = append(p.snapshots, *snap)
		if extra := len(p.snapshots) - r.retention; r.retention > 0 && extra > 0 {
			p.snapshots = append([]model.PerformanceSnapshot(nil), p.snapshots[extra:]...)
		}
	}

	return rec, nil
}

// GetPerformance возвращает текущую карточку эффективности.
func (r *MemoryRepository) GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.performance[staff]
	if !ok {
		return model.PerformanceRecord{}, ledger.ErrNotFound
	}
	return p.record, nil
}

// GetPerformanceSnapshot возвращает снимок по абсолютному индексу, если он ещё хранится.
func (r *MemoryRepository) GetPerformanceSnapshot(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.performance[staff]
	if !ok || len(p.snapshots) == 0 {
		return model.PerformanceSnapshot{}, ledger.ErrNotFound
	}

	pos := index - p.snapshots[0].Index
	if pos < 0 || pos >= int64(len(p.snapshots)) {
		return model.PerformanceSnapshot{}, ledger.ErrNotFound
	}
	return p.snapshots[pos], nil
}
