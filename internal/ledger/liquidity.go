package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmeshcher/staffledger/internal/model"
)

const bpsDenominator = 10000

// ErrBalanceOverflow возвращается, если вознаграждение не помещается в int64.
var ErrBalanceOverflow = errors.New("reward would overflow balance")

// Limits задаёт числовые параметры протокола.
type Limits struct {
	// Пополнение допустимо при DepositMin < amount <= DepositMax.
	DepositMin int64
	DepositMax int64
	// Вознаграждение в базисных пунктах: 200 = 2%.
	RewardRateBPS int64
	// Вывод допустим при WithdrawalMin <= amount <= min(WithdrawalCeiling, balance).
	WithdrawalMin     int64
	WithdrawalCeiling int64
	CooldownBlocks    int64
	SnapshotRetention int
}

// DefaultLimits возвращает значения параметров по умолчанию.
func DefaultLimits() Limits {
	return Limits{
		DepositMin:        100,
		DepositMax:        10000,
		RewardRateBPS:     200,
		WithdrawalMin:     100,
		WithdrawalCeiling: 10000,
		CooldownBlocks:    100,
		SnapshotRetention: 50,
	}
}

// Validate проверяет согласованность параметров.
func (l Limits) Validate() error {
	switch {
	case l.DepositMin < 0 || l.DepositMax <= l.DepositMin:
		return fmt.Errorf("deposit range (%d, %d] is empty", l.DepositMin, l.DepositMax)
	case l.RewardRateBPS < 0 || l.RewardRateBPS > bpsDenominator:
		return fmt.Errorf("reward rate %d bps not in [0, %d]", l.RewardRateBPS, bpsDenominator)
	case l.WithdrawalMin <= 0 || l.WithdrawalCeiling < l.WithdrawalMin:
		return fmt.Errorf("withdrawal range [%d, %d] is empty", l.WithdrawalMin, l.WithdrawalCeiling)
	case l.CooldownBlocks < 0:
		return errors.New("cooldown must not be negative")
	case l.SnapshotRetention <= 0:
		return errors.New("snapshot retention must be positive")
	}
	return nil
}

// Deposit зачисляет amount на счёт и возвращает новую запись истории пополнений.
func (l Limits) Deposit(acc *model.LiquidityAccount, caller model.Principal, amount, height int64) (model.DepositRecord, error) {
	if amount <= l.DepositMin || amount > l.DepositMax {
		return model.DepositRecord{}, fmt.Errorf("%w: %d not in (%d, %d]", ErrInvalidAmount, amount, l.DepositMin, l.DepositMax)
	}
	if acc.Balance > math.MaxInt64-amount {
		return model.DepositRecord{}, fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}

	rec := model.DepositRecord{
		ID:          acc.DepositCount + 1,
		Amount:      amount,
		DepositedBy: caller,
		Height:      height,
	}
	acc.Balance += amount
	acc.DepositCount = rec.ID

	return rec, nil
}

// Reward начисляет процент от текущего баланса и возвращает новый баланс.
func (l Limits) Reward(acc *model.LiquidityAccount) (int64, error) {
	if acc.Balance <= 0 {
		return acc.Balance, ErrNoLiquidity
	}

	// floor(balance * rate / 10000); при rate <= 10000 оба слагаемых не превосходят balance
	inc := acc.Balance/bpsDenominator*l.RewardRateBPS + acc.Balance%bpsDenominator*l.RewardRateBPS/bpsDenominator
	if inc > math.MaxInt64-acc.Balance {
		return acc.Balance, fmt.Errorf("%w: balance %d", ErrBalanceOverflow, acc.Balance)
	}

	acc.Balance += inc
	return acc.Balance, nil
}

// BlocksRemaining возвращает число блоков до открытия окна вывода.
func (l Limits) BlocksRemaining(acc *model.LiquidityAccount, height int64) int64 {
	if !acc.HasWithdrawn {
		return 0
	}
	remaining := acc.LastWithdrawalHeight + l.CooldownBlocks - height
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxWithdrawal возвращает наименьшее из потолка протокола и текущего баланса.
func (l Limits) MaxWithdrawal(acc *model.LiquidityAccount) int64 {
	return min(l.WithdrawalCeiling, acc.Balance)
}

// Withdraw списывает amount со счёта. Окно ожидания проверяется раньше границ суммы.
func (l Limits) Withdraw(acc *model.LiquidityAccount, amount, height int64) error {
	if remaining := l.BlocksRemaining(acc, height); remaining > 0 {
		return fmt.Errorf("%w: %d blocks remaining", ErrCooldownActive, remaining)
	}

	maxAmount := l.MaxWithdrawal(acc)
	if amount < l.WithdrawalMin || amount > maxAmount {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrWithdrawalConditionsNotMet, amount, l.WithdrawalMin, maxAmount)
	}

	acc.Balance -= amount
	acc.LastWithdrawalHeight = height
	acc.HasWithdrawn = true

	return nil
}

// WithdrawalInfo собирает сводку условий вывода без изменения счёта.
func (l Limits) WithdrawalInfo(acc *model.LiquidityAccount, height int64) model.WithdrawalInfo {
	return model.WithdrawalInfo{
		AvailableBalance:        acc.Balance,
		CooldownBlocksRemaining: l.BlocksRemaining(acc, height),
		MinWithdrawal:           l.WithdrawalMin,
		MaxWithdrawal:           l.MaxWithdrawal(acc),
	}
}
