package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/staffledger/internal/audit"
	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

// DepositLiquidity зачисляет amount на счёт account от имени caller и возвращает запись о пополнении.
func (s *Service) DepositLiquidity(ctx context.Context, caller, account model.Principal, amount int64) (rec model.DepositRecord, err error) {
	defer func() { s.observe("deposit", err) }()

	if err := checkPrincipal(caller); err != nil {
		return model.DepositRecord{}, err
	}
	if err := checkPrincipal(account); err != nil {
		return model.DepositRecord{}, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return model.DepositRecord{}, err
	}

	_, err = s.repo.UpdateAccount(ctx, caller, account, func(callerRole model.Role, acc *model.LiquidityAccount) (*model.DepositRecord, error) {
		if err := s.authorize(callerRole, model.ActionDeposit); err != nil {
			return nil, err
		}
		r, err := s.limits.Deposit(acc, caller, amount, h)
		if err != nil {
			return nil, err
		}
		rec = r
		return &r, nil
	})
	if err != nil {
		return model.DepositRecord{}, err
	}

	e := audit.NewEvent(audit.EventLiquidityDeposited, caller, account, h)
	e.Amount = amount
	e.Detail = fmt.Sprintf("deposit #%d", rec.ID)
	s.publish(ctx, e)

	return rec, nil
}

// GetLiquidity возвращает баланс счёта; для неизвестного счёта — 0.
func (s *Service) GetLiquidity(ctx context.Context, account model.Principal) (int64, error) {
	if err := checkPrincipal(account); err != nil {
		return 0, err
	}
	acc, err := s.repo.GetAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// GetDepositHistory возвращает запись о пополнении по порядковому номеру в счёте.
func (s *Service) GetDepositHistory(ctx context.Context, account model.Principal, id int64) (model.DepositRecord, error) {
	if err := checkPrincipal(account); err != nil {
		return model.DepositRecord{}, err
	}
	if id < 1 {
		return model.DepositRecord{}, fmt.Errorf("%w: deposit #%d", ledger.ErrNotFound, id)
	}
	return s.repo.GetDeposit(ctx, account, id)
}

// RewardStaff начисляет вознаграждение на баланс account и возвращает новый баланс.
// Повторный вызов начисляет вознаграждение снова.
func (s *Service) RewardStaff(ctx context.Context, caller, account model.Principal) (balance int64, err error) {
	defer func() { s.observe("reward", err) }()

	if err := checkPrincipal(caller); err != nil {
		return 0, err
	}
	if err := checkPrincipal(account); err != nil {
		return 0, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return 0, err
	}

	var before int64
	acc, err := s.repo.UpdateAccount(ctx, caller, account, func(callerRole model.Role, acc *model.LiquidityAccount) (*model.DepositRecord, error) {
		if err := s.authorize(callerRole, model.ActionReward); err != nil {
			return nil, err
		}
		before = acc.Balance
		_, err := s.limits.Reward(acc)
		return nil, err
	})
	if err != nil {
		return 0, err
	}

	e := audit.NewEvent(audit.EventStaffRewarded, caller, account, h)
	e.Amount = acc.Balance - before
	s.publish(ctx, e)

	return acc.Balance, nil
}

// WithdrawLiquidity списывает amount со счёта account его владельцем.
func (s *Service) WithdrawLiquidity(ctx context.Context, account model.Principal, amount int64) (err error) {
	defer func() { s.observe("withdraw", err) }()

	if err := checkPrincipal(account); err != nil {
		return err
	}

	h, err := s.height(ctx)
	if err != nil {
		return err
	}

	_, err = s.repo.UpdateAccount(ctx, account, account, func(_ model.Role, acc *model.LiquidityAccount) (*model.DepositRecord, error) {
		return nil, s.limits.Withdraw(acc, amount, h)
	})
	if err != nil {
		return err
	}

	e := audit.NewEvent(audit.EventLiquidityWithdrawn, account, account, h)
	e.Amount = amount
	s.publish(ctx, e)

	return nil
}

// TimeToNextWithdrawal возвращает число блоков до открытия окна вывода.
func (s *Service) TimeToNextWithdrawal(ctx context.Context, account model.Principal) (int64, error) {
	if err := checkPrincipal(account); err != nil {
		return 0, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return 0, err
	}

	acc, err := s.repo.GetAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	return s.limits.BlocksRemaining(&acc, h), nil
}

// GetWithdrawalInfo возвращает сводку условий вывода для счёта.
func (s *Service) GetWithdrawalInfo(ctx context.Context, account model.Principal) (model.WithdrawalInfo, error) {
	if err := checkPrincipal(account); err != nil {
		return model.WithdrawalInfo{}, err
	}

	h, err := s.height(ctx)
	if err != nil {
		return model.WithdrawalInfo{}, err
	}

	acc, err := s.repo.GetAccount(ctx, account)
	if err != nil {
		return model.WithdrawalInfo{}, err
	}
	return s.limits.WithdrawalInfo(&acc, h), nil
}
