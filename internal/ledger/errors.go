// Package ledger реализует правила доступа, учёта ликвидности и карточек эффективности
// без привязки к хранилищу: функции получают состояние и высоту блока и либо
// изменяют состояние целиком, либо возвращают ошибку, не трогая его.
package ledger

import "errors"

// Kind — код причины отказа, возвращаемый клиенту.
type Kind string

const (
	KindUnauthorized               Kind = "Unauthorized"
	KindInvalidRole                Kind = "InvalidRole"
	KindInvalidPrincipal           Kind = "InvalidPrincipal"
	KindInvalidAmount              Kind = "InvalidAmount"
	KindNoLiquidity                Kind = "NoLiquidity"
	KindWithdrawalConditionsNotMet Kind = "WithdrawalConditionsNotMet"
	KindCooldownActive             Kind = "CooldownActive"
	KindNotFound                   Kind = "NotFound"
	KindAlreadyInitialized         Kind = "AlreadyInitialized"
	KindNotActive                  Kind = "NotActive"
	KindOutOfRange                 Kind = "OutOfRange"
)

// Error — ожидаемый доменный отказ. Сравнение через errors.Is идёт по Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is сообщает, совпадает ли вид ошибки с target.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized               = &Error{Kind: KindUnauthorized, Message: "Caller is not authorized."}
	ErrInvalidRole                = &Error{Kind: KindInvalidRole, Message: "Invalid role."}
	ErrInvalidPrincipal           = &Error{Kind: KindInvalidPrincipal, Message: "Invalid principal."}
	ErrInvalidAmount              = &Error{Kind: KindInvalidAmount, Message: "Invalid deposit amount."}
	ErrNoLiquidity                = &Error{Kind: KindNoLiquidity, Message: "Staff has no liquidity to reward."}
	ErrWithdrawalConditionsNotMet = &Error{Kind: KindWithdrawalConditionsNotMet, Message: "Withdrawal conditions not met"}
	ErrCooldownActive             = &Error{Kind: KindCooldownActive, Message: "Withdrawal cooldown is active."}
	ErrNotFound                   = &Error{Kind: KindNotFound, Message: "Not found."}
	ErrAlreadyInitialized         = &Error{Kind: KindAlreadyInitialized, Message: "Performance record already initialized."}
	ErrNotActive                  = &Error{Kind: KindNotActive, Message: "Staff is not active."}
	ErrOutOfRange                 = &Error{Kind: KindOutOfRange, Message: "Metric value out of range."}
)

// KindOf извлекает вид доменной ошибки. Второе значение false для прочих ошибок.
func KindOf(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
