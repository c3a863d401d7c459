// Package repository содержит хранилища состояния сервиса: PostgreSQL и память процесса.
//
// Изменяющие методы принимают функцию, которая получает роль вызывающего и текущее
// состояние и выполняется внутри той же атомарной единицы, что и запись. Если функция
// вернула ошибку, состояние не меняется.
package repository

import "github.com/mmeshcher/staffledger/internal/model"

// RoleFunc проверяет назначение роли по роли вызывающего и текущей роли цели.
type RoleFunc func(callerRole, targetRole model.Role) error

// AccountFunc изменяет счёт. Возвращённая запись о пополнении добавляется в историю счёта.
type AccountFunc func(callerRole model.Role, acc *model.LiquidityAccount) (*model.DepositRecord, error)

// CreatePerformanceFunc строит новую карточку эффективности и её первый снимок.
type CreatePerformanceFunc func(callerRole model.Role) (model.PerformanceRecord, model.PerformanceSnapshot, error)

// PerformanceFunc изменяет карточку эффективности. rec равен nil, если карточки нет.
// Возвращённый снимок добавляется в историю.
type PerformanceFunc func(callerRole model.Role, rec *model.PerformanceRecord) (*model.PerformanceSnapshot, error)
