// Package service реализует бизнес-логику сервиса: реестр ролей, проверку прав,
// учёт ликвидности, вознаграждения, вывод средств и карточки эффективности.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/staffledger/internal/audit"
	"github.com/mmeshcher/staffledger/internal/chain"
	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/metrics"
	"github.com/mmeshcher/staffledger/internal/model"
	"github.com/mmeshcher/staffledger/internal/repository"
	"github.com/mmeshcher/staffledger/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	GetRole(ctx context.Context, p model.Principal) (model.Role, error)
	AssignRole(ctx context.Context, caller, target model.Principal, role model.Role, authorize repository.RoleFunc) error
	GetAccount(ctx context.Context, owner model.Principal) (model.LiquidityAccount, error)
	UpdateAccount(ctx context.Context, caller, owner model.Principal, fn repository.AccountFunc) (model.LiquidityAccount, error)
	GetDeposit(ctx context.Context, owner model.Principal, id int64) (model.DepositRecord, error)
	CreatePerformance(ctx context.Context, caller, staff model.Principal, fn repository.CreatePerformanceFunc) (model.PerformanceRecord, error)
	UpdatePerformance(ctx context.Context, caller, staff model.Principal, fn repository.PerformanceFunc) (model.PerformanceRecord, error)
	GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error)
	GetPerformanceSnapshot(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo      Repository
	heights   chain.Source
	limits    ledger.Limits
	policy    ledger.Policy
	publisher audit.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithPublisher задаёт публикатор журнала аудита.
func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPolicy заменяет таблицу разрешений.
func WithPolicy(p ledger.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService создаёт новый сервис с указанным хранилищем, источником высоты и параметрами.
func NewService(repo Repository, heights chain.Source, limits ledger.Limits, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:    repo,
		heights: heights,
		limits:  limits,
		policy:  ledger.DefaultPolicy(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = audit.NewLogPublisher(logger)
	}

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Limits возвращает действующие параметры протокола.
func (s *Service) Limits() ledger.Limits {
	return s.limits
}

func checkPrincipal(p model.Principal) error {
	if !validation.IsValidPrincipal(string(p)) {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidPrincipal, p)
	}
	return nil
}

func (s *Service) height(ctx context.Context) (int64, error) {
	h, err := s.heights.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("current height: %w", err)
	}
	return h, nil
}

// observe учитывает результат операции в метриках и пишет в журнал неожиданные ошибки.
func (s *Service) observe(op string, err error) {
	if err == nil {
		s.metrics.ObserveOperation(op, "ok")
		return
	}

	if e, ok := ledger.KindOf(err); ok {
		s.metrics.ObserveOperation(op, string(e.Kind))
		return
	}

	s.metrics.ObserveOperation(op, "internal")
	if !errors.Is(err, context.Canceled) {
		s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, e audit.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish audit event error", zap.Error(err), zap.String("type", string(e.Type)))
	}
}

func (s *Service) authorize(role model.Role, action model.Action) error {
	if !s.policy.Allows(role, action) {
		return fmt.Errorf("%w: role %s may not %s", ledger.ErrUnauthorized, role, action)
	}
	return nil
}
