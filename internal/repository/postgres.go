package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool      *pgxpool.Pool
	retention int
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string, snapshotRetention int) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, retention: snapshotRetention}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(delays) {
			return err
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Конфликты сериализации и взаимоблокировки безопасно повторять: транзакция откатилась целиком.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func roleOf(ctx context.Context, q querier, p model.Principal, lock string) (model.Role, error) {
	var role string
	err := q.QueryRow(ctx, `SELECT role FROM roles WHERE principal = $1 `+lock, string(p)).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RoleUnassigned, nil
		}
		return "", fmt.Errorf("select role: %w", err)
	}
	return model.Role(role), nil
}

// GetRole возвращает роль участника или unassigned.
func (r *PostgresRepository) GetRole(ctx context.Context, p model.Principal) (model.Role, error) {
	return roleOf(ctx, r.pool, p, "")
}

// AssignRole назначает роль в одной транзакции с проверкой прав вызывающего.
func (r *PostgresRepository) AssignRole(ctx context.Context, caller, target model.Principal, role model.Role, authorize RoleFunc) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if authorize != nil {
			callerRole, err := roleOf(ctx, tx, caller, "FOR SHARE")
			if err != nil {
				return err
			}
			targetRole, err := roleOf(ctx, tx, target, "FOR UPDATE")
			if err != nil {
				return err
			}
			if err := authorize(callerRole, targetRole); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO roles (principal, role) VALUES ($1, $2)
			 ON CONFLICT (principal) DO UPDATE SET role = EXCLUDED.role, updated_at = now()`,
			string(target), string(role),
		)
		if err != nil {
			return fmt.Errorf("upsert role: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetAccount возвращает счёт; для неизвестного участника возвращается пустой счёт.
func (r *PostgresRepository) GetAccount(ctx context.Context, owner model.Principal) (model.LiquidityAccount, error) {
	acc := model.LiquidityAccount{Owner: owner}
	err := r.pool.QueryRow(ctx,
		`SELECT balance, deposit_count, last_withdrawal_height, has_withdrawn
		 FROM accounts
		 WHERE owner = $1`,
		string(owner),
	).Scan(&acc.Balance, &acc.DepositCount, &acc.LastWithdrawalHeight, &acc.HasWithdrawn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acc, nil
		}
		return model.LiquidityAccount{}, fmt.Errorf("select account: %w", err)
	}
	return acc, nil
}

// UpdateAccount блокирует строку счёта, применяет fn и сохраняет результат в той же транзакции.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, caller, owner model.Principal, fn AccountFunc) (model.LiquidityAccount, error) {
	var out model.LiquidityAccount

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		callerRole, err := roleOf(ctx, tx, caller, "FOR SHARE")
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO accounts (owner) VALUES ($1) ON CONFLICT (owner) DO NOTHING`, string(owner))
		if err != nil {
			return fmt.Errorf("ensure account: %w", err)
		}

		// Блокируем строку счёта: проверки баланса и окна вывода не должны читать устаревшее состояние.
		acc := model.LiquidityAccount{Owner: owner}
		err = tx.QueryRow(ctx,
			`SELECT balance, deposit_count, last_withdrawal_height, has_withdrawn
			 FROM accounts
			 WHERE owner = $1
			 FOR UPDATE`,
			string(owner),
		).Scan(&acc.Balance, &acc.DepositCount, &acc.LastWithdrawalHeight, &acc.HasWithdrawn)
		if err != nil {
			return fmt.Errorf("lock account for update: %w", err)
		}

		dep, err := fn(callerRole, &acc)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts
			 SET balance = $2, deposit_count = $3, last_withdrawal_height = $4, has_withdrawn = $5
			 WHERE owner = $1`,
			string(owner), acc.Balance, acc.DepositCount, acc.LastWithdrawalHeight, acc.HasWithdrawn,
		)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		if dep != nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO deposits (owner, id, amount, deposited_by, height) VALUES ($1, $2, $3, $4, $5)`,
				string(owner), dep.ID, dep.Amount, string(dep.DepositedBy), dep.Height,
			)
			if err != nil {
				return fmt.Errorf("insert deposit: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		out = acc
		return nil
	})
	if err != nil {
		return model.LiquidityAccount{}, err
	}

	return out, nil
}

// GetDeposit возвращает запись о пополнении по её порядковому номеру в счёте.
func (r *PostgresRepository) GetDeposit(ctx context.Context, owner model.Principal, id int64) (model.DepositRecord, error) {
	rec := model.DepositRecord{ID: id}
	var depositedBy string
	err := r.pool.QueryRow(ctx,
		`SELECT amount, deposited_by, height FROM deposits WHERE owner = $1 AND id = $2`,
		string(owner), id,
	).Scan(&rec.Amount, &depositedBy, &rec.Height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DepositRecord{}, ledger.ErrNotFound
		}
		return model.DepositRecord{}, fmt.Errorf("select deposit: %w", err)
	}
	rec.DepositedBy = model.Principal(depositedBy)
	return rec, nil
}

const performanceColumns = `productivity, product_knowledge, quality_of_service, adherence_to_schedule,
	discipline, task_completion, goal_achievement, team_player`

func metricsArgs(m model.Metrics) []any {
	v := m.Values()
	args := make([]any, 0, len(v))
	for _, x := range v {
		args = append(args, x)
	}
	return args
}

func metricsDest(m *model.Metrics) []any {
	return []any{
		&m.Productivity, &m.ProductKnowledge, &m.QualityOfService, &m.AdherenceToSchedule,
		&m.Discipline, &m.TaskCompletion, &m.GoalAchievement, &m.TeamPlayer,
	}
}

func insertSnapshot(ctx context.Context, tx pgx.Tx, staff model.Principal, s model.PerformanceSnapshot) error {
	args := append([]any{string(staff), s.Index, string(s.Status), s.Height}, metricsArgs(s.Metrics)...)
	_, err := tx.Exec(ctx,
		`INSERT INTO performance_snapshots (staff, idx, status, height, `+performanceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// CreatePerformance заводит карточку эффективности вместе с первым снимком.
func (r *PostgresRepository) CreatePerformance(ctx context.Context, caller, staff model.Principal, fn CreatePerformanceFunc) (model.PerformanceRecord, error) {
	var out model.PerformanceRecord

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		callerRole, err := roleOf(ctx, tx, caller, "FOR SHARE")
		if err != nil {
			return err
		}

		rec, snap, err := fn(callerRole)
		if err != nil {
			return err
		}

		args := append([]any{string(staff), string(rec.Status), rec.UpdatedHeight, rec.SnapshotCount}, metricsArgs(rec.Metrics)...)
		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO performance (staff, status, updated_height, snapshot_count, `+performanceColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (staff) DO NOTHING`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert performance: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ledger.ErrAlreadyInitialized
		}

		if err := insertSnapshot(ctx, tx, staff, snap); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		out = rec
		return nil
	})
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	return out, nil
}

func scanPerformance(row pgx.Row, staff model.Principal) (model.PerformanceRecord, error) {
	rec := model.PerformanceRecord{Staff: staff}
	var status string
	dest := append([]any{&status, &rec.UpdatedHeight, &rec.SnapshotCount}, metricsDest(&rec.Metrics)...)
	if err := row.Scan(dest...); err != nil {
		return model.PerformanceRecord{}, err
	}
	rec.Status = model.PerformanceStatus(status)
	return rec, nil
}

// UpdatePerformance блокирует карточку, применяет fn и сохраняет карточку и снимок в одной транзакции.
func (r *PostgresRepository) UpdatePerformance(ctx context.Context, caller, staff model.Principal, fn PerformanceFunc) (model.PerformanceRecord, error) {
	var out model.PerformanceRecord

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		callerRole, err := roleOf(ctx, tx, caller, "FOR SHARE")
		if err != nil {
			return err
		}

		rec, err := scanPerformance(tx.QueryRow(ctx,
			`SELECT status, updated_height, snapshot_count, `+performanceColumns+`
			 FROM performance
			 WHERE staff = $1
			 FOR UPDATE`,
			string(staff),
		), staff)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("lock performance for update: %w", err)
			}
			if _, err := fn(callerRole, nil); err != nil {
				return err
			}
			return ledger.ErrNotFound
		}

		snap, err := fn(callerRole, &rec)
		if err != nil {
			return err
		}

		args := append([]any{string(staff), string(rec.Status), rec.UpdatedHeight, rec.SnapshotCount}, metricsArgs(rec.Metrics)...)
		_, err = tx.Exec(ctx,
			`UPDATE performance
			 SET status = $2, updated_height = $3, snapshot_count = $4,
			     productivity = $5, product_knowledge = $6, quality_of_service = $7, adherence_to_schedule = $8,
			     discipline = $9, task_completion = $10, goal_achievement = $11, team_player = $12
			 WHERE staff = $1`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("update performance: %w", err)
		}

		if snap != nil {
			if err := insertSnapshot(ctx, tx, staff, *snap); err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`DELETE FROM performance_snapshots WHERE staff = $1 AND idx < $2`,
				string(staff), ledger.FirstRetained(rec.SnapshotCount, r.retention),
			)
			if err != nil {
				return fmt.Errorf("prune snapshots: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		out = rec
		return nil
	})
	if err != nil {
		return model.PerformanceRecord{}, err
	}

	return out, nil
}

// GetPerformance возвращает текущую карточку эффективности.
func (r *PostgresRepository) GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error) {
	rec, err := scanPerformance(r.pool.QueryRow(ctx,
		`SELECT status, updated_height, snapshot_count, `+performanceColumns+`
		 FROM performance
		 WHERE staff = $1`,
		string(staff),
	), staff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PerformanceRecord{}, ledger.ErrNotFound
		}
		return model.PerformanceRecord{}, fmt.Errorf("select performance: %w", err)
	}
	return rec, nil
}

// GetPerformanceSnapshot возвращает снимок карточки по индексу.
func (r *PostgresRepository) GetPerformanceSnapshot(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error) {
	snap := model.PerformanceSnapshot{Index: index}
	var status string
	dest := append([]any{&status, &snap.Height}, metricsDest(&snap.Metrics)...)
	err := r.pool.QueryRow(ctx,
		`SELECT status, height, `+performanceColumns+`
		 FROM performance_snapshots
		 WHERE staff = $1 AND idx = $2`,
		string(staff), index,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PerformanceSnapshot{}, ledger.ErrNotFound
		}
		return model.PerformanceSnapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	snap.Status = model.PerformanceStatus(status)
	return snap, nil
}
