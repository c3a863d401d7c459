// Package audit публикует журнал успешных изменений состояния.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/staffledger/internal/model"
)

// EventType описывает вид изменения.
type EventType string

const (
	EventRoleAssigned           EventType = "role_assigned"
	EventLiquidityDeposited     EventType = "liquidity_deposited"
	EventStaffRewarded          EventType = "staff_rewarded"
	EventLiquidityWithdrawn     EventType = "liquidity_withdrawn"
	EventPerformanceInitialized EventType = "performance_initialized"
	EventMetricsUpdated         EventType = "metrics_updated"
	EventStaffDeactivated       EventType = "staff_deactivated"
)

// Event — запись журнала аудита.
type Event struct {
	ID      uuid.UUID
	Type    EventType
	Actor   model.Principal
	Subject model.Principal
	Amount  int64
	Height  int64
	Detail  string
	At      time.Time
}

// NewEvent создаёт событие с новым идентификатором и текущим временем.
func NewEvent(typ EventType, actor, subject model.Principal, height int64) Event {
	return Event{
		ID:      uuid.New(),
		Type:    typ,
		Actor:   actor,
		Subject: subject,
		Height:  height,
		At:      time.Now().UTC(),
	}
}

func (e Event) values() map[string]any {
	return map[string]any{
		"id":      e.ID.String(),
		"type":    string(e.Type),
		"actor":   string(e.Actor),
		"subject": string(e.Subject),
		"amount":  strconv.FormatInt(e.Amount, 10),
		"height":  strconv.FormatInt(e.Height, 10),
		"detail":  e.Detail,
		"at":      e.At.Format(time.RFC3339Nano),
	}
}

// Publisher отправляет события аудита.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// StreamAdder — часть клиента Redis, нужная для записи в поток.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher пишет события в поток Redis.
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisPublisher создаёт публикатор в поток stream, хранящий примерно maxLen последних событий.
func NewRedisPublisher(client StreamAdder, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish добавляет событие в поток.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: e.values(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LogPublisher пишет события в журнал приложения.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher создаёт публикатор, пишущий в logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish записывает событие в журнал.
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.Info("audit",
		zap.String("id", e.ID.String()),
		zap.String("type", string(e.Type)),
		zap.String("actor", string(e.Actor)),
		zap.String("subject", string(e.Subject)),
		zap.Int64("amount", e.Amount),
		zap.Int64("height", e.Height),
		zap.String("detail", e.Detail),
	)
	return nil
}

// NewRedisClient подключается к Redis по URL вида redis://host:port/db.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
