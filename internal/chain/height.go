package chain

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrHeightUnknown возвращается, пока трекер не получил ни одной высоты от узла.
var ErrHeightUnknown = errors.New("block height not yet known")

// Source отдаёт текущую высоту блока.
type Source interface {
	Height(ctx context.Context) (int64, error)
}

type infoFetcher interface {
	GetInfo(ctx context.Context) (*NodeInfo, int, time.Duration, error)
}

// Tracker периодически опрашивает узел и хранит последнюю известную высоту.
// Высота только растёт: ответ узла с меньшим значением игнорируется.
type Tracker struct {
	client   infoFetcher
	interval time.Duration
	logger   *zap.Logger
	height   atomic.Int64
	synced   atomic.Bool
	observe  func(int64)
}

// NewTracker создаёт трекер высоты. observe вызывается при каждом изменении высоты и может быть nil.
func NewTracker(client *Client, interval time.Duration, logger *zap.Logger, observe func(int64)) *Tracker {
	return newTracker(client, interval, logger, observe)
}

func newTracker(client infoFetcher, interval time.Duration, logger *zap.Logger, observe func(int64)) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observe == nil {
		observe = func(int64) {}
	}
	return &Tracker{
		client:   client,
		interval: interval,
		logger:   logger,
		observe:  observe,
	}
}

// Height возвращает последнюю известную высоту.
func (t *Tracker) Height(ctx context.Context) (int64, error) {
	if !t.synced.Load() {
		return 0, ErrHeightUnknown
	}
	return t.height.Load(), nil
}

// Run опрашивает узел до отмены контекста.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if wait := t.poll(ctx); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll выполняет один запрос и возвращает паузу, которую попросил узел.
func (t *Tracker) poll(ctx context.Context) time.Duration {
	info, statusCode, retryAfter, err := t.client.GetInfo(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("fetch node info error", zap.Error(err))
		}
		return 0
	}

	if statusCode == http.StatusTooManyRequests {
		t.logger.Info("node rate limited height polling", zap.Duration("retryAfter", retryAfter))
		return retryAfter
	}

	if info == nil {
		return 0
	}

	t.advance(info.TipHeight)
	return 0
}

func (t *Tracker) advance(h int64) {
	for {
		cur := t.height.Load()
		if t.synced.Load() && h <= cur {
			return
		}
		if t.height.CompareAndSwap(cur, h) {
			t.synced.Store(true)
			t.observe(h)
			return
		}
	}
}

// Clock вычисляет высоту по времени, прошедшему с момента genesis.
type Clock struct {
	Genesis  time.Time
	Interval time.Duration
	Now      func() time.Time
}

// Height возвращает число полных интервалов с момента genesis.
func (c Clock) Height(ctx context.Context) (int64, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.Interval <= 0 {
		return 0, errors.New("block interval must be positive")
	}

	elapsed := now().Sub(c.Genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return int64(elapsed / c.Interval), nil
}

// Fixed отдаёт постоянную высоту.
type Fixed int64

// Height возвращает заданную высоту.
func (f Fixed) Height(ctx context.Context) (int64, error) {
	return int64(f), nil
}
