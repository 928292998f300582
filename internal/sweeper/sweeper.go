// Package sweeper фоновая чистка истёкших подписок: пауза до ближайшего
// истечения, пакетное истечение, затем удаление из канала и уведомление.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/infra/metrics"
)

// Lifecycle расписание и пакетное истечение; реализует lifecycle.Engine.
type Lifecycle interface {
	NextCheckDelay(ctx context.Context) (time.Duration, error)
	SweepExpired(ctx context.Context) ([]int64, error)
}

// Marks отметка в аккаунте, что пользователь удалён из канала.
type Marks interface {
	MarkRemovedFromChannel(ctx context.Context, userID int64) error
}

// WaitFunc ждёт d; false, если контекст отменён во время ожидания.
type WaitFunc func(ctx context.Context, d time.Duration) bool

type Sweeper struct {
	lc            Lifecycle
	marks         Marks
	access        channel.Access
	log           *slog.Logger
	actionTimeout time.Duration
	wait          WaitFunc
}

type Option func(*Sweeper)

// WithActionTimeout предел на каждое действие по одному пользователю (20s по умолчанию).
func WithActionTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.actionTimeout = d
		}
	}
}

func WithWait(w WaitFunc) Option {
	return func(s *Sweeper) { s.wait = w }
}

// New чистильщик; запускается через Run.
func New(lc Lifecycle, marks Marks, access channel.Access, log *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		lc:            lc,
		marks:         marks,
		access:        access,
		log:           log.With("component", "sweeper"),
		actionTimeout: 20 * time.Second,
		wait:          sleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run ожидание -> проход -> ожидание, пока не отменён ctx.
// Начатый проход доводится до конца даже при остановке.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started")
	for {
		d, err := s.lc.NextCheckDelay(ctx)
		if err != nil {
			s.log.Warn("next check delay failed, using fallback", "err", err, "delay", d)
		}
		metrics.NextCheckSeconds.Set(d.Seconds())
		s.log.Debug("sweeper sleeping", "delay", d)

		if !s.wait(ctx, d) {
			s.log.Info("sweeper stopped")
			return ctx.Err()
		}
		s.SweepOnce(ctx)
	}
}

// SweepOnce один проход: погасить истёкшие и по каждому пользователю
// снять доступ, отметить удаление, отправить уведомление. Возвращает число погашенных.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With("sweep_id", uuid.NewString())

	ids, err := s.lc.SweepExpired(ctx)
	if err != nil {
		metrics.Sweeps.WithLabelValues("error").Inc()
		log.Error("sweep failed", "err", err)
		return 0
	}
	metrics.Sweeps.WithLabelValues("ok").Inc()
	if len(ids) == 0 {
		return 0
	}
	metrics.Expired.Add(float64(len(ids)))
	log.Info("subscriptions expired", "count", len(ids))

	for _, id := range ids {
		s.expireUser(ctx, log, id)
	}
	return len(ids)
}

func (s *Sweeper) expireUser(ctx context.Context, log *slog.Logger, userID int64) {
	log = log.With("user_id", userID)

	s.step(ctx, log, "revoke", func(ctx context.Context) error {
		return s.access.Revoke(ctx, userID)
	})
	s.step(ctx, log, "mark", func(ctx context.Context) error {
		return s.marks.MarkRemovedFromChannel(ctx, userID)
	})
	s.step(ctx, log, "notify", func(ctx context.Context) error {
		return s.access.Notify(ctx, userID, channel.Notice{Kind: channel.NoticeExpired})
	})
}

// step одно действие со своим таймаутом; ошибка или паника не выходит наружу.
func (s *Sweeper) step(ctx context.Context, log *slog.Logger, action string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.actionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.SideEffectFailures.WithLabelValues(action).Inc()
			sentry.CurrentHub().Recover(r)
			log.Error("expiry action panicked", "action", action, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(ctx); err != nil {
		metrics.SideEffectFailures.WithLabelValues(action).Inc()
		log.Warn("expiry action failed", "action", action, "err", err)
	}
}
