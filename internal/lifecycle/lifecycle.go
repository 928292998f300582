// Package lifecycle управляет окном подписки: активация/продление,
// ленивая сверка флага, пакетное истечение и расчёт следующей проверки.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
)

// Границы паузы между проходами чистки по умолчанию.
const (
	DefaultMinDelay = 30 * time.Second
	DefaultMaxDelay = time.Hour

	monthApprox = 30 * 24 * time.Hour
)

// Store всё, что движку нужно от хранилища аккаунтов. Все методы обязательны.
type Store interface {
	Get(ctx context.Context, userID int64) (*accounts.Account, error)
	// Extend атомарно (под блокировкой строки) пересчитывает конец окна через next.
	Extend(ctx context.Context, p accounts.Profile, next func(current *time.Time) time.Time) (time.Time, error)
	// ExtendForRequest то же, плюс отметка activated_until в заявке в одной транзакции.
	ExtendForRequest(ctx context.Context, p accounts.Profile, requestID int64, next func(current *time.Time) time.Time) (time.Time, error)
	DeactivateIfExpired(ctx context.Context, userID int64, now time.Time) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) ([]int64, error)
	NextExpiry(ctx context.Context, now time.Time) (*time.Time, error)
	Cancel(ctx context.Context, userID int64, now time.Time) error
}

// Engine единственный, кто меняет поля подписки аккаунта.
type Engine struct {
	store    Store
	now      func() time.Time
	minDelay time.Duration
	maxDelay time.Duration
	log      *slog.Logger
}

type Option func(*Engine)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDelayBounds границы для NextCheckDelay; нулевые значения не меняют дефолт.
func WithDelayBounds(lo, hi time.Duration) Option {
	return func(e *Engine) {
		if lo > 0 {
			e.minDelay = lo
		}
		if hi > 0 {
			e.maxDelay = hi
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New движок с границами DefaultMinDelay/DefaultMaxDelay и часами time.Now.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		now:      time.Now,
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.maxDelay < e.minDelay {
		e.maxDelay = e.minDelay
	}
	return e
}

// Now текущее время по часам движка.
func (e *Engine) Now() time.Time { return e.now() }

// UnitDuration переводит длительность тарифа; месяц = 30 дней, неизвестное = дни.
func UnitDuration(value int, unit plans.Unit) time.Duration {
	n := time.Duration(value)
	switch plans.NormalizeUnit(string(unit)) {
	case plans.UnitSeconds:
		return n * time.Second
	case plans.UnitMinutes:
		return n * time.Minute
	case plans.UnitMonths:
		return n * monthApprox
	default:
		return n * 24 * time.Hour
	}
}

// NextEnd новый конец окна: от текущего конца, если он ещё в будущем, иначе от now.
func NextEnd(current *time.Time, now time.Time, value int, unit plans.Unit) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(UnitDuration(value, unit))
}

// ClampDelay ограничивает d отрезком [lo, hi].
func ClampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// ActivateOrExtend включает подписку или продлевает ещё не истёкшую.
func (e *Engine) ActivateOrExtend(ctx context.Context, p accounts.Profile, value int, unit plans.Unit) (time.Time, error) {
	const op = "lifecycle.ActivateOrExtend"

	now := e.now()
	end, err := e.store.Extend(ctx, p, func(current *time.Time) time.Time {
		return NextEnd(current, now, value, unit)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("subscription extended", "user_id", p.UserID, "until", end)
	return end, nil
}

// ActivateForRequest как ActivateOrExtend, но новый конец окна фиксируется в заявке
// атомарно с продлением. Без записи в заявке продления тоже нет.
func (e *Engine) ActivateForRequest(ctx context.Context, p accounts.Profile, requestID int64, value int, unit plans.Unit) (time.Time, error) {
	const op = "lifecycle.ActivateForRequest"

	now := e.now()
	end, err := e.store.ExtendForRequest(ctx, p, requestID, func(current *time.Time) time.Time {
		return NextEnd(current, now, value, unit)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("subscription extended", "user_id", p.UserID, "request_id", requestID, "until", end)
	return end, nil
}

// Status состояние подписки после сверки.
type Status struct {
	Active     bool
	End        *time.Time
	Remaining  time.Duration
	Reconciled bool // флаг был устаревшим и сброшен этим вызовом
}

// Subscription читает аккаунт и, если флаг активен при истёкшем окне, гасит его в хранилище.
// Аккаунта нет: неактивная подписка без ошибки.
func (e *Engine) Subscription(ctx context.Context, userID int64) (Status, error) {
	const op = "lifecycle.Subscription"

	a, err := e.store.Get(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}
	if a == nil {
		return Status{}, nil
	}

	now := e.now()
	st := Status{End: a.SubscriptionEnd}
	if a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now) {
		st.Active = true
		st.Remaining = a.SubscriptionEnd.Sub(now)
		return st, nil
	}

	if a.IsActive {
		flipped, err := e.store.DeactivateIfExpired(ctx, userID, now)
		if err != nil {
			return Status{}, fmt.Errorf("%s: reconcile: %w", op, err)
		}
		st.Reconciled = flipped
		if flipped {
			e.log.Info("stale subscription flag reconciled", "user_id", userID)
		}
	}
	return st, nil
}

func (e *Engine) IsEffectivelyActive(ctx context.Context, userID int64) (bool, error) {
	st, err := e.Subscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.Active, nil
}

// SweepExpired гасит все истёкшие подписки и возвращает затронутых пользователей.
// Повторный вызов без новых активаций вернёт пустой набор.
func (e *Engine) SweepExpired(ctx context.Context) ([]int64, error) {
	ids, err := e.store.DeactivateExpired(ctx, e.now())
	if err != nil {
		return nil, fmt.Errorf("lifecycle.SweepExpired: %w", err)
	}
	return ids, nil
}

// NextCheckDelay время до ближайшего истечения в пределах [min, max]; нет активных, тогда max.
func (e *Engine) NextCheckDelay(ctx context.Context) (time.Duration, error) {
	now := e.now()
	next, err := e.store.NextExpiry(ctx, now)
	if err != nil {
		return e.maxDelay, fmt.Errorf("lifecycle.NextCheckDelay: %w", err)
	}
	if next == nil {
		return e.maxDelay, nil
	}
	return ClampDelay(next.Sub(now), e.minDelay, e.maxDelay), nil
}

// Deactivate отмена пользователем: флаг снят, конец окна обрезан до текущего момента.
func (e *Engine) Deactivate(ctx context.Context, userID int64) error {
	if err := e.store.Cancel(ctx, userID, e.now()); err != nil {
		return fmt.Errorf("lifecycle.Deactivate: %w", err)
	}
	e.log.Info("subscription cancelled", "user_id", userID)
	return nil
}
