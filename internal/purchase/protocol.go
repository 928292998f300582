// Package purchase заявка на покупку и решение админа по ней.
//
// Порядок одобрения: активация -> ссылка -> доставка -> удаление заявки.
// Пока заявка не удалена, она остаётся записью «требует внимания».
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/infra/metrics"
)

var (
	ErrRequestNotFound = errors.New("purchase: request not found")
	ErrPlanNotFound    = errors.New("purchase: plan not found")
	ErrAccountNotFound = errors.New("purchase: account not found")
	ErrActivation      = errors.New("purchase: activation failed")
	// ErrInviteFailed подписка уже активна, ссылку создать не удалось.
	ErrInviteFailed = errors.New("purchase: subscription active, invite failed")
	// ErrDeliveryFailed подписка и ссылка есть, пользователь сообщение не получил.
	ErrDeliveryFailed = errors.New("purchase: subscription active, invite not delivered")
	ErrAnnounceFailed = errors.New("purchase: request saved, admins not notified")
	ErrNoticeFailed   = errors.New("purchase: user not notified")
)

type Accounts interface {
	UpsertProfile(ctx context.Context, p accounts.Profile) error
	Get(ctx context.Context, userID int64) (*accounts.Account, error)
	MarkAddedToChannel(ctx context.Context, userID int64) error
}

type Plans interface {
	Get(ctx context.Context, id int64) (*plans.Plan, error)
}

type Requests interface {
	Create(ctx context.Context, req purchases.Request) (*purchases.Request, error)
	Get(ctx context.Context, id int64) (*purchases.Request, error)
	Delete(ctx context.Context, id int64) error
}

// Activator реализует lifecycle.Engine. ActivateForRequest записывает
// activated_until в заявку той же транзакцией, что и продление.
type Activator interface {
	ActivateForRequest(ctx context.Context, p accounts.Profile, requestID int64, value int, unit plans.Unit) (time.Time, error)
	IsEffectivelyActive(ctx context.Context, userID int64) (bool, error)
}

// Announcer рассылает заявку админам с кнопками одобрить/отклонить.
type Announcer interface {
	AnnounceRequest(ctx context.Context, req purchases.Request, plan plans.Plan, photoFileID *string) error
}

type Protocol struct {
	accounts  Accounts
	plans     Plans
	requests  Requests
	activator Activator
	access    channel.Access
	announcer Announcer
	log       *slog.Logger
}

func New(acc Accounts, pl Plans, req Requests, act Activator, access channel.Access, ann Announcer, log *slog.Logger) *Protocol {
	return &Protocol{
		accounts:  acc,
		plans:     pl,
		requests:  req,
		activator: act,
		access:    access,
		announcer: ann,
		log:       log.With("component", "purchase"),
	}
}

// Submit сохраняет профиль и заявку, затем оповещает админов.
// Ошибка оповещения не отменяет заявку: вернётся заявка и ErrAnnounceFailed.
func (p *Protocol) Submit(ctx context.Context, profile accounts.Profile, planID int64) (*purchases.Request, error) {
	const op = "purchase.Submit"

	if err := p.accounts.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("%s: upsert profile: %w", op, err)
	}
	plan, err := p.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: get plan: %w", op, err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	acc, err := p.accounts.Get(ctx, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: get account: %w", op, err)
	}
	draft := purchases.Request{
		UserID:   profile.UserID,
		Username: accounts.DisplayName(profile.UserID, profile.Username),
		Phone:    profile.Phone,
		PlanID:   plan.ID,
	}
	var photo *string
	if acc != nil {
		draft.Username = acc.DisplayName()
		if acc.Phone != nil {
			draft.Phone = acc.Phone
		}
		photo = acc.PhotoFileID
	}

	req, err := p.requests.Create(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	metrics.PurchaseRequests.Inc()
	log := p.log.With("request_id", req.ID, "user_id", req.UserID, "plan_id", plan.ID)
	log.Info("purchase request created")

	if err := p.announcer.AnnounceRequest(ctx, *req, *plan, photo); err != nil {
		log.Error("announce failed", "err", err)
		return req, fmt.Errorf("%w: %w", ErrAnnounceFailed, err)
	}
	return req, nil
}

// Approval итог одобрения; при частичном успехе заполнено то, что успело пройти.
type Approval struct {
	Request    purchases.Request
	Plan       plans.Plan
	Until      time.Time
	InviteLink string
}

func (p *Protocol) Approve(ctx context.Context, requestID int64) (*Approval, error) {
	const op = "purchase.Approve"
	log := p.log.With("request_id", requestID)

	req, err := p.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%s: get request: %w", op, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	log = log.With("user_id", req.UserID, "plan_id", req.PlanID)

	plan, err := p.plans.Get(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: get plan: %w", op, err)
	}
	if plan == nil {
		p.discard(ctx, log, req.ID, "plan_missing")
		return nil, ErrPlanNotFound
	}
	acc, err := p.accounts.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: get account: %w", op, err)
	}
	if acc == nil {
		p.discard(ctx, log, req.ID, "account_missing")
		return nil, ErrAccountNotFound
	}

	res := &Approval{Request: *req, Plan: *plan}

	// 1. активация; повтор после частичного сбоя окно второй раз не продлевает
	activate := true
	if req.ActivatedUntil != nil {
		kept, err := p.activationHolds(ctx, acc, *req.ActivatedUntil)
		if err != nil {
			log.Error("check previous activation failed", "err", err)
			return nil, fmt.Errorf("%s: check activation: %w", op, err)
		}
		if kept {
			activate = false
			res.Until = *acc.SubscriptionEnd
			log.Info("activation already done, retrying side effects", "until", res.Until)
		} else {
			// окно успели погасить: активируем заново
			log.Warn("previous activation lapsed, activating again", "activated_until", *req.ActivatedUntil)
		}
	}
	if activate {
		until, err := p.activator.ActivateForRequest(ctx, accounts.Profile{UserID: req.UserID}, req.ID, plan.DurationValue, plan.DurationUnit)
		if err != nil {
			if errors.Is(err, accounts.ErrRequestNotFound) {
				return nil, ErrRequestNotFound
			}
			metrics.PurchaseDecisions.WithLabelValues("activation_failed").Inc()
			log.Error("activation failed", "err", err)
			return nil, fmt.Errorf("%w: %w", ErrActivation, err)
		}
		res.Until = until
	}

	// 2. одноразовая ссылка
	link, err := p.access.Grant(ctx, req.UserID)
	if err != nil {
		metrics.PurchaseDecisions.WithLabelValues("invite_failed").Inc()
		metrics.SideEffectFailures.WithLabelValues("invite").Inc()
		log.Error("invite failed", "err", err)
		return res, fmt.Errorf("%w: %w", ErrInviteFailed, err)
	}
	res.InviteLink = link

	// 3. доставка
	if err := p.access.Notify(ctx, req.UserID, channel.Notice{
		Kind:       channel.NoticeInvite,
		PlanName:   plan.Name,
		Until:      res.Until,
		InviteLink: link,
	}); err != nil {
		metrics.PurchaseDecisions.WithLabelValues("delivery_failed").Inc()
		metrics.SideEffectFailures.WithLabelValues("deliver").Inc()
		log.Error("invite delivery failed", "err", err)
		return res, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if err := p.accounts.MarkAddedToChannel(ctx, req.UserID); err != nil {
		log.Warn("mark added to channel failed", "err", err)
	}

	// 4. заявку удаляем последней
	if err := p.requests.Delete(ctx, req.ID); err != nil && !errors.Is(err, purchases.ErrNotFound) {
		log.Error("delete request failed", "err", err)
		return res, fmt.Errorf("%s: delete request: %w", op, err)
	}
	metrics.PurchaseDecisions.WithLabelValues("approved").Inc()
	log.Info("purchase approved", "until", res.Until)
	return res, nil
}

// Reject удаляет заявку и пытается уведомить пользователя.
// Ошибка уведомления не отменяет удаление: вернётся заявка и ErrNoticeFailed.
func (p *Protocol) Reject(ctx context.Context, requestID int64) (*purchases.Request, error) {
	const op = "purchase.Reject"
	log := p.log.With("request_id", requestID)

	req, err := p.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%s: get request: %w", op, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if err := p.requests.Delete(ctx, req.ID); err != nil {
		if errors.Is(err, purchases.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("%s: delete request: %w", op, err)
	}
	metrics.PurchaseDecisions.WithLabelValues("rejected").Inc()
	log.Info("purchase rejected", "user_id", req.UserID)

	n := channel.Notice{Kind: channel.NoticeRejected}
	if plan, err := p.plans.Get(ctx, req.PlanID); err == nil && plan != nil {
		n.PlanName = plan.Name
	}
	if err := p.access.Notify(ctx, req.UserID, n); err != nil {
		metrics.SideEffectFailures.WithLabelValues("notify").Inc()
		log.Warn("reject notice failed", "err", err)
		return req, fmt.Errorf("%w: %w", ErrNoticeFailed, err)
	}
	return req, nil
}

// activationHolds true, если окно, открытое прошлой попыткой, всё ещё действует.
func (p *Protocol) activationHolds(ctx context.Context, acc *accounts.Account, until time.Time) (bool, error) {
	if acc.SubscriptionEnd == nil || acc.SubscriptionEnd.Before(until) {
		return false, nil
	}
	return p.activator.IsEffectivelyActive(ctx, acc.UserID)
}

func (p *Protocol) discard(ctx context.Context, log *slog.Logger, id int64, reason string) {
	metrics.PurchaseDecisions.WithLabelValues(reason).Inc()
	if err := p.requests.Delete(ctx, id); err != nil {
		log.Warn("discard invalid request failed", "reason", reason, "err", err)
		return
	}
	log.Warn("invalid request discarded", "reason", reason)
}
