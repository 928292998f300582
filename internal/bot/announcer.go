package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/purchase"
)

var errNoAdminReached = errors.New("no admin reached")

// Announcer сообщения админам от имени админ-бота.
type Announcer struct {
	api    *tgbotapi.BotAPI
	admins []int64
	log    *slog.Logger
}

var _ purchase.Announcer = (*Announcer)(nil)

func NewAnnouncer(api *tgbotapi.BotAPI, admins []int64, log *slog.Logger) *Announcer {
	return &Announcer{api: api, admins: admins, log: log.With("component", "announcer")}
}

func requestCaption(req purchases.Request, plan plans.Plan) string {
	return fmt.Sprintf("🧾 Заявка №%d\nПользователь: %s (id %d)\nТелефон: %s\nТариф: %s · %d %s · %.2f ₽",
		req.ID, req.Username, req.UserID, deref(req.Phone, "—"),
		plan.Name, plan.DurationValue, plan.DurationUnit.Title(), plan.Price)
}

// AnnounceRequest заявка каждому админу: фото профиля с подписью или текст, плюс кнопки решения.
// Ошибка, только если не дошло ни до кого.
func (a *Announcer) AnnounceRequest(ctx context.Context, req purchases.Request, plan plans.Plan, photoFileID *string) error {
	caption := requestCaption(req, plan)
	kb := decisionKeyboard(req.ID)

	return a.each(ctx, func(adminID int64) tgbotapi.Chattable {
		if photoFileID != nil && *photoFileID != "" {
			p := tgbotapi.NewPhoto(adminID, tgbotapi.FileID(*photoFileID))
			p.Caption = caption
			p.ReplyMarkup = kb
			return p
		}
		m := tgbotapi.NewMessage(adminID, caption)
		m.ReplyMarkup = kb
		return m
	})
}

// NotifyAdmins простой текст всем админам.
func (a *Announcer) NotifyAdmins(ctx context.Context, text string) error {
	return a.each(ctx, func(adminID int64) tgbotapi.Chattable {
		return tgbotapi.NewMessage(adminID, text)
	})
}

func (a *Announcer) each(ctx context.Context, build func(adminID int64) tgbotapi.Chattable) error {
	var errs []error
	delivered := 0
	for _, id := range a.admins {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := a.api.Send(build(id)); err != nil {
			a.log.Warn("admin message failed", "admin_id", id, "err", err)
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(append([]error{errNoAdminReached}, errs...)...)
	}
	return nil
}
