package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/domain/settings"
	"github.com/Spok95/subaccess-bot/internal/lifecycle"
	"github.com/Spok95/subaccess-bot/internal/purchase"
	"github.com/Spok95/subaccess-bot/internal/texts"
)

type UserAccounts interface {
	UpsertProfile(ctx context.Context, p accounts.Profile) error
	MarkRemovedFromChannel(ctx context.Context, userID int64) error
}

type PlanCatalog interface {
	List(ctx context.Context) ([]plans.Plan, error)
}

type Subscriptions interface {
	Subscription(ctx context.Context, userID int64) (lifecycle.Status, error)
	Deactivate(ctx context.Context, userID int64) error
}

type Purchases interface {
	Submit(ctx context.Context, profile accounts.Profile, planID int64) (*purchases.Request, error)
}

type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// States диалоги и язык; для каждого бота свой scope.
type States interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
	GetLang(ctx context.Context, userID int64) (string, error)
	SetLang(ctx context.Context, userID int64, lang string) error
}

type SettingsReader interface {
	Get(ctx context.Context, key, def string) (string, error)
}

type Photos interface {
	ProfilePhoto(ctx context.Context, userID int64) (*string, error)
}

type UserDeps struct {
	Accounts  UserAccounts
	Plans     PlanCatalog
	Subs      Subscriptions
	Purchases Purchases
	Access    channel.Access
	Admins    AdminNotifier
	States    States
	Settings  SettingsReader
	Photos    Photos
	Location  *time.Location
}

// UserBot бот для подписчиков: покупка, статус, отмена, связь с админом.
type UserBot struct {
	base
	UserDeps
}

func NewUserBot(api *tgbotapi.BotAPI, log *slog.Logger, deps UserDeps) *UserBot {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &UserBot{
		base:     base{name: "user", api: api, log: log.With("bot", "user")},
		UserDeps: deps,
	}
}

func (b *UserBot) Run(ctx context.Context, timeoutSec int) error {
	return b.run(ctx, timeoutSec, b.handle)
}

func (b *UserBot) handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

func (b *UserBot) lang(ctx context.Context, userID int64) string {
	l, err := b.States.GetLang(ctx, userID)
	if err != nil {
		b.log.Warn("get lang failed", "user_id", userID, "err", err)
	}
	return texts.Normalize(l)
}

func (b *UserBot) replyMenu(chatID int64, lang, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = userMenuKeyboard(lang)
	b.send(msg)
}

// menuKey кнопку меню узнаём на любом языке: язык могли сменить после отрисовки клавиатуры.
func menuKey(text string) texts.Key {
	for _, k := range []texts.Key{texts.BtnBuy, texts.BtnMySub, texts.BtnCancelSub, texts.BtnContact, texts.BtnLang} {
		for _, l := range texts.Langs {
			if text == texts.T(l, k) {
				return k
			}
		}
	}
	return ""
}

func (b *UserBot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	lang := b.lang(ctx, msg.From.ID)

	if msg.Contact != nil {
		b.onContact(ctx, msg, lang)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.start(ctx, msg)
		case "buy":
			b.showPlans(ctx, chatID, lang)
		case "status":
			b.mySubscription(ctx, chatID, msg.From.ID, lang)
		case "lang":
			b.askLang(chatID)
		case "cancel":
			_ = b.States.Reset(ctx, chatID)
			b.replyMenu(chatID, lang, texts.T(lang, texts.CancelAborted))
		default:
			b.reply(chatID, texts.T(lang, texts.UnknownCommand))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if key := menuKey(text); key != "" {
		_ = b.States.Reset(ctx, chatID)
		switch key {
		case texts.BtnBuy:
			b.showPlans(ctx, chatID, lang)
		case texts.BtnMySub:
			b.mySubscription(ctx, chatID, msg.From.ID, lang)
		case texts.BtnCancelSub:
			b.askCancel(ctx, chatID, msg.From.ID, lang)
		case texts.BtnContact:
			b.askContact(ctx, chatID, lang)
		case texts.BtnLang:
			b.askLang(chatID)
		}
		return
	}

	st, err := b.States.Get(ctx, chatID)
	if err != nil {
		b.log.Error("get state failed", "chat_id", chatID, "err", err)
		b.reply(chatID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	switch st.State {
	case dialog.StateUserContactAdmin:
		b.forwardToAdmins(ctx, msg, lang, text)
	default:
		b.replyMenu(chatID, lang, texts.T(lang, texts.MenuHint))
	}
}

// start профиль (с аватаркой), затем выбор языка или приветствие.
func (b *UserBot) start(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	profile := profileOf(msg.From)
	photo, err := b.Photos.ProfilePhoto(ctx, msg.From.ID)
	if err != nil {
		b.log.Warn("profile photo failed", "user_id", msg.From.ID, "err", err)
	}
	profile.PhotoFileID = photo

	if err := b.Accounts.UpsertProfile(ctx, profile); err != nil {
		b.log.Error("upsert profile failed", "user_id", msg.From.ID, "err", err)
		b.reply(chatID, texts.T(texts.DefaultLang, texts.ErrorGeneric))
		return
	}
	_ = b.States.Reset(ctx, chatID)

	stored, err := b.States.GetLang(ctx, msg.From.ID)
	if err != nil {
		b.log.Warn("get lang failed", "user_id", msg.From.ID, "err", err)
	}
	if stored == "" {
		b.askLang(chatID)
		return
	}
	b.welcome(ctx, chatID, texts.Normalize(stored))
}

func (b *UserBot) welcome(ctx context.Context, chatID int64, lang string) {
	text, err := b.Settings.Get(ctx, settings.KeyWelcome, settings.Defaults[settings.KeyWelcome])
	if err != nil {
		b.log.Warn("welcome text failed", "err", err)
	}
	b.replyMenu(chatID, lang, text)
}

func (b *UserBot) askLang(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, texts.T(texts.DefaultLang, texts.ChooseLang))
	msg.ReplyMarkup = langKeyboard()
	b.send(msg)
}

func (b *UserBot) showPlans(ctx context.Context, chatID int64, lang string) {
	list, err := b.Plans.List(ctx)
	if err != nil {
		b.log.Error("list plans failed", "err", err)
		b.reply(chatID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	if len(list) == 0 {
		b.reply(chatID, texts.T(lang, texts.PlansEmpty))
		return
	}
	msg := tgbotapi.NewMessage(chatID, texts.T(lang, texts.PlansHeader))
	msg.ReplyMarkup = buyKeyboard(lang, list)
	b.send(msg)
}

func (b *UserBot) mySubscription(ctx context.Context, chatID, userID int64, lang string) {
	st, err := b.Subs.Subscription(ctx, userID)
	if err != nil {
		b.log.Error("subscription status failed", "user_id", userID, "err", err)
		b.reply(chatID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	switch {
	case st.Active:
		b.reply(chatID, texts.T(lang, texts.SubActive,
			texts.FormatTime(*st.End, b.Location), texts.Remaining(lang, st.Remaining)))
	case st.Reconciled:
		b.reply(chatID, texts.T(lang, texts.SubExpiredNow))
	default:
		b.reply(chatID, texts.T(lang, texts.SubInactive))
	}
}

func (b *UserBot) askCancel(ctx context.Context, chatID, userID int64, lang string) {
	st, err := b.Subs.Subscription(ctx, userID)
	if err != nil {
		b.log.Error("subscription status failed", "user_id", userID, "err", err)
		b.reply(chatID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	if !st.Active {
		b.reply(chatID, texts.T(lang, texts.CancelNothing))
		return
	}
	msg := tgbotapi.NewMessage(chatID, texts.T(lang, texts.CancelConfirm))
	msg.ReplyMarkup = cancelConfirmKeyboard(lang)
	b.send(msg)
}

func (b *UserBot) askContact(ctx context.Context, chatID int64, lang string) {
	if err := b.States.Set(ctx, chatID, dialog.StateUserContactAdmin, nil); err != nil {
		b.log.Error("set state failed", "chat_id", chatID, "err", err)
		b.reply(chatID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	msg := tgbotapi.NewMessage(chatID, texts.T(lang, texts.ContactPrompt))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(texts.T(lang, texts.BtnCancel), "nav:cancel"),
	))
	b.send(msg)
}

func (b *UserBot) forwardToAdmins(ctx context.Context, msg *tgbotapi.Message, lang, text string) {
	chatID := msg.Chat.ID
	if text == "" {
		b.reply(chatID, texts.T(lang, texts.ContactPrompt))
		return
	}
	who := accounts.DisplayName(msg.From.ID, profileOf(msg.From).Username)
	err := b.Admins.NotifyAdmins(ctx, fmt.Sprintf("✉️ Сообщение от %s (id %d):\n%s", who, msg.From.ID, text))
	_ = b.States.Reset(ctx, chatID)
	if err != nil {
		b.log.Error("forward to admins failed", "user_id", msg.From.ID, "err", err)
		b.replyMenu(chatID, lang, texts.T(lang, texts.ErrorGeneric))
		return
	}
	b.replyMenu(chatID, lang, texts.T(lang, texts.ContactSent))
}

// onContact сохраняем только собственный номер пользователя.
func (b *UserBot) onContact(ctx context.Context, msg *tgbotapi.Message, lang string) {
	c := msg.Contact
	if c.UserID != msg.From.ID {
		b.reply(msg.Chat.ID, texts.T(lang, texts.PhoneNotOwn))
		return
	}
	profile := profileOf(msg.From)
	phone := c.PhoneNumber
	profile.Phone = &phone
	if err := b.Accounts.UpsertProfile(ctx, profile); err != nil {
		b.log.Error("save phone failed", "user_id", msg.From.ID, "err", err)
		b.reply(msg.Chat.ID, texts.T(lang, texts.ErrorGeneric))
		return
	}
	b.replyMenu(msg.Chat.ID, lang, texts.T(lang, texts.PhoneSaved))
}

func (b *UserBot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		b.answerCallback(cb, "", false)
		return
	}
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	data := cb.Data
	lang := b.lang(ctx, cb.From.ID)

	switch {
	case strings.HasPrefix(data, "lang:"):
		l := strings.TrimPrefix(data, "lang:")
		if !texts.Supported(l) {
			b.answerCallback(cb, "", false)
			return
		}
		if err := b.States.SetLang(ctx, cb.From.ID, l); err != nil {
			b.log.Error("set lang failed", "user_id", cb.From.ID, "err", err)
			b.answerCallback(cb, texts.T(lang, texts.ErrorGeneric), true)
			return
		}
		b.answerCallback(cb, "", false)
		b.editTextAndClear(chatID, msgID, texts.T(l, texts.LangSet))
		b.welcome(ctx, chatID, l)

	case strings.HasPrefix(data, "buy:"):
		planID, ok := parseID(data, "buy:")
		b.answerCallback(cb, "", false)
		if !ok {
			return
		}
		b.buy(ctx, cb, planID, lang)

	case data == "cancel:yes":
		b.answerCallback(cb, "", false)
		b.cancelSubscription(ctx, cb, lang)

	case data == "cancel:no":
		b.answerCallback(cb, "", false)
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.CancelAborted))

	case data == "nav:cancel":
		_ = b.States.Reset(ctx, chatID)
		b.answerCallback(cb, "", false)
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.CancelAborted))

	default:
		b.answerCallback(cb, "", false)
	}
}

func (b *UserBot) buy(ctx context.Context, cb *tgbotapi.CallbackQuery, planID int64, lang string) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	req, err := b.Purchases.Submit(ctx, profileOf(cb.From), planID)
	switch {
	case err == nil:
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.RequestSent, req.ID))
	case errors.Is(err, purchase.ErrAnnounceFailed) && req != nil:
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.RequestQueued, req.ID))
	case errors.Is(err, purchase.ErrPlanNotFound):
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.PlanGone))
	default:
		b.log.Error("submit purchase failed", "user_id", cb.From.ID, "plan_id", planID, "err", err)
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.ErrorGeneric))
	}
}

// cancelSubscription снимает подписку, убирает из канала и сообщает админам.
// Канал и админы best-effort: отмена в базе уже состоялась.
func (b *UserBot) cancelSubscription(ctx context.Context, cb *tgbotapi.CallbackQuery, lang string) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	userID := cb.From.ID
	log := b.log.With("user_id", userID)

	if err := b.Subs.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			b.editTextAndClear(chatID, msgID, texts.T(lang, texts.CancelNothing))
			return
		}
		log.Error("deactivate failed", "err", err)
		b.editTextAndClear(chatID, msgID, texts.T(lang, texts.ErrorGeneric))
		return
	}

	if err := b.Access.Revoke(ctx, userID); err != nil {
		log.Warn("revoke after cancel failed", "err", err)
	} else if err := b.Accounts.MarkRemovedFromChannel(ctx, userID); err != nil {
		log.Warn("mark removed failed", "err", err)
	}

	who := accounts.DisplayName(userID, profileOf(cb.From).Username)
	if err := b.Admins.NotifyAdmins(ctx, fmt.Sprintf("🚫 %s (id %d) отменил подписку", who, userID)); err != nil {
		log.Warn("notify admins about cancel failed", "err", err)
	}
	b.editTextAndClear(chatID, msgID, texts.T(lang, texts.CancelDone))
}
