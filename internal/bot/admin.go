package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/domain/purchases"
	"github.com/Spok95/subaccess-bot/internal/infra/telegram"
	"github.com/Spok95/subaccess-bot/internal/purchase"
	"github.com/Spok95/subaccess-bot/internal/texts"
)

const pendingLimit = 20

type AdminAccounts interface {
	Get(ctx context.Context, userID int64) (*accounts.Account, error)
	List(ctx context.Context, offset, limit int) ([]accounts.Account, error)
	ListAll(ctx context.Context) ([]accounts.Account, error)
	Search(ctx context.Context, query string, limit int) ([]accounts.Account, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context, now time.Time) (accounts.Stats, error)
	Delete(ctx context.Context, userID int64) error
	MarkRemovedFromChannel(ctx context.Context, userID int64) error
}

type PlanStore interface {
	Create(ctx context.Context, p plans.Plan) (int64, error)
	Get(ctx context.Context, id int64) (*plans.Plan, error)
	List(ctx context.Context) ([]plans.Plan, error)
	Rename(ctx context.Context, id int64, name string) error
	SetPrice(ctx context.Context, id int64, price float64) error
	SetDuration(ctx context.Context, id int64, value int, unit plans.Unit) error
	Delete(ctx context.Context, id int64) error
}

type Decisions interface {
	Approve(ctx context.Context, requestID int64) (*purchase.Approval, error)
	Reject(ctx context.Context, requestID int64) (*purchases.Request, error)
}

type PendingRequests interface {
	List(ctx context.Context, limit int) ([]purchases.Request, error)
}

type AdminLifecycle interface {
	Now() time.Time
	Deactivate(ctx context.Context, userID int64) error
}

// Messenger сообщения пользователям от пользовательского бота.
type Messenger interface {
	SendText(ctx context.Context, userID int64, text string, silent bool) error
}

type Diagnoser interface {
	Diagnose(ctx context.Context) (telegram.Diagnostics, error)
}

type SettingsStore interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type AdminDeps struct {
	Accounts  AdminAccounts
	Plans     PlanStore
	Decisions Decisions
	Pending   PendingRequests
	Subs      AdminLifecycle
	Access    channel.Access
	Messenger Messenger
	Diag      Diagnoser
	States    States
	Settings  SettingsStore
	AdminIDs  []int64
	Location  *time.Location
	// Silent рассылка и личные сообщения без звука
	Silent  bool
	Limiter *rate.Limiter
}

// AdminBot заявки, тарифы, пользователи и сервисные функции. Только для админов из конфига.
type AdminBot struct {
	base
	AdminDeps

	// фоновые рассылки
	wg sync.WaitGroup
}

func NewAdminBot(api *tgbotapi.BotAPI, log *slog.Logger, deps AdminDeps) *AdminBot {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Limiter == nil {
		deps.Limiter = rate.NewLimiter(rate.Limit(20), 1)
	}
	return &AdminBot{
		base:      base{name: "admin", api: api, log: log.With("bot", "admin")},
		AdminDeps: deps,
	}
}

func (b *AdminBot) Run(ctx context.Context, timeoutSec int) error {
	return b.run(ctx, timeoutSec, b.handle)
}

// Wait ждёт завершения запущенных рассылок.
func (b *AdminBot) Wait() {
	b.wg.Wait()
}

func (b *AdminBot) isAdmin(id int64) bool {
	return slices.Contains(b.AdminIDs, id)
}

func (b *AdminBot) handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		if upd.Message.From == nil {
			return
		}
		if !b.isAdmin(upd.Message.From.ID) {
			b.log.Warn("non-admin message", "user_id", upd.Message.From.ID)
			b.reply(upd.Message.Chat.ID, texts.T(texts.DefaultLang, texts.AdmNoAccess))
			return
		}
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		cb := upd.CallbackQuery
		if cb.From == nil || !b.isAdmin(cb.From.ID) {
			b.answerCallback(cb, "Нет доступа", true)
			return
		}
		if cb.Message == nil {
			b.answerCallback(cb, "", false)
			return
		}
		b.onCallback(ctx, cb)
	}
}

// lang язык админа; ошибка хранилища не мешает работе, берём язык по умолчанию.
func (b *AdminBot) lang(ctx context.Context, userID int64) string {
	l, err := b.States.GetLang(ctx, userID)
	if err != nil {
		b.log.Warn("get admin lang failed", "user_id", userID, "err", err)
	}
	return texts.Normalize(l)
}

func (b *AdminBot) menu(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = adminReplyKeyboard(b.lang(ctx, chatID))
	b.send(msg)
}

func (b *AdminBot) onLang(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	code := strings.TrimPrefix(cb.Data, "lang:")
	if !texts.Supported(code) {
		b.answerCallback(cb, "Unsupported language", true)
		return
	}
	if err := b.States.SetLang(ctx, cb.From.ID, code); err != nil {
		b.log.Error("set admin lang failed", "user_id", cb.From.ID, "err", err)
		b.answerCallback(cb, "Не удалось сохранить язык", true)
		return
	}
	b.answerCallback(cb, "", false)
	b.editTextAndClear(cb.Message.Chat.ID, cb.Message.MessageID, texts.T(code, texts.LangSet))
	b.menu(ctx, cb.Message.Chat.ID, texts.T(code, texts.AdmPanel))
}

func (b *AdminBot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	lang := b.lang(ctx, chatID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			_ = b.States.Reset(ctx, chatID)
			b.menu(ctx, chatID, texts.T(lang, texts.AdmPanel))
		case "cancel":
			_ = b.States.Reset(ctx, chatID)
			b.menu(ctx, chatID, texts.T(lang, texts.AdmCancelled))
		case "lang":
			b.askLang(ctx, chatID, lang)
		case "pending":
			b.showPending(ctx, chatID)
		case "stats":
			b.showDiagnostics(ctx, chatID)
		default:
			b.reply(chatID, texts.T(lang, texts.AdmUnknownCommand))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch adminMenuKey(text) {
	case texts.AdmBtnRequests:
		_ = b.States.Reset(ctx, chatID)
		b.showPending(ctx, chatID)
		return
	case texts.AdmBtnPlans:
		_ = b.States.Reset(ctx, chatID)
		b.showPlans(ctx, chatID, 0)
		return
	case texts.AdmBtnUsers:
		_ = b.States.Reset(ctx, chatID)
		b.showUsers(ctx, chatID, 0, 0)
		return
	case texts.AdmBtnBroadcast:
		b.askBroadcast(ctx, chatID)
		return
	case texts.AdmBtnExport:
		_ = b.States.Reset(ctx, chatID)
		b.exportUsers(ctx, chatID)
		return
	case texts.AdmBtnDiag:
		_ = b.States.Reset(ctx, chatID)
		b.showDiagnostics(ctx, chatID)
		return
	case texts.AdmBtnWelcome:
		b.askWelcome(ctx, chatID)
		return
	case texts.AdmBtnLang:
		b.askLang(ctx, chatID, lang)
		return
	}

	st, err := b.States.Get(ctx, chatID)
	if err != nil {
		b.log.Error("get state failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Ошибка состояния, попробуйте /start")
		return
	}
	switch st.State {
	case dialog.StateAdmPlanName, dialog.StateAdmPlanValue, dialog.StateAdmPlanUnit, dialog.StateAdmPlanPrice,
		dialog.StateAdmPlanRename, dialog.StateAdmPlanReprice, dialog.StateAdmPlanDuration:
		b.onPlanInput(ctx, chatID, st, text)
	case dialog.StateAdmUserSearch:
		b.onUserSearch(ctx, chatID, text)
	case dialog.StateAdmUserDM:
		b.onDirectMessage(ctx, chatID, st, text)
	case dialog.StateAdmBroadcast:
		b.onBroadcast(ctx, chatID, text)
	case dialog.StateAdmWelcome:
		b.onWelcome(ctx, chatID, text)
	default:
		b.menu(ctx, chatID, texts.T(lang, texts.AdmPickSection))
	}
}

func (b *AdminBot) askLang(ctx context.Context, chatID int64, lang string) {
	_ = b.States.Reset(ctx, chatID)
	msg := tgbotapi.NewMessage(chatID, texts.T(lang, texts.ChooseLang))
	msg.ReplyMarkup = langKeyboard()
	b.send(msg)
}

func (b *AdminBot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch {
	case strings.HasPrefix(data, "approve:"):
		id, ok := parseID(data, "approve:")
		if !ok {
			b.answerCallback(cb, "Некорректная заявка", true)
			return
		}
		b.answerCallback(cb, "Обрабатываю…", false)
		b.approve(ctx, cb, id)

	case strings.HasPrefix(data, "reject:"):
		id, ok := parseID(data, "reject:")
		if !ok {
			b.answerCallback(cb, "Некорректная заявка", true)
			return
		}
		b.answerCallback(cb, "", false)
		b.reject(ctx, cb, id)

	case strings.HasPrefix(data, "plan:"):
		b.answerCallback(cb, "", false)
		b.onPlanCallback(ctx, cb)

	case strings.HasPrefix(data, "users:page:"):
		b.answerCallback(cb, "", false)
		page, err := parsePage(strings.TrimPrefix(data, "users:page:"))
		if err != nil {
			return
		}
		b.showUsers(ctx, chatID, msgID, page)

	case strings.HasPrefix(data, "user:"):
		b.answerCallback(cb, "", false)
		b.onUserCallback(ctx, cb)

	case strings.HasPrefix(data, "lang:"):
		b.onLang(ctx, cb)

	case data == "nav:cancel":
		_ = b.States.Reset(ctx, chatID)
		b.answerCallback(cb, "Отменено", false)
		b.editTextAndClear(chatID, msgID, "Действие отменено.")

	default:
		b.answerCallback(cb, "", false)
	}
}

/*** ЗАЯВКИ ***/

func (b *AdminBot) showPending(ctx context.Context, chatID int64) {
	list, err := b.Pending.List(ctx, pendingLimit)
	if err != nil {
		b.log.Error("list pending failed", "err", err)
		b.reply(chatID, "Не удалось загрузить заявки.")
		return
	}
	if len(list) == 0 {
		b.reply(chatID, "Заявок нет.")
		return
	}
	for _, req := range list {
		planName := fmt.Sprintf("тариф #%d", req.PlanID)
		if p, err := b.Plans.Get(ctx, req.PlanID); err == nil && p != nil {
			planName = p.Name
		}
		text := fmt.Sprintf("🧾 Заявка №%d от %s\n%s (id %d)\nТелефон: %s\nТариф: %s",
			req.ID, texts.FormatTime(req.CreatedAt, b.Location), req.Username, req.UserID, deref(req.Phone, "—"), planName)
		kb := decisionKeyboard(req.ID)
		if req.ActivatedUntil != nil {
			text += fmt.Sprintf("\n⚠️ Подписка уже активирована до %s, ссылка не доставлена", texts.FormatTime(*req.ActivatedUntil, b.Location))
			kb = retryKeyboard(req.ID)
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = kb
		b.send(msg)
	}
}

func (b *AdminBot) approve(ctx context.Context, cb *tgbotapi.CallbackQuery, id int64) {
	res, err := b.Decisions.Approve(ctx, id)

	var (
		text  string
		retry bool
	)
	switch {
	case err == nil:
		text = fmt.Sprintf("✅ Заявка №%d одобрена: %s, доступ до %s. Ссылка отправлена.",
			id, res.Request.Username, texts.FormatTime(res.Until, b.Location))
	case errors.Is(err, purchase.ErrRequestNotFound):
		text = fmt.Sprintf("Заявка №%d уже обработана или не найдена.", id)
	case errors.Is(err, purchase.ErrPlanNotFound):
		text = fmt.Sprintf("Тариф заявки №%d удалён, заявка снята.", id)
	case errors.Is(err, purchase.ErrAccountNotFound):
		text = fmt.Sprintf("Пользователь из заявки №%d не найден, заявка снята.", id)
	case errors.Is(err, purchase.ErrActivation):
		text = fmt.Sprintf("⚠️ Не удалось активировать подписку по заявке №%d. Заявка сохранена.", id)
		retry = true
	case errors.Is(err, purchase.ErrInviteFailed):
		text = fmt.Sprintf("⚠️ Подписка %s активна до %s, но ссылку создать не удалось. Проверьте права бота в канале и повторите.",
			res.Request.Username, texts.FormatTime(res.Until, b.Location))
		retry = true
	case errors.Is(err, purchase.ErrDeliveryFailed):
		text = fmt.Sprintf("⚠️ Подписка %s активна до %s, ссылка создана, но пользователь её не получил (бот заблокирован?).\nСсылка: %s",
			res.Request.Username, texts.FormatTime(res.Until, b.Location), res.InviteLink)
		retry = true
	default:
		b.log.Error("approve failed", "request_id", id, "err", err)
		text = fmt.Sprintf("Ошибка при обработке заявки №%d, заявка сохранена.", id)
		retry = true
	}

	kb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if retry {
		kb = retryKeyboard(id)
	}
	b.updateDecision(cb, text, kb)
}

func (b *AdminBot) reject(ctx context.Context, cb *tgbotapi.CallbackQuery, id int64) {
	req, err := b.Decisions.Reject(ctx, id)
	done := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	switch {
	case err == nil:
		b.updateDecision(cb, fmt.Sprintf("⛔ Заявка №%d (%s) отклонена.", id, req.Username), done)
	case errors.Is(err, purchase.ErrRequestNotFound):
		b.updateDecision(cb, fmt.Sprintf("Заявка №%d уже обработана или не найдена.", id), done)
	case errors.Is(err, purchase.ErrNoticeFailed):
		b.updateDecision(cb, fmt.Sprintf("⛔ Заявка №%d (%s) отклонена, но уведомление не доставлено.", id, req.Username), done)
	default:
		b.log.Error("reject failed", "request_id", id, "err", err)
		b.updateDecision(cb, fmt.Sprintf("Ошибка при отклонении заявки №%d.", id), decisionKeyboard(id))
	}
}

// updateDecision у заявки с аватаркой меняется подпись, у текстовой текст.
func (b *AdminBot) updateDecision(cb *tgbotapi.CallbackQuery, text string, kb tgbotapi.InlineKeyboardMarkup) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	if len(cb.Message.Photo) > 0 {
		edit := tgbotapi.NewEditMessageCaption(chatID, msgID, text)
		edit.ReplyMarkup = &kb
		b.send(edit)
		return
	}
	b.editText(chatID, msgID, text, kb)
}
