package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
	"github.com/Spok95/subaccess-bot/internal/texts"
)

func cancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Отменить", "nav:cancel"))
}

// cancelKeyboard кнопка выхода из пошагового ввода.
func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(cancelRow())
}

/*** пользовательский бот ***/

func userMenuKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(texts.T(lang, texts.BtnBuy)), tgbotapi.NewKeyboardButton(texts.T(lang, texts.BtnMySub))},
			{tgbotapi.NewKeyboardButton(texts.T(lang, texts.BtnContact)), tgbotapi.NewKeyboardButton(texts.T(lang, texts.BtnCancelSub))},
			{tgbotapi.NewKeyboardButtonContact(texts.T(lang, texts.BtnPhone)), tgbotapi.NewKeyboardButton(texts.T(lang, texts.BtnLang))},
		},
	}
}

func langKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺 Русский", "lang:"+texts.LangRU),
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 English", "lang:"+texts.LangEN),
		),
	)
}

func planLabel(lang string, p plans.Plan) string {
	return texts.T(lang, texts.PlanLine, p.Name, p.DurationValue, unitTitle(lang, p.DurationUnit), p.Price)
}

func unitTitle(lang string, u plans.Unit) string {
	switch u {
	case plans.UnitSeconds:
		return texts.T(lang, texts.UnitSeconds)
	case plans.UnitMinutes:
		return texts.T(lang, texts.UnitMinutes)
	case plans.UnitMonths:
		return texts.T(lang, texts.UnitMonths)
	default:
		return texts.T(lang, texts.UnitDays)
	}
}

func buyKeyboard(lang string, list []plans.Plan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list)+1)
	for _, p := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(planLabel(lang, p), fmt.Sprintf("buy:%d", p.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(texts.T(lang, texts.BtnCancel), "nav:cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cancelConfirmKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.T(lang, texts.BtnYes), "cancel:yes"),
			tgbotapi.NewInlineKeyboardButtonData(texts.T(lang, texts.BtnNo), "cancel:no"),
		),
	)
}

/*** админ-бот ***/

// adminMenuKeys кнопки нижней панели админа в порядке раскладки.
var adminMenuKeys = []texts.Key{
	texts.AdmBtnRequests,
	texts.AdmBtnPlans, texts.AdmBtnUsers,
	texts.AdmBtnBroadcast, texts.AdmBtnExport,
	texts.AdmBtnDiag, texts.AdmBtnWelcome,
	texts.AdmBtnLang,
}

// adminReplyKeyboard Нижняя панель (ReplyKeyboard) для админа
func adminReplyKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	btn := func(k texts.Key) tgbotapi.KeyboardButton { return tgbotapi.NewKeyboardButton(texts.T(lang, k)) }
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{btn(texts.AdmBtnRequests)},
			{btn(texts.AdmBtnPlans), btn(texts.AdmBtnUsers)},
			{btn(texts.AdmBtnBroadcast), btn(texts.AdmBtnExport)},
			{btn(texts.AdmBtnDiag), btn(texts.AdmBtnWelcome)},
			{btn(texts.AdmBtnLang)},
		},
	}
}

// adminMenuKey кнопка панели по тексту на любом языке; "" если это не кнопка.
func adminMenuKey(text string) texts.Key {
	for _, k := range adminMenuKeys {
		for _, l := range texts.Langs {
			if text == texts.T(l, k) {
				return k
			}
		}
	}
	return ""
}

func decisionKeyboard(requestID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", fmt.Sprintf("approve:%d", requestID)),
			tgbotapi.NewInlineKeyboardButtonData("⛔ Отклонить", fmt.Sprintf("reject:%d", requestID)),
		),
	)
}

func retryKeyboard(requestID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Повторить", fmt.Sprintf("approve:%d", requestID)),
			tgbotapi.NewInlineKeyboardButtonData("⛔ Отклонить", fmt.Sprintf("reject:%d", requestID)),
		),
	)
}

func unitKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(plans.Units))
	for _, u := range plans.Units {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(u.Title(), "plan:unit:"+string(u)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, cancelRow())
}

func planItemKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Название", fmt.Sprintf("plan:rename:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("💰 Цена", fmt.Sprintf("plan:price:%d", id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏱ Длительность", fmt.Sprintf("plan:dur:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", fmt.Sprintf("plan:del:%d", id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "plan:list"),
		),
	)
}

func userCardKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✉️ Написать", fmt.Sprintf("user:dm:%d", userID)),
			tgbotapi.NewInlineKeyboardButtonData("🚪 Удалить из канала", fmt.Sprintf("user:kick:%d", userID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить из базы", fmt.Sprintf("user:del:%d", userID)),
		),
	)
}

func plansKeyboard(list []plans.Plan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list)+1)
	for _, p := range list {
		label := fmt.Sprintf("%s · %d %s · %.2f ₽", p.Name, p.DurationValue, p.DurationUnit.Title(), p.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("plan:item:%d", p.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Добавить тариф", "plan:add"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard(yesData, noData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да", yesData),
			tgbotapi.NewInlineKeyboardButtonData("❌ Нет", noData),
		),
	)
}

// usersPageKeyboard строка на пользователя, навигация и поиск.
func usersPageKeyboard(list []accounts.Account, page int, hasNext bool, now time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list)+2)
	for _, a := range list {
		active := a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s", badge(active), a.DisplayName()),
				fmt.Sprintf("user:card:%d", a.UserID),
			),
		))
	}
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("users:page:%d", page-1)))
	}
	if hasNext {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("users:page:%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔍 Поиск", "user:search"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
