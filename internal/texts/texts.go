// Package texts строки на ru и en: пользовательский бот целиком,
// в админ-боте панель, меню и выбор языка.
package texts

import "fmt"

const (
	LangRU = "ru"
	LangEN = "en"

	DefaultLang = LangRU
)

var Langs = []string{LangRU, LangEN}

type Key string

const (
	ChooseLang   Key = "choose_lang"
	LangSet      Key = "lang_set"
	MenuHint     Key = "menu_hint"
	BtnBuy       Key = "btn_buy"
	BtnMySub     Key = "btn_my_sub"
	BtnCancelSub Key = "btn_cancel_sub"
	BtnContact   Key = "btn_contact"
	BtnLang      Key = "btn_lang"
	BtnPhone     Key = "btn_phone"
	BtnJoin      Key = "btn_join"
	BtnYes       Key = "btn_yes"
	BtnNo        Key = "btn_no"
	BtnCancel    Key = "btn_cancel"

	PlansHeader    Key = "plans_header"
	PlansEmpty     Key = "plans_empty"
	PlanLine       Key = "plan_line"
	RequestSent    Key = "request_sent"
	RequestQueued  Key = "request_queued"
	PlanGone       Key = "plan_gone"
	ErrorGeneric   Key = "error_generic"
	SubActive      Key = "sub_active"
	SubInactive    Key = "sub_inactive"
	SubExpiredNow  Key = "sub_expired_now"
	CancelConfirm  Key = "cancel_confirm"
	CancelDone     Key = "cancel_done"
	CancelNothing  Key = "cancel_nothing"
	CancelAborted  Key = "cancel_aborted"
	ContactPrompt  Key = "contact_prompt"
	ContactSent    Key = "contact_sent"
	PhonePrompt    Key = "phone_prompt"
	PhoneSaved     Key = "phone_saved"
	PhoneNotOwn    Key = "phone_not_own"
	UnknownCommand Key = "unknown_command"

	NoticeInvite    Key = "notice_invite"
	NoticeRejected  Key = "notice_rejected"
	NoticeExpired   Key = "notice_expired"
	NoticeCancelled Key = "notice_cancelled"

	AdmPanel          Key = "adm_panel"
	AdmCancelled      Key = "adm_cancelled"
	AdmPickSection    Key = "adm_pick_section"
	AdmUnknownCommand Key = "adm_unknown_command"
	AdmNoAccess       Key = "adm_no_access"
	AdmBtnRequests    Key = "adm_btn_requests"
	AdmBtnPlans       Key = "adm_btn_plans"
	AdmBtnUsers       Key = "adm_btn_users"
	AdmBtnBroadcast   Key = "adm_btn_broadcast"
	AdmBtnExport      Key = "adm_btn_export"
	AdmBtnDiag        Key = "adm_btn_diag"
	AdmBtnWelcome     Key = "adm_btn_welcome"
	AdmBtnLang        Key = "adm_btn_lang"

	UnitSeconds Key = "unit_seconds"
	UnitMinutes Key = "unit_minutes"
	UnitDays    Key = "unit_days"
	UnitMonths  Key = "unit_months"
)

var catalog = map[string]map[Key]string{
	LangRU: {
		ChooseLang:   "Выберите язык / Choose language",
		LangSet:      "Язык: русский",
		MenuHint:     "Выберите действие в меню ниже.",
		BtnBuy:       "💳 Купить / продлить",
		BtnMySub:     "📅 Моя подписка",
		BtnCancelSub: "🚫 Отменить подписку",
		BtnContact:   "✉️ Написать админу",
		BtnLang:      "🌐 Язык",
		BtnPhone:     "📱 Отправить номер",
		BtnJoin:      "Войти в канал",
		BtnYes:       "Да",
		BtnNo:        "Нет",
		BtnCancel:    "✖️ Отменить",

		PlansHeader:    "Выберите тариф:",
		PlansEmpty:     "Сейчас нет доступных тарифов.",
		PlanLine:       "%s · %d %s · %.2f ₽",
		RequestSent:    "Заявка №%d отправлена администратору. Ожидайте подтверждения.",
		RequestQueued:  "Заявка №%d сохранена, администратор увидит её позже.",
		PlanGone:       "Этот тариф больше недоступен.",
		ErrorGeneric:   "Что-то пошло не так, попробуйте позже.",
		SubActive:      "Подписка активна до %s (осталось %s).",
		SubInactive:    "Активной подписки нет.",
		SubExpiredNow:  "Срок подписки истёк.",
		CancelConfirm:  "Отменить подписку? Доступ к каналу будет закрыт сразу.",
		CancelDone:     "Подписка отменена.",
		CancelNothing:  "Отменять нечего: активной подписки нет.",
		CancelAborted:  "Хорошо, ничего не меняем.",
		ContactPrompt:  "Напишите сообщение, я передам его администратору.",
		ContactSent:    "Сообщение отправлено администратору.",
		PhonePrompt:    "Поделитесь номером телефона кнопкой ниже (необязательно).",
		PhoneSaved:     "Номер сохранён.",
		PhoneNotOwn:    "Отправьте, пожалуйста, свой контакт.",
		UnknownCommand: "Не знаю такую команду. Наберите /start",

		NoticeInvite:    "✅ Оплата подтверждена: %s.\nДоступ до %s.\nСсылка одноразовая:",
		NoticeRejected:  "❌ Заявка отклонена администратором.",
		NoticeExpired:   "⌛ Срок подписки истёк, доступ к каналу закрыт. Продлить можно через меню.",
		NoticeCancelled: "Подписка отменена, доступ к каналу закрыт.",

		AdmPanel:          "Админ-панель. Выберите раздел.",
		AdmCancelled:      "Отменено.",
		AdmPickSection:    "Выберите раздел в меню.",
		AdmUnknownCommand: "Неизвестная команда. Меню: /start",
		AdmNoAccess:       "Доступ только для администраторов.",
		AdmBtnRequests:    "Заявки",
		AdmBtnPlans:       "Тарифы",
		AdmBtnUsers:       "Пользователи",
		AdmBtnBroadcast:   "Оповещение всем",
		AdmBtnExport:      "Выгрузка в Excel",
		AdmBtnDiag:        "Диагностика",
		AdmBtnWelcome:     "Приветствие",
		AdmBtnLang:        "🌐 Язык",

		UnitSeconds: "сек.",
		UnitMinutes: "мин.",
		UnitDays:    "дн.",
		UnitMonths:  "мес.",
	},
	LangEN: {
		ChooseLang:   "Выберите язык / Choose language",
		LangSet:      "Language: English",
		MenuHint:     "Choose an action from the menu below.",
		BtnBuy:       "💳 Buy / renew",
		BtnMySub:     "📅 My subscription",
		BtnCancelSub: "🚫 Cancel subscription",
		BtnContact:   "✉️ Contact admin",
		BtnLang:      "🌐 Language",
		BtnPhone:     "📱 Share phone",
		BtnJoin:      "Join channel",
		BtnYes:       "Yes",
		BtnNo:        "No",
		BtnCancel:    "✖️ Cancel",

		PlansHeader:    "Choose a plan:",
		PlansEmpty:     "No plans available right now.",
		PlanLine:       "%s · %d %s · %.2f ₽",
		RequestSent:    "Request #%d sent to the admin. Please wait for confirmation.",
		RequestQueued:  "Request #%d saved, the admin will see it later.",
		PlanGone:       "This plan is no longer available.",
		ErrorGeneric:   "Something went wrong, please try again later.",
		SubActive:      "Subscription active until %s (%s left).",
		SubInactive:    "You have no active subscription.",
		SubExpiredNow:  "Your subscription has expired.",
		CancelConfirm:  "Cancel the subscription? Channel access will be closed immediately.",
		CancelDone:     "Subscription cancelled.",
		CancelNothing:  "Nothing to cancel: no active subscription.",
		CancelAborted:  "OK, nothing changed.",
		ContactPrompt:  "Write your message and I will forward it to the admin.",
		ContactSent:    "Message sent to the admin.",
		PhonePrompt:    "Share your phone number with the button below (optional).",
		PhoneSaved:     "Phone number saved.",
		PhoneNotOwn:    "Please send your own contact.",
		UnknownCommand: "Unknown command. Type /start",

		NoticeInvite:    "✅ Payment confirmed: %s.\nAccess until %s.\nSingle-use link:",
		NoticeRejected:  "❌ Your request was rejected by the admin.",
		NoticeExpired:   "⌛ Your subscription has expired and channel access was removed. You can renew from the menu.",
		NoticeCancelled: "Subscription cancelled, channel access removed.",

		AdmPanel:          "Admin panel. Choose a section.",
		AdmCancelled:      "Cancelled.",
		AdmPickSection:    "Choose a section from the menu.",
		AdmUnknownCommand: "Unknown command. Menu: /start",
		AdmNoAccess:       "Admins only.",
		AdmBtnRequests:    "Requests",
		AdmBtnPlans:       "Plans",
		AdmBtnUsers:       "Users",
		AdmBtnBroadcast:   "Broadcast",
		AdmBtnExport:      "Export to Excel",
		AdmBtnDiag:        "Diagnostics",
		AdmBtnWelcome:     "Welcome text",
		AdmBtnLang:        "🌐 Language",

		UnitSeconds: "sec",
		UnitMinutes: "min",
		UnitDays:    "days",
		UnitMonths:  "months",
	},
}

// Normalize неизвестный или пустой язык -> DefaultLang.
func Normalize(lang string) string {
	if _, ok := catalog[lang]; ok {
		return lang
	}
	return DefaultLang
}

func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// T строка по ключу; с аргументами через fmt.Sprintf.
func T(lang string, key Key, args ...any) string {
	s, ok := catalog[Normalize(lang)][key]
	if !ok {
		s, ok = catalog[DefaultLang][key]
		if !ok {
			return string(key)
		}
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}
