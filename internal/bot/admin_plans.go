package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/plans"
)

/*** ТАРИФЫ ***/

var planFieldTitles = map[string]string{
	"Name":          "название",
	"DurationValue": "длительность",
	"DurationUnit":  "единица",
	"Price":         "цена",
}

// validationMessage человекочитаемый текст ошибки валидатора.
func validationMessage(err error) (string, bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "", false
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := planFieldTitles[fe.Field()]
		if field == "" {
			field = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+": обязательно")
		case "gt":
			parts = append(parts, field+": должно быть больше 0")
		case "max":
			parts = append(parts, field+": слишком длинное")
		default:
			parts = append(parts, field+": некорректно")
		}
	}
	return "Проверьте данные: " + strings.Join(parts, "; "), true
}

func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// parseDuration "30", "30 days", "1 month".
func parseDuration(s string) (int, plans.Unit, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", fmt.Errorf("bad duration %q", s)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", err
	}
	unit := plans.UnitDays
	if len(fields) == 2 {
		unit = plans.NormalizeUnit(fields[1])
	}
	return v, unit, nil
}

func planCard(p plans.Plan) string {
	return fmt.Sprintf("Тариф #%d\nНазвание: %s\nДлительность: %d %s\nЦена: %.2f ₽\n\nИзменения не затрагивают уже оформленные подписки.",
		p.ID, p.Name, p.DurationValue, p.DurationUnit.Title(), p.Price)
}

// showPlans список тарифов; при msgID != 0 редактирует сообщение.
func (b *AdminBot) showPlans(ctx context.Context, chatID int64, msgID int) {
	list, err := b.Plans.List(ctx)
	if err != nil {
		b.log.Error("list plans failed", "err", err)
		b.reply(chatID, "Не удалось загрузить тарифы.")
		return
	}
	text := "Тарифы:"
	if len(list) == 0 {
		text = "Тарифов пока нет."
	}
	kb := plansKeyboard(list)
	if msgID != 0 {
		b.editText(chatID, msgID, text, kb)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	b.send(msg)
}

func (b *AdminBot) showPlan(ctx context.Context, chatID int64, msgID int, id int64) {
	p, err := b.Plans.Get(ctx, id)
	if err != nil {
		b.log.Error("get plan failed", "plan_id", id, "err", err)
		b.reply(chatID, "Не удалось загрузить тариф.")
		return
	}
	if p == nil {
		b.reply(chatID, "Тариф не найден.")
		return
	}
	if msgID != 0 {
		b.editText(chatID, msgID, planCard(*p), planItemKeyboard(p.ID))
		return
	}
	msg := tgbotapi.NewMessage(chatID, planCard(*p))
	msg.ReplyMarkup = planItemKeyboard(p.ID)
	b.send(msg)
}

func (b *AdminBot) ask(ctx context.Context, chatID int64, msgID int, state dialog.State, payload dialog.Payload, prompt string) {
	if err := b.States.Set(ctx, chatID, state, payload); err != nil {
		b.log.Error("set state failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Ошибка состояния, попробуйте /start")
		return
	}
	if msgID != 0 {
		b.editText(chatID, msgID, prompt, cancelKeyboard())
		return
	}
	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = cancelKeyboard()
	b.send(msg)
}

func (b *AdminBot) onPlanCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch {
	case data == "plan:list":
		_ = b.States.Reset(ctx, chatID)
		b.showPlans(ctx, chatID, msgID)

	case data == "plan:add":
		b.ask(ctx, chatID, msgID, dialog.StateAdmPlanName, nil, "Название тарифа:")

	case strings.HasPrefix(data, "plan:item:"):
		if id, ok := parseID(data, "plan:item:"); ok {
			b.showPlan(ctx, chatID, msgID, id)
		}

	case strings.HasPrefix(data, "plan:rename:"):
		if id, ok := parseID(data, "plan:rename:"); ok {
			b.ask(ctx, chatID, msgID, dialog.StateAdmPlanRename, dialog.Payload{"plan_id": id}, "Новое название тарифа:")
		}

	case strings.HasPrefix(data, "plan:price:"):
		if id, ok := parseID(data, "plan:price:"); ok {
			b.ask(ctx, chatID, msgID, dialog.StateAdmPlanReprice, dialog.Payload{"plan_id": id}, "Новая цена, ₽:")
		}

	case strings.HasPrefix(data, "plan:dur:"):
		if id, ok := parseID(data, "plan:dur:"); ok {
			b.ask(ctx, chatID, msgID, dialog.StateAdmPlanDuration, dialog.Payload{"plan_id": id},
				"Новая длительность, например: 30 days, 1 month, 90 minutes")
		}

	case strings.HasPrefix(data, "plan:delok:"):
		id, ok := parseID(data, "plan:delok:")
		if !ok {
			return
		}
		if err := b.Plans.Delete(ctx, id); err != nil && !errors.Is(err, plans.ErrNotFound) {
			b.log.Error("delete plan failed", "plan_id", id, "err", err)
			b.reply(chatID, "Не удалось удалить тариф.")
			return
		}
		b.log.Info("plan deleted", "plan_id", id)
		b.showPlans(ctx, chatID, msgID)

	case strings.HasPrefix(data, "plan:del:"):
		if id, ok := parseID(data, "plan:del:"); ok {
			b.editText(chatID, msgID, fmt.Sprintf("Удалить тариф #%d? Заявки по нему будут сняты при рассмотрении.", id),
				confirmKeyboard(fmt.Sprintf("plan:delok:%d", id), fmt.Sprintf("plan:item:%d", id)))
		}

	case strings.HasPrefix(data, "plan:unit:"):
		st, err := b.States.Get(ctx, chatID)
		if err != nil || st.State != dialog.StateAdmPlanUnit {
			return
		}
		st.Payload["unit"] = string(plans.NormalizeUnit(strings.TrimPrefix(data, "plan:unit:")))
		b.ask(ctx, chatID, msgID, dialog.StateAdmPlanPrice, st.Payload, "Цена, ₽:")
	}
}

func (b *AdminBot) onPlanInput(ctx context.Context, chatID int64, st *dialog.Item, text string) {
	switch st.State {
	case dialog.StateAdmPlanName:
		if text == "" {
			b.reply(chatID, "Название не может быть пустым.")
			return
		}
		b.ask(ctx, chatID, 0, dialog.StateAdmPlanValue, dialog.Payload{"name": text}, "Длительность (целое число):")

	case dialog.StateAdmPlanValue:
		v, err := strconv.Atoi(text)
		if err != nil || v <= 0 {
			b.reply(chatID, "Нужно целое число больше 0.")
			return
		}
		st.Payload["value"] = v
		if err := b.States.Set(ctx, chatID, dialog.StateAdmPlanUnit, st.Payload); err != nil {
			b.log.Error("set state failed", "chat_id", chatID, "err", err)
			return
		}
		msg := tgbotapi.NewMessage(chatID, "Единица измерения:")
		msg.ReplyMarkup = unitKeyboard()
		b.send(msg)

	case dialog.StateAdmPlanUnit:
		st.Payload["unit"] = string(plans.NormalizeUnit(text))
		b.ask(ctx, chatID, 0, dialog.StateAdmPlanPrice, st.Payload, "Цена, ₽:")

	case dialog.StateAdmPlanPrice:
		price, err := parsePrice(text)
		if err != nil {
			b.reply(chatID, "Цена должна быть числом, например 499 или 499.90")
			return
		}
		name, _ := dialog.GetString(st.Payload, "name")
		value, _ := dialog.GetInt64(st.Payload, "value")
		unit, _ := dialog.GetString(st.Payload, "unit")
		p := plans.Plan{Name: name, DurationValue: int(value), DurationUnit: plans.Unit(unit), Price: price}

		id, err := b.Plans.Create(ctx, p)
		if err != nil {
			b.planError(chatID, err)
			return
		}
		_ = b.States.Reset(ctx, chatID)
		b.log.Info("plan created", "plan_id", id)
		b.reply(chatID, fmt.Sprintf("Тариф «%s» создан.", name))
		b.showPlans(ctx, chatID, 0)

	case dialog.StateAdmPlanRename:
		id, _ := dialog.GetInt64(st.Payload, "plan_id")
		b.savePlan(ctx, chatID, id, b.Plans.Rename(ctx, id, text))

	case dialog.StateAdmPlanReprice:
		id, _ := dialog.GetInt64(st.Payload, "plan_id")
		price, err := parsePrice(text)
		if err != nil {
			b.reply(chatID, "Цена должна быть числом, например 499 или 499.90")
			return
		}
		b.savePlan(ctx, chatID, id, b.Plans.SetPrice(ctx, id, price))

	case dialog.StateAdmPlanDuration:
		id, _ := dialog.GetInt64(st.Payload, "plan_id")
		v, unit, err := parseDuration(text)
		if err != nil {
			b.reply(chatID, "Формат: число и единица, например 30 days")
			return
		}
		b.savePlan(ctx, chatID, id, b.Plans.SetDuration(ctx, id, v, unit))
	}
}

func (b *AdminBot) savePlan(ctx context.Context, chatID, id int64, err error) {
	if err != nil {
		b.planError(chatID, err)
		if errors.Is(err, plans.ErrNotFound) {
			_ = b.States.Reset(ctx, chatID)
		}
		return
	}
	_ = b.States.Reset(ctx, chatID)
	b.log.Info("plan updated", "plan_id", id)
	b.reply(chatID, "Сохранено.")
	b.showPlan(ctx, chatID, 0, id)
}

// planError ошибки валидации показываем админу, остальное в лог.
func (b *AdminBot) planError(chatID int64, err error) {
	if msg, ok := validationMessage(err); ok {
		b.reply(chatID, msg)
		return
	}
	if errors.Is(err, plans.ErrNotFound) {
		b.reply(chatID, "Тариф не найден.")
		return
	}
	b.log.Error("plan write failed", "err", err)
	b.reply(chatID, "Не удалось сохранить тариф.")
}
