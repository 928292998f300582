package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/texts"
)

/*** ПОЛЬЗОВАТЕЛИ ***/

const (
	usersPageSize = 10
	searchLimit   = 20
)

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative page %d", n)
	}
	return n, nil
}

// showUsers страница по 10; лишняя запись показывает, есть ли следующая.
func (b *AdminBot) showUsers(ctx context.Context, chatID int64, msgID int, page int) {
	list, err := b.Accounts.List(ctx, page*usersPageSize, usersPageSize+1)
	if err != nil {
		b.log.Error("list accounts failed", "err", err)
		b.reply(chatID, "Не удалось загрузить пользователей.")
		return
	}
	hasNext := len(list) > usersPageSize
	if hasNext {
		list = list[:usersPageSize]
	}

	text := fmt.Sprintf("Пользователи, стр. %d:", page+1)
	if len(list) == 0 && page == 0 {
		text = "Пользователей пока нет."
	}
	kb := usersPageKeyboard(list, page, hasNext, b.Subs.Now())
	if msgID != 0 {
		b.editText(chatID, msgID, text, kb)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	b.send(msg)
}

func (b *AdminBot) onUserSearch(ctx context.Context, chatID int64, text string) {
	q := strings.TrimPrefix(text, "@")
	if q == "" {
		b.reply(chatID, "Введите @username или id.")
		return
	}
	list, err := b.Accounts.Search(ctx, q, searchLimit)
	if err != nil {
		b.log.Error("search accounts failed", "err", err)
		b.reply(chatID, "Поиск не удался.")
		return
	}
	_ = b.States.Reset(ctx, chatID)
	if len(list) == 0 {
		b.reply(chatID, "Никого не нашли.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Найдено: %d", len(list)))
	msg.ReplyMarkup = usersPageKeyboard(list, 0, false, b.Subs.Now())
	b.send(msg)
}

func (b *AdminBot) userCard(a accounts.Account) string {
	now := b.Subs.Now()
	sub := "нет"
	if a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now) {
		sub = "до " + texts.FormatTime(*a.SubscriptionEnd, b.Location)
	} else if a.SubscriptionEnd != nil {
		sub = "истекла " + texts.FormatTime(*a.SubscriptionEnd, b.Location)
	}
	yes := func(v bool) string {
		if v {
			return "да"
		}
		return "нет"
	}
	return fmt.Sprintf("%s (id %d)\nТелефон: %s\nПодписка: %s\nДобавлен в канал: %s\nУдалён из канала: %s\nВ базе с: %s",
		a.DisplayName(), a.UserID, deref(a.Phone, "не указан"), sub,
		yes(a.AddedToChannel), yes(a.ChannelMemberRemoved), texts.FormatTime(a.CreatedAt, b.Location))
}

// showUserCard карточка с аватаркой, если она есть.
func (b *AdminBot) showUserCard(ctx context.Context, chatID, userID int64) {
	a, err := b.Accounts.Get(ctx, userID)
	if err != nil {
		b.log.Error("get account failed", "user_id", userID, "err", err)
		b.reply(chatID, "Не удалось загрузить пользователя.")
		return
	}
	if a == nil {
		b.reply(chatID, "Пользователь не найден.")
		return
	}
	kb := userCardKeyboard(a.UserID)
	if a.PhotoFileID != nil && *a.PhotoFileID != "" {
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(*a.PhotoFileID))
		p.Caption = b.userCard(*a)
		p.ReplyMarkup = kb
		if _, err := b.api.Send(p); err == nil {
			return
		}
		b.log.Debug("card photo failed, sending text", "user_id", userID)
	}
	msg := tgbotapi.NewMessage(chatID, b.userCard(*a))
	msg.ReplyMarkup = kb
	b.send(msg)
}

func (b *AdminBot) onUserCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case data == "user:search":
		b.ask(ctx, chatID, 0, dialog.StateAdmUserSearch, nil, "Введите @username или id:")

	case strings.HasPrefix(data, "user:card:"):
		if id, ok := parseID(data, "user:card:"); ok {
			b.showUserCard(ctx, chatID, id)
		}

	case strings.HasPrefix(data, "user:dm:"):
		if id, ok := parseID(data, "user:dm:"); ok {
			b.ask(ctx, chatID, 0, dialog.StateAdmUserDM, dialog.Payload{"user_id": id},
				fmt.Sprintf("Сообщение для id %d:", id))
		}

	case strings.HasPrefix(data, "user:kick:"):
		if id, ok := parseID(data, "user:kick:"); ok {
			b.kick(ctx, chatID, id)
		}

	case strings.HasPrefix(data, "user:delok:"):
		if id, ok := parseID(data, "user:delok:"); ok {
			b.deleteUser(ctx, chatID, cb.Message.MessageID, id)
		}

	case strings.HasPrefix(data, "user:del:"):
		if id, ok := parseID(data, "user:del:"); ok {
			msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Удалить пользователя id %d из базы? Доступ к каналу тоже будет закрыт.", id))
			msg.ReplyMarkup = confirmKeyboard(fmt.Sprintf("user:delok:%d", id), fmt.Sprintf("user:card:%d", id))
			b.send(msg)
		}
	}
}

// kick снимает подписку и убирает из канала.
func (b *AdminBot) kick(ctx context.Context, chatID, userID int64) {
	log := b.log.With("user_id", userID)

	if err := b.Subs.Deactivate(ctx, userID); err != nil && !errors.Is(err, accounts.ErrNotFound) {
		log.Error("deactivate failed", "err", err)
		b.reply(chatID, "Не удалось снять подписку.")
		return
	}
	if err := b.Access.Revoke(ctx, userID); err != nil {
		log.Warn("revoke failed", "err", err)
		b.reply(chatID, fmt.Sprintf("Подписка снята, но удалить из канала не удалось: %v", err))
		return
	}
	if err := b.Accounts.MarkRemovedFromChannel(ctx, userID); err != nil && !errors.Is(err, accounts.ErrNotFound) {
		log.Warn("mark removed failed", "err", err)
	}
	if err := b.Access.Notify(ctx, userID, channel.Notice{Kind: channel.NoticeCancelled}); err != nil {
		log.Warn("cancel notice failed", "err", err)
	}
	log.Info("user removed from channel by admin")
	b.reply(chatID, fmt.Sprintf("Пользователь id %d удалён из канала, подписка снята.", userID))
}

// deleteUser из канала best-effort, из базы обязательно.
func (b *AdminBot) deleteUser(ctx context.Context, chatID int64, msgID int, userID int64) {
	log := b.log.With("user_id", userID)

	if err := b.Access.Revoke(ctx, userID); err != nil {
		log.Warn("revoke before delete failed", "err", err)
	}
	if err := b.Accounts.Delete(ctx, userID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			b.editTextAndClear(chatID, msgID, fmt.Sprintf("Пользователь id %d уже удалён.", userID))
			return
		}
		log.Error("delete account failed", "err", err)
		b.reply(chatID, "Не удалось удалить пользователя.")
		return
	}
	log.Info("account deleted by admin")
	b.editTextAndClear(chatID, msgID, fmt.Sprintf("Пользователь id %d удалён из базы.", userID))
}

func (b *AdminBot) onDirectMessage(ctx context.Context, chatID int64, st *dialog.Item, text string) {
	userID, ok := dialog.GetInt64(st.Payload, "user_id")
	if !ok {
		_ = b.States.Reset(ctx, chatID)
		b.menu(ctx, chatID, "Получатель потерян, начните заново.")
		return
	}
	if text == "" {
		b.reply(chatID, "Пустое сообщение не отправить.")
		return
	}
	_ = b.States.Reset(ctx, chatID)
	if err := b.Messenger.SendText(ctx, userID, text, b.Silent); err != nil {
		b.log.Warn("direct message failed", "user_id", userID, "err", err)
		b.reply(chatID, fmt.Sprintf("Не доставлено: %v", err))
		return
	}
	b.reply(chatID, "Отправлено.")
}
