package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
	"github.com/Spok95/subaccess-bot/internal/infra/metrics"
)

/*** HELPERS ***/

// base общее для обоих ботов: API и логгер.
type base struct {
	name string
	api  *tgbotapi.BotAPI
	log  *slog.Logger
}

func (b *base) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *base) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	if _, err := b.api.Request(resp); err != nil {
		b.log.Debug("answer callback failed", "err", err)
	}
}

func (b *base) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *base) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

func (b *base) editText(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb))
}

// run цикл апдейтов: по одному за раз, паника в обработчике не роняет цикл.
func (b *base) run(ctx context.Context, timeoutSec int, handle func(ctx context.Context, upd tgbotapi.Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.log.Info("bot started", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, upd, handle)
		}
	}
}

func (b *base) dispatch(ctx context.Context, upd tgbotapi.Update, handle func(ctx context.Context, upd tgbotapi.Update)) {
	kind := "other"
	switch {
	case upd.Message != nil:
		kind = "message"
	case upd.CallbackQuery != nil:
		kind = "callback"
	}
	metrics.Updates.WithLabelValues(b.name, kind).Inc()

	defer func() {
		if r := recover(); r != nil {
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetTag("bot", b.name)
			hub.Recover(r)
			b.log.Error("update handler panicked", "panic", fmt.Sprint(r), "update_id", upd.UpdateID)
		}
	}()
	handle(ctx, upd)
}

func profileOf(u *tgbotapi.User) accounts.Profile {
	p := accounts.Profile{UserID: u.ID}
	if u.UserName != "" {
		name := u.UserName
		p.Username = &name
	}
	return p
}

// parseID число после префикса: "approve:12" -> 12.
func parseID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Бейдж активности
func badge(b bool) string {
	if b {
		return "🟢"
	}
	return "🚫"
}

func deref(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
