package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/domain/settings"
	"github.com/Spok95/subaccess-bot/internal/report"
)

/*** РАССЫЛКА ***/

func (b *AdminBot) askBroadcast(ctx context.Context, chatID int64) {
	b.ask(ctx, chatID, 0, dialog.StateAdmBroadcast, nil, "Текст оповещения для всех пользователей:")
}

func (b *AdminBot) onBroadcast(ctx context.Context, chatID int64, text string) {
	if text == "" {
		b.reply(chatID, "Пустое оповещение не отправить.")
		return
	}
	_ = b.States.Reset(ctx, chatID)

	ids, err := b.Accounts.ListIDs(ctx)
	if err != nil {
		b.log.Error("list ids failed", "err", err)
		b.reply(chatID, "Не удалось получить список пользователей.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Рассылка запущена, получателей: %d.", len(ids)))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.broadcast(ctx, chatID, ids, text)
	}()
}

// broadcast шлёт в темпе лимитера, чтобы не упереться в лимиты Telegram.
// Остановка процесса прерывает рассылку.
func (b *AdminBot) broadcast(ctx context.Context, chatID int64, ids []int64, text string) {
	sent, failed := 0, 0
	for _, id := range ids {
		if err := b.Limiter.Wait(ctx); err != nil {
			b.log.Warn("broadcast interrupted", "sent", sent, "failed", failed, "err", err)
			return
		}
		if err := b.Messenger.SendText(ctx, id, text, b.Silent); err != nil {
			failed++
			b.log.Debug("broadcast message failed", "user_id", id, "err", err)
			continue
		}
		sent++
	}
	b.log.Info("broadcast finished", "sent", sent, "failed", failed)
	b.reply(chatID, fmt.Sprintf("Рассылка завершена: доставлено %d, ошибок %d.", sent, failed))
}

/*** ВЫГРУЗКА ***/

func (b *AdminBot) exportUsers(ctx context.Context, chatID int64) {
	list, err := b.Accounts.ListAll(ctx)
	if err != nil {
		b.log.Error("list accounts failed", "err", err)
		b.reply(chatID, "Не удалось загрузить пользователей.")
		return
	}
	now := b.Subs.Now()
	data, err := report.Users(list, now, b.Location)
	if err != nil {
		b.log.Error("build users report failed", "err", err)
		b.reply(chatID, "Не удалось сформировать файл.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("users_%s.xlsx", now.In(b.Location).Format("20060102_1504")),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("Пользователей: %d", len(list))
	b.send(doc)
}

/*** ДИАГНОСТИКА ***/

func (b *AdminBot) showDiagnostics(ctx context.Context, chatID int64) {
	var text string
	d, err := b.Diag.Diagnose(ctx)
	if err != nil {
		b.log.Warn("channel diagnostics failed", "err", err)
		text = fmt.Sprintf("❌ Канал недоступен: %v", err)
	} else {
		text = fmt.Sprintf("📡 Канал: %s\nСтатус бота: %s\nПриглашать участников: %s\nУдалять участников: %s",
			d.ChannelTitle, d.BotStatus, badge(d.CanInvite), badge(d.CanRestrict))
	}

	st, err := b.Accounts.Stats(ctx, b.Subs.Now())
	if err != nil {
		b.log.Error("stats failed", "err", err)
	} else {
		text += fmt.Sprintf("\n\n👥 Пользователей: %d\nАктивных подписок: %d\nИстекают в течение суток: %d",
			st.Total, st.Active, st.Expiring)
	}
	b.reply(chatID, text)
}

/*** ПРИВЕТСТВИЕ ***/

func (b *AdminBot) askWelcome(ctx context.Context, chatID int64) {
	current, err := b.Settings.Get(ctx, settings.KeyWelcome, settings.Defaults[settings.KeyWelcome])
	if err != nil {
		b.log.Warn("get welcome failed", "err", err)
	}
	b.ask(ctx, chatID, 0, dialog.StateAdmWelcome, nil,
		fmt.Sprintf("Текущее приветствие:\n\n%s\n\nОтправьте новый текст:", current))
}

func (b *AdminBot) onWelcome(ctx context.Context, chatID int64, text string) {
	if text == "" {
		b.reply(chatID, "Приветствие не может быть пустым.")
		return
	}
	if err := b.Settings.Set(ctx, settings.KeyWelcome, text); err != nil {
		b.log.Error("set welcome failed", "err", err)
		b.reply(chatID, "Не удалось сохранить приветствие.")
		return
	}
	_ = b.States.Reset(ctx, chatID)
	b.menu(ctx, chatID, "Приветствие обновлено.")
}
