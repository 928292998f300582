package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/subaccess-bot/internal/channel"
	"github.com/Spok95/subaccess-bot/internal/texts"
)

type LangSource interface {
	GetLang(ctx context.Context, userID int64) (string, error)
}

// Gateway реализует channel.Access: канал обслуживает админ-бот
// (он админ канала), сообщения подписчикам шлёт пользовательский бот.
type Gateway struct {
	admin     *tgbotapi.BotAPI
	user      *tgbotapi.BotAPI
	channelID int64
	langs     LangSource
	loc       *time.Location
	log       *slog.Logger
}

var _ channel.Access = (*Gateway)(nil)

func NewGateway(admin, user *tgbotapi.BotAPI, channelID int64, langs LangSource, loc *time.Location, log *slog.Logger) *Gateway {
	return &Gateway{
		admin:     admin,
		user:      user,
		channelID: channelID,
		langs:     langs,
		loc:       loc,
		log:       log.With("component", "telegram"),
	}
}

// do выполняет блокирующий вызов API, но не дольше, чем живёт ctx.
func do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func (g *Gateway) Notify(ctx context.Context, userID int64, n channel.Notice) error {
	lang, err := g.langs.GetLang(ctx, userID)
	if err != nil {
		g.log.Warn("lang lookup failed", "user_id", userID, "err", err)
	}

	var msg tgbotapi.MessageConfig
	switch n.Kind {
	case channel.NoticeInvite:
		msg = tgbotapi.NewMessage(userID, texts.T(lang, texts.NoticeInvite, n.PlanName, texts.FormatTime(n.Until, g.loc)))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(texts.T(lang, texts.BtnJoin), n.InviteLink),
		))
	case channel.NoticeRejected:
		msg = tgbotapi.NewMessage(userID, texts.T(lang, texts.NoticeRejected))
	case channel.NoticeExpired:
		msg = tgbotapi.NewMessage(userID, texts.T(lang, texts.NoticeExpired))
	case channel.NoticeCancelled:
		msg = tgbotapi.NewMessage(userID, texts.T(lang, texts.NoticeCancelled))
	default:
		return fmt.Errorf("telegram: unknown notice kind %q", n.Kind)
	}

	_, err = do(ctx, func() (tgbotapi.Message, error) { return g.user.Send(msg) })
	return err
}

// SendText произвольный текст от пользовательского бота: рассылка и сообщения от админа.
func (g *Gateway) SendText(ctx context.Context, userID int64, text string, silent bool) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableNotification = silent
	_, err := do(ctx, func() (tgbotapi.Message, error) { return g.user.Send(msg) })
	return err
}

// Revoke ban + unban: участник удалён, но может вернуться по новой ссылке.
func (g *Gateway) Revoke(ctx context.Context, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: g.channelID, UserID: userID}

	if _, err := do(ctx, func() (*tgbotapi.APIResponse, error) {
		return g.admin.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member})
	}); err != nil {
		return fmt.Errorf("ban: %w", err)
	}
	if _, err := do(ctx, func() (*tgbotapi.APIResponse, error) {
		return g.admin.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true})
	}); err != nil {
		return fmt.Errorf("unban: %w", err)
	}
	return nil
}

// Grant ссылка на одно вступление.
func (g *Gateway) Grant(ctx context.Context, userID int64) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: g.channelID},
		Name:        fmt.Sprintf("sub-%d", userID),
		MemberLimit: 1,
	}
	resp, err := do(ctx, func() (*tgbotapi.APIResponse, error) { return g.admin.Request(cfg) })
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("empty invite link")
	}
	return link.InviteLink, nil
}

// ProfilePhoto file_id последней аватарки в наибольшем размере; nil если аватарки нет.
// file_id привязан к боту: берём через админ-бот, который его потом и показывает.
func (g *Gateway) ProfilePhoto(ctx context.Context, userID int64) (*string, error) {
	photos, err := do(ctx, func() (tgbotapi.UserProfilePhotos, error) {
		return g.admin.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	})
	if err != nil {
		return nil, err
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return nil, nil
	}
	sizes := photos.Photos[0]
	id := sizes[len(sizes)-1].FileID
	return &id, nil
}

type Diagnostics struct {
	ChannelTitle string
	BotStatus    string
	CanInvite    bool
	CanRestrict  bool
}

// Diagnose проверяет, что канал доступен и у админ-бота есть нужные права.
func (g *Gateway) Diagnose(ctx context.Context) (Diagnostics, error) {
	var d Diagnostics
	chat, err := do(ctx, func() (tgbotapi.Chat, error) {
		return g.admin.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: g.channelID}})
	})
	if err != nil {
		return d, fmt.Errorf("get chat: %w", err)
	}
	d.ChannelTitle = chat.Title

	member, err := do(ctx, func() (tgbotapi.ChatMember, error) {
		return g.admin.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: g.channelID,
			UserID: g.admin.Self.ID,
		}})
	})
	if err != nil {
		return d, fmt.Errorf("get chat member: %w", err)
	}
	d.BotStatus = member.Status
	d.CanInvite = member.IsCreator() || member.CanInviteUsers
	d.CanRestrict = member.IsCreator() || member.CanRestrictMembers
	return d, nil
}
