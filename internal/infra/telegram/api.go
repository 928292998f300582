package telegram

import (
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewAPI клиент Bot API с таймаутом на каждый HTTP-вызов.
// Пустой endpoint: боевой api.telegram.org.
func NewAPI(token, endpoint string, timeout time.Duration, pollTimeout int) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// long polling держит соединение pollTimeout секунд
	client := &http.Client{Timeout: timeout + time.Duration(pollTimeout)*time.Second}
	return tgbotapi.NewBotAPIWithClient(token, endpoint, client)
}
