package accounts

import (
	"fmt"
	"time"
)

// Account подписчик канала. Поля подписки меняет только lifecycle.
type Account struct {
	UserID               int64
	Username             *string
	Phone                *string
	PhotoFileID          *string
	SubscriptionEnd      *time.Time
	IsActive             bool
	AddedToChannel       bool
	ChannelMemberRemoved bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DisplayName @username или id<число>.
func (a Account) DisplayName() string {
	return DisplayName(a.UserID, a.Username)
}

func DisplayName(userID int64, username *string) string {
	if username != nil && *username != "" {
		return "@" + *username
	}
	return fmt.Sprintf("id%d", userID)
}

// Profile данные из Telegram; nil-поля не затирают сохранённые.
type Profile struct {
	UserID      int64
	Username    *string
	Phone       *string
	PhotoFileID *string
}

type Stats struct {
	Total    int
	Active   int
	Expiring int // истекают в ближайшие сутки
}
