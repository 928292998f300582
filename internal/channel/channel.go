// Package channel описывает доступ к закрытому каналу и уведомления подписчикам.
package channel

import (
	"context"
	"time"
)

type NoticeKind string

const (
	NoticeInvite    NoticeKind = "invite"    // одобрено, внутри ссылка
	NoticeRejected  NoticeKind = "rejected"  // заявка отклонена
	NoticeExpired   NoticeKind = "expired"   // подписка истекла, доступ снят
	NoticeCancelled NoticeKind = "cancelled" // пользователь отменил сам
)

type Notice struct {
	Kind       NoticeKind
	PlanName   string
	Until      time.Time
	InviteLink string
}

// Access доступ к каналу и сообщения пользователю.
// Revoke идемпотентен: ban + сразу unban, без постоянной блокировки.
type Access interface {
	Notify(ctx context.Context, userID int64, n Notice) error
	Revoke(ctx context.Context, userID int64) error
	// Grant одноразовая ссылка-приглашение (одна активация).
	Grant(ctx context.Context, userID int64) (string, error)
}
