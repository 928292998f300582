package purchases

import "time"

// Request заявка на покупку, ждёт решения админа.
type Request struct {
	ID        int64
	UserID    int64
	Username  string // отображаемое имя на момент заявки
	Phone     *string
	PlanID    int64
	CreatedAt time.Time
	// ActivatedUntil выставляется после активации; повторное одобрение не продлевает ещё раз.
	ActivatedUntil *time.Time
}
