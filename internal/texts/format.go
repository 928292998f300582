package texts

import (
	"fmt"
	"time"
)

const dateLayout = "02.01.2006 15:04"

func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// Remaining округляет до минут: "2 дн. 3 ч." / "5 min".
func Remaining(lang string, d time.Duration) string {
	if d < time.Minute {
		d = time.Minute
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)

	h, m := "ч.", "мин."
	if Normalize(lang) == LangEN {
		h, m = "h", "min"
	}
	switch {
	case days > 0:
		return fmt.Sprintf("%d %s %d %s", days, T(lang, UnitDays), hours, h)
	case hours > 0:
		return fmt.Sprintf("%d %s %d %s", hours, h, mins, m)
	default:
		return fmt.Sprintf("%d %s", mins, m)
	}
}
