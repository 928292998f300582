package plans

import (
	"strings"

	"github.com/go-playground/validator"
)

type Unit string

const (
	UnitSeconds Unit = "seconds"
	UnitMinutes Unit = "minutes"
	UnitDays    Unit = "days"
	UnitMonths  Unit = "months" // 30 дней
)

var Units = []Unit{UnitSeconds, UnitMinutes, UnitDays, UnitMonths}

// NormalizeUnit принимает и единственное число; всё неизвестное считается днями.
func NormalizeUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seconds", "second", "sec", "s":
		return UnitSeconds
	case "minutes", "minute", "min":
		return UnitMinutes
	case "months", "month":
		return UnitMonths
	default:
		return UnitDays
	}
}

func (u Unit) Title() string {
	switch u {
	case UnitSeconds:
		return "сек."
	case UnitMinutes:
		return "мин."
	case UnitMonths:
		return "мес."
	default:
		return "дн."
	}
}

type Plan struct {
	ID            int64
	Name          string  `validate:"required,max=128"`
	DurationValue int     `validate:"gt=0"`
	DurationUnit  Unit    `validate:"required"`
	Price         float64 `validate:"gt=0"`
}

var validate = validator.New()

func (p Plan) Validate() error {
	return validate.Struct(p)
}
