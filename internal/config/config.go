package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		UserToken      string        `mapstructure:"user_token"`
		AdminToken     string        `mapstructure:"admin_token"`
		AdminIDs       []int64       `mapstructure:"admin_ids"`
		ChannelID      int64         `mapstructure:"channel_id"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		PollTimeout    int           `mapstructure:"poll_timeout"`
		SilentMode     bool          `mapstructure:"silent_mode"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Sweeper struct {
		MinDelay      time.Duration `mapstructure:"min_delay"`
		MaxDelay      time.Duration `mapstructure:"max_delay"`
		ActionTimeout time.Duration `mapstructure:"action_timeout"`
	} `mapstructure:"sweeper"`

	DefaultPlan struct {
		Name     string
		Duration int
		Unit     string
		Price    float64
	} `mapstructure:"default_plan"`

	Broadcast struct {
		RatePerSec float64 `mapstructure:"rate_per_sec"`
		Burst      int
	} `mapstructure:"broadcast"`

	Sentry struct {
		DSN string
	} `mapstructure:"sentry"`
}

var (
	ErrNoUserToken  = errors.New("config: telegram.user_token is empty")
	ErrNoAdminToken = errors.New("config: telegram.admin_token is empty")
	ErrNoAdmins     = errors.New("config: telegram.admin_ids is empty")
	ErrNoChannel    = errors.New("config: telegram.channel_id is empty")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Europe/Moscow")
	v.SetDefault("telegram.user_token", "")
	v.SetDefault("telegram.admin_token", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.channel_id", 0)
	v.SetDefault("telegram.request_timeout", 15*time.Second)
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.silent_mode", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("sweeper.min_delay", 30*time.Second)
	v.SetDefault("sweeper.max_delay", time.Hour)
	v.SetDefault("sweeper.action_timeout", 20*time.Second)
	v.SetDefault("default_plan.name", "Подписка на 30 дней")
	v.SetDefault("default_plan.duration", 30)
	v.SetDefault("default_plan.unit", "days")
	v.SetDefault("default_plan.price", 500)
	v.SetDefault("broadcast.rate_per_sec", 20)
	v.SetDefault("broadcast.burst", 1)
	v.SetDefault("sentry.dsn", "")
}

// Load читает YAML (если файл есть), затем .env и переменные APP_* поверх.
// Пустой path: только дефолты и окружение.
func Load(path string) (Config, error) {
	// .env не обязателен
	_ = gotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return c, err
			}
		} else if !os.IsNotExist(err) {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Telegram.UserToken == "":
		return ErrNoUserToken
	case c.Telegram.AdminToken == "":
		return ErrNoAdminToken
	case len(c.Telegram.AdminIDs) == 0:
		return ErrNoAdmins
	case c.Telegram.ChannelID == 0:
		return ErrNoChannel
	}
	return nil
}

// Location часовой пояс для отображения дат; при ошибке UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) IsAdmin(id int64) bool {
	for _, a := range c.Telegram.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}
