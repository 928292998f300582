package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KeyWelcome = "welcome_message"
)

var Defaults = map[string]string{
	KeyWelcome: "Добро пожаловать! Здесь можно оформить доступ в закрытый канал.",
}

type Repo struct{ db *pgxpool.Pool }

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

// Get значение ключа или def, если ключа нет.
func (r *Repo) Get(ctx context.Context, key, def string) (string, error) {
	var v string
	err := r.db.QueryRow(ctx, `SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return def, nil
		}
		return def, err
	}
	return v, nil
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bot_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

// EnsureDefaults дописывает отсутствующие ключи, существующие не трогает.
func (r *Repo) EnsureDefaults(ctx context.Context) error {
	for k, v := range Defaults {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO bot_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING
		`, k, v); err != nil {
			return err
		}
	}
	return nil
}
