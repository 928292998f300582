package dialog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool  *pgxpool.Pool
	scope Scope
}

func NewRepo(pool *pgxpool.Pool, scope Scope) *Repo { return &Repo{pool: pool, scope: scope} }

func (r *Repo) Get(ctx context.Context, chatID int64) (*Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT state, payload FROM dialog_states WHERE scope = $1 AND chat_id = $2`, string(r.scope), chatID)
	var state string
	var raw []byte
	if err := row.Scan(&state, &raw); err != nil {
		// нет строки, состояния пока нет
		if errors.Is(err, pgx.ErrNoRows) {
			return &Item{ChatID: chatID, State: StateIdle, Payload: Payload{}}, nil
		}
		return nil, err
	}
	p := Payload{}
	_ = json.Unmarshal(raw, &p)
	return &Item{ChatID: chatID, State: State(state), Payload: p}, nil
}

func (r *Repo) Set(ctx context.Context, chatID int64, state State, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO dialog_states (scope, chat_id, state, payload, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (scope, chat_id) DO UPDATE SET
		  state=$3, payload=$4, updated_at=now()
	`, string(r.scope), chatID, string(state), raw)
	return err
}

func (r *Repo) Reset(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM dialog_states WHERE scope = $1 AND chat_id = $2`, string(r.scope), chatID)
	return err
}

// GetLang язык пользователя; "" если ещё не выбран.
func (r *Repo) GetLang(ctx context.Context, userID int64) (string, error) {
	var lang string
	err := r.pool.QueryRow(ctx, `SELECT lang FROM user_langs WHERE user_id = $1`, userID).Scan(&lang)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return lang, nil
}

func (r *Repo) SetLang(ctx context.Context, userID int64, lang string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_langs (user_id, lang) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET lang = EXCLUDED.lang, updated_at = now()
	`, userID, lang)
	return err
}

// GetString Helper для безопасного чтения строк из payload
func GetString(p Payload, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt64 числа после JSON приходят как float64.
func GetInt64(p Payload, key string) (int64, bool) {
	switch v := p[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
