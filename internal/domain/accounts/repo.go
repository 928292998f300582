package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("accounts: not found")
	ErrRequestNotFound = errors.New("accounts: purchase request not found")
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const selectCols = `user_id, username, phone_number, photo_file_id, subscription_end,
	is_active, added_to_channel, channel_member_removed, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(
		&a.UserID,
		&a.Username,
		&a.Phone,
		&a.PhotoFileID,
		&a.SubscriptionEnd,
		&a.IsActive,
		&a.AddedToChannel,
		&a.ChannelMemberRemoved,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) Get(ctx context.Context, userID int64) (*Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+selectCols+` FROM accounts WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// UpsertProfile создаёт запись при первом контакте; отсутствующие поля не затирают старые.
func (r *Repo) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (user_id, username, phone_number, photo_file_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
		  username      = COALESCE(EXCLUDED.username, accounts.username),
		  phone_number  = COALESCE(EXCLUDED.phone_number, accounts.phone_number),
		  photo_file_id = COALESCE(EXCLUDED.photo_file_id, accounts.photo_file_id),
		  updated_at    = now()
	`, p.UserID, p.Username, p.Phone, p.PhotoFileID)
	return err
}

// Extend под блокировкой строки считает новый конец подписки через next
// и включает is_active. Профиль апсертится в той же транзакции.
func (r *Repo) Extend(ctx context.Context, p Profile, next func(current *time.Time) time.Time) (time.Time, error) {
	return r.extend(ctx, "accounts.Extend", p, 0, next)
}

// ExtendForRequest как Extend, но в той же транзакции записывает новый конец
// в pending_purchases.activated_until. Заявки нет: ErrRequestNotFound, окно не тронуто.
func (r *Repo) ExtendForRequest(ctx context.Context, p Profile, requestID int64, next func(current *time.Time) time.Time) (time.Time, error) {
	return r.extend(ctx, "accounts.ExtendForRequest", p, requestID, next)
}

func (r *Repo) extend(ctx context.Context, op string, p Profile, requestID int64, next func(current *time.Time) time.Time) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (user_id, username, phone_number, photo_file_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
		  username      = COALESCE(EXCLUDED.username, accounts.username),
		  phone_number  = COALESCE(EXCLUDED.phone_number, accounts.phone_number),
		  photo_file_id = COALESCE(EXCLUDED.photo_file_id, accounts.photo_file_id),
		  updated_at    = now()
	`, p.UserID, p.Username, p.Phone, p.PhotoFileID); err != nil {
		return time.Time{}, fmt.Errorf("%s: upsert: %w", op, err)
	}

	var current *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT subscription_end FROM accounts WHERE user_id = $1 FOR UPDATE`, p.UserID,
	).Scan(&current); err != nil {
		return time.Time{}, fmt.Errorf("%s: lock: %w", op, err)
	}

	end := next(current)
	if _, err := tx.Exec(ctx, `
		UPDATE accounts
		SET subscription_end = $2,
		    is_active = true,
		    channel_member_removed = false,
		    updated_at = now()
		WHERE user_id = $1
	`, p.UserID, end); err != nil {
		return time.Time{}, fmt.Errorf("%s: update: %w", op, err)
	}

	if requestID != 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE pending_purchases SET activated_until = $2 WHERE id = $1`, requestID, end)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: mark request: %w", op, err)
		}
		if tag.RowsAffected() == 0 {
			return time.Time{}, ErrRequestNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return end, nil
}

// DeactivateIfExpired гасит флаг, только если окно действительно истекло к now.
// Параллельное продление не затирается.
func (r *Repo) DeactivateIfExpired(ctx context.Context, userID int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET is_active = false, updated_at = now()
		WHERE user_id = $1 AND is_active
		  AND (subscription_end IS NULL OR subscription_end <= $2)
	`, userID, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateExpired гасит все истёкшие подписки одним запросом и возвращает их user_id.
func (r *Repo) DeactivateExpired(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE accounts
		SET is_active = false, updated_at = now()
		WHERE is_active AND subscription_end IS NOT NULL AND subscription_end < $1
		RETURNING user_id
	`, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// NextExpiry ближайший будущий конец среди активных, nil если таких нет.
func (r *Repo) NextExpiry(ctx context.Context, now time.Time) (*time.Time, error) {
	var next *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MIN(subscription_end) FROM accounts
		WHERE is_active AND subscription_end > $1
	`, now).Scan(&next)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel отмена пользователем: флаг снят, конец обрезан до now.
func (r *Repo) Cancel(ctx context.Context, userID int64, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET is_active = false,
		    subscription_end = CASE
		        WHEN subscription_end IS NULL OR subscription_end > $2 THEN $2
		        ELSE subscription_end END,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) MarkAddedToChannel(ctx context.Context, userID int64) error {
	return r.setFlags(ctx, userID, `added_to_channel = true, channel_member_removed = false`)
}

func (r *Repo) MarkRemovedFromChannel(ctx context.Context, userID int64) error {
	return r.setFlags(ctx, userID, `channel_member_removed = true`)
}

func (r *Repo) setFlags(ctx context.Context, userID int64, set string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET `+set+`, updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List страница аккаунтов, новые сверху.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectCols+` FROM accounts
		ORDER BY created_at DESC, user_id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListAll(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCols+` FROM accounts ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Search по части username (без @) или точному id.
func (r *Repo) Search(ctx context.Context, query string, limit int) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectCols+` FROM accounts
		WHERE username ILIKE '%' || $1 || '%' OR user_id::text = $1
		ORDER BY username NULLS LAST, user_id
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (r *Repo) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active AND subscription_end > $1),
		       COUNT(*) FILTER (WHERE is_active AND subscription_end > $1 AND subscription_end <= $1 + interval '1 day')
		FROM accounts
	`, now).Scan(&s.Total, &s.Active, &s.Expiring)
	return s, err
}

func (r *Repo) Delete(ctx context.Context, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
