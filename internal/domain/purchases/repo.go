package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("purchases: request not found")

type Repo struct{ db *pgxpool.Pool }

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

const cols = `id, user_id, username, phone_number, plan_id, created_at, activated_until`

func (r *Repo) Create(ctx context.Context, req Request) (*Request, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO pending_purchases (user_id, username, phone_number, plan_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+cols,
		req.UserID, req.Username, req.Phone, req.PlanID)
	return scan(row)
}

// Get возвращает (nil, nil), если заявки нет.
func (r *Repo) Get(ctx context.Context, id int64) (*Request, error) {
	req, err := scan(r.db.QueryRow(ctx, `SELECT `+cols+` FROM pending_purchases WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (r *Repo) List(ctx context.Context, limit int) ([]Request, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cols+` FROM pending_purchases ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pending_purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (*Request, error) {
	var req Request
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Username,
		&req.Phone,
		&req.PlanID,
		&req.CreatedAt,
		&req.ActivatedUntil,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
