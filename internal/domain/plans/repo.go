package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("plans: not found")

type Repo struct{ db *pgxpool.Pool }

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, p Plan) (int64, error) {
	p.DurationUnit = NormalizeUnit(string(p.DurationUnit))
	if err := p.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO plans (name, duration_value, duration_unit, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, p.Name, p.DurationValue, string(p.DurationUnit), p.Price).Scan(&id)
	return id, err
}

// Get возвращает (nil, nil), если тарифа нет.
func (r *Repo) Get(ctx context.Context, id int64) (*Plan, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, duration_value, duration_unit, price FROM plans WHERE id = $1`, id)
	var p Plan
	var unit string
	if err := row.Scan(&p.ID, &p.Name, &p.DurationValue, &unit, &p.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.DurationUnit = NormalizeUnit(unit)
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, duration_value, duration_unit, price FROM plans ORDER BY price, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		var unit string
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationValue, &unit, &p.Price); err != nil {
			return nil, err
		}
		p.DurationUnit = NormalizeUnit(unit)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update меняет поля тарифа. Уже активированные подписки не пересчитываются.
func (r *Repo) Update(ctx context.Context, p Plan) error {
	p.DurationUnit = NormalizeUnit(string(p.DurationUnit))
	if err := p.Validate(); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE plans SET name = $2, duration_value = $3, duration_unit = $4, price = $5
		WHERE id = $1
	`, p.ID, p.Name, p.DurationValue, string(p.DurationUnit), p.Price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Rename(ctx context.Context, id int64, name string) error {
	return r.modify(ctx, id, func(p *Plan) { p.Name = name })
}

func (r *Repo) SetPrice(ctx context.Context, id int64, price float64) error {
	return r.modify(ctx, id, func(p *Plan) { p.Price = price })
}

func (r *Repo) SetDuration(ctx context.Context, id int64, value int, unit Unit) error {
	return r.modify(ctx, id, func(p *Plan) {
		p.DurationValue = value
		p.DurationUnit = unit
	})
}

func (r *Repo) modify(ctx context.Context, id int64, fn func(p *Plan)) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	fn(p)
	return r.Update(ctx, *p)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureDefault заводит тариф по умолчанию, если таблица пуста.
func (r *Repo) EnsureDefault(ctx context.Context, p Plan) (bool, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := r.Create(ctx, p); err != nil {
		return false, fmt.Errorf("seed default plan: %w", err)
	}
	return true, nil
}
