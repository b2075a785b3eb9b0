package permission

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const permCols = `id, name, description, created_at`

func scanPermission(row pgx.Row) (*Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	return &p, err
}

// Ensure upserts each name. The no-op DO UPDATE makes RETURNING yield the
// existing row on conflict, so concurrent callers racing on the same name
// both observe the single surviving record.
func (r *RepoPG) Ensure(ctx context.Context, names []string) ([]*Permission, error) {
	const q = `
		INSERT INTO permission (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + permCols

	out := make([]*Permission, 0, len(names))
	for _, name := range names {
		p, err := scanPermission(r.pool.QueryRow(ctx, q, name))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RepoPG) List(ctx context.Context) ([]*Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permCols+` FROM permission ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *RepoPG) Known(ctx context.Context, names []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM permission WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]bool, len(names))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		known[name] = true
	}
	return known, rows.Err()
}
