package breakglass

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const grantCols = `id, token_digest, principal_id, permission, scope, justification,
	issued_by, issued_at, expires_at, used, used_at, revoked`

func scanGrant(row pgx.Row) (*Grant, error) {
	var g Grant
	err := row.Scan(
		&g.ID, &g.TokenDigest, &g.PrincipalID, &g.Permission, &g.Scope, &g.Justification,
		&g.IssuedBy, &g.IssuedAt, &g.ExpiresAt, &g.Used, &g.UsedAt, &g.Revoked,
	)
	return &g, err
}

func (r *RepoPG) Create(ctx context.Context, g *Grant) error {
	const q = `
		INSERT INTO break_glass_grant (
			token_digest, principal_id, permission, scope, justification,
			issued_by, issued_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return r.pool.QueryRow(ctx, q,
		g.TokenDigest, g.PrincipalID, g.Permission, g.Scope, g.Justification,
		g.IssuedBy, g.IssuedAt, g.ExpiresAt,
	).Scan(&g.ID)
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Grant, error) {
	g, err := scanGrant(r.pool.QueryRow(ctx,
		`SELECT `+grantCols+` FROM break_glass_grant WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *RepoPG) GetByTokenDigest(ctx context.Context, digest string) (*Grant, error) {
	g, err := scanGrant(r.pool.QueryRow(ctx,
		`SELECT `+grantCols+` FROM break_glass_grant WHERE token_digest = $1`, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return g, nil
}

// Consume relies on the conditional WHERE used = FALSE: the row is
// locked by the UPDATE, so two racing callers serialize and only the
// first still sees used = FALSE. Expiry is checked in the same
// condition, so a grant that lapses between the caller's validation
// and the flip cannot be spent.
func (r *RepoPG) Consume(ctx context.Context, id uuid.UUID, usedAt time.Time) (*Grant, error) {
	const q = `
		UPDATE break_glass_grant
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE AND expires_at > $2
		RETURNING ` + grantCols

	g, err := scanGrant(r.pool.QueryRow(ctx, q, id, usedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.consumeFailure(ctx, id, usedAt)
		}
		return nil, err
	}
	return g, nil
}

func (r *RepoPG) Revoke(ctx context.Context, id uuid.UUID, usedAt time.Time) (*Grant, error) {
	const q = `
		UPDATE break_glass_grant
		SET used = TRUE, used_at = $2, revoked = TRUE
		WHERE id = $1 AND used = FALSE
		RETURNING ` + grantCols

	g, err := scanGrant(r.pool.QueryRow(ctx, q, id, usedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.consumeFailure(ctx, id, usedAt)
		}
		return nil, err
	}
	return g, nil
}

// consumeFailure distinguishes a missing, expired or spent grant after
// a conditional update matched no rows.
func (r *RepoPG) consumeFailure(ctx context.Context, id uuid.UUID, now time.Time) error {
	g, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !g.Used && g.Expired(now) {
		return ErrGrantExpired
	}
	return ErrAlreadyUsed
}

func (r *RepoPG) ListActive(ctx context.Context, principalID *uuid.UUID, now time.Time) ([]*Grant, error) {
	q := `SELECT ` + grantCols + `
		FROM break_glass_grant
		WHERE used = FALSE AND revoked = FALSE AND expires_at > $1`
	args := []interface{}{now}
	if principalID != nil {
		q += ` AND principal_id = $2`
		args = append(args, *principalID)
	}
	q += ` ORDER BY issued_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *RepoPG) FindActive(ctx context.Context, principalID uuid.UUID, permission string, now time.Time) ([]*Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantCols+`
		FROM break_glass_grant
		WHERE used = FALSE AND revoked = FALSE AND expires_at > $1
		  AND principal_id = $2 AND permission = $3
		ORDER BY issued_at DESC`,
		now, principalID, permission)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows pgx.Rows) ([]*Grant, error) {
	var grants []*Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
