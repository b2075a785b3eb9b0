package role

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const roleCols = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (*Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (p *RepoPG) Create(ctx context.Context, r *Role) error {
	const q = `
		INSERT INTO role (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := p.pool.QueryRow(ctx, q, r.Name, r.Description).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRole
		}
		return err
	}
	return nil
}

func (p *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	r, err := scanRole(p.pool.QueryRow(ctx,
		`SELECT `+roleCols+` FROM role WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.Permissions, err = p.rolePermissions(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *RepoPG) List(ctx context.Context) ([]*Role, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+roleCols+` FROM role ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Permissions, err = p.rolePermissions(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (p *RepoPG) rolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT permission_name FROM role_permission WHERE role_id = $1 ORDER BY permission_name`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func (p *RepoPG) AddPermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error {
	const q = `
		INSERT INTO role_permission (role_id, permission_name)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_name) DO NOTHING`

	for _, name := range permissions {
		if _, err := p.pool.Exec(ctx, q, roleID, name); err != nil {
			return err
		}
	}
	return p.touch(ctx, roleID)
}

func (p *RepoPG) RemovePermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM role_permission WHERE role_id = $1 AND permission_name = ANY($2)`,
		roleID, permissions)
	if err != nil {
		return err
	}
	return p.touch(ctx, roleID)
}

func (p *RepoPG) touch(ctx context.Context, roleID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `UPDATE role SET updated_at = NOW() WHERE id = $1`, roleID)
	return err
}

func (p *RepoPG) AssignToPrincipal(ctx context.Context, principalID, roleID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO principal_role (principal_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (principal_id, role_id) DO NOTHING`,
		principalID, roleID)
	return err
}

func (p *RepoPG) RemoveFromPrincipal(ctx context.Context, principalID, roleID uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM principal_role WHERE principal_id = $1 AND role_id = $2`,
		principalID, roleID)
	return err
}

func (p *RepoPG) PrincipalRoles(ctx context.Context, principalID uuid.UUID) ([]*Role, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM role r
		JOIN principal_role pr ON pr.role_id = r.id
		WHERE pr.principal_id = $1
		ORDER BY r.name`,
		principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (p *RepoPG) GrantDirect(ctx context.Context, principalID uuid.UUID, permission string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO principal_permission (principal_id, permission_name)
		VALUES ($1, $2)
		ON CONFLICT (principal_id, permission_name) DO NOTHING`,
		principalID, permission)
	return err
}

func (p *RepoPG) RevokeDirect(ctx context.Context, principalID uuid.UUID, permission string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM principal_permission WHERE principal_id = $1 AND permission_name = $2`,
		principalID, permission)
	return err
}

func (p *RepoPG) EffectivePermissions(ctx context.Context, principalID uuid.UUID) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT rp.permission_name
		FROM role_permission rp
		JOIN principal_role pr ON pr.role_id = rp.role_id
		WHERE pr.principal_id = $1
		UNION
		SELECT permission_name FROM principal_permission WHERE principal_id = $1`,
		principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}
