package role

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	List(ctx context.Context) ([]*Role, error)

	AddPermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error
	RemovePermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error

	AssignToPrincipal(ctx context.Context, principalID, roleID uuid.UUID) error
	RemoveFromPrincipal(ctx context.Context, principalID, roleID uuid.UUID) error
	PrincipalRoles(ctx context.Context, principalID uuid.UUID) ([]*Role, error)

	GrantDirect(ctx context.Context, principalID uuid.UUID, permission string) error
	RevokeDirect(ctx context.Context, principalID uuid.UUID, permission string) error

	// EffectivePermissions returns the union of the permissions of every
	// role assigned to the principal plus any direct grants. Computed
	// fresh on every call: the role graph never caches resolution.
	EffectivePermissions(ctx context.Context, principalID uuid.UUID) ([]string, error)
}
