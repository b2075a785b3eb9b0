package role

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Catalog is the slice of the permission catalog the role graph needs:
// which of the referenced names actually exist. Satisfied by
// permission.Service.
type Catalog interface {
	Missing(ctx context.Context, names []string) ([]string, error)
}

// Service owns the role graph: roles, their permission sets, principal
// assignments and direct per-principal grants.
type Service struct {
	repo    Repository
	catalog Catalog
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// CreateRole creates a role with an initial permission set. Every
// referenced permission must already exist in the catalog.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissions []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("role: name required")
	}
	permissions = normalize(permissions)
	if err := s.checkKnown(ctx, permissions); err != nil {
		return nil, err
	}

	r := &Role{Name: name, Description: strings.TrimSpace(description)}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	if len(permissions) > 0 {
		if err := s.repo.AddPermissions(ctx, r.ID, permissions); err != nil {
			return nil, err
		}
	}
	r.Permissions = permissions
	return r, nil
}

// AssignPermissions adds permissions to a role with set semantics:
// already-present names are a no-op.
func (s *Service) AssignPermissions(ctx context.Context, roleID uuid.UUID, permissions []string) (*Role, error) {
	permissions = normalize(permissions)
	if err := s.checkKnown(ctx, permissions); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, roleID); err != nil {
		return nil, err
	}
	if err := s.repo.AddPermissions(ctx, roleID, permissions); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, roleID)
}

// RemovePermissions drops permissions from a role. Unknown names are
// ignored; removing never touches other roles sharing permissions.
func (s *Service) RemovePermissions(ctx context.Context, roleID uuid.UUID, permissions []string) (*Role, error) {
	permissions = normalize(permissions)
	if _, err := s.repo.GetByID(ctx, roleID); err != nil {
		return nil, err
	}
	if err := s.repo.RemovePermissions(ctx, roleID, permissions); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, roleID)
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.repo.List(ctx)
}

func (s *Service) AssignRole(ctx context.Context, principalID, roleID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, roleID); err != nil {
		return err
	}
	return s.repo.AssignToPrincipal(ctx, principalID, roleID)
}

func (s *Service) RemoveRole(ctx context.Context, principalID, roleID uuid.UUID) error {
	return s.repo.RemoveFromPrincipal(ctx, principalID, roleID)
}

func (s *Service) PrincipalRoles(ctx context.Context, principalID uuid.UUID) ([]*Role, error) {
	return s.repo.PrincipalRoles(ctx, principalID)
}

// GrantDirect gives a single principal a permission outside any role,
// the escape hatch for per-user exceptions.
func (s *Service) GrantDirect(ctx context.Context, principalID uuid.UUID, permission string) error {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if err := s.checkKnown(ctx, []string{permission}); err != nil {
		return err
	}
	return s.repo.GrantDirect(ctx, principalID, permission)
}

func (s *Service) RevokeDirect(ctx context.Context, principalID uuid.UUID, permission string) error {
	return s.repo.RevokeDirect(ctx, principalID, strings.ToLower(strings.TrimSpace(permission)))
}

// EffectivePermissions resolves the principal's full permission set.
// Always recomputed: a revoked role stops granting access on the very
// next call.
func (s *Service) EffectivePermissions(ctx context.Context, principalID uuid.UUID) (map[string]struct{}, error) {
	names, err := s.repo.EffectivePermissions(ctx, principalID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}

func (s *Service) checkKnown(ctx context.Context, permissions []string) error {
	if len(permissions) == 0 {
		return nil
	}
	missing, err := s.catalog.Missing(ctx, permissions)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, strings.Join(missing, ", "))
	}
	return nil
}

func normalize(permissions []string) []string {
	seen := make(map[string]struct{}, len(permissions))
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
