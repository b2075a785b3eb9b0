package role

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRoleRepo struct {
	mu        sync.Mutex
	roles     map[uuid.UUID]*Role
	rolePerms map[uuid.UUID]map[string]struct{}
	assigned  map[uuid.UUID]map[uuid.UUID]struct{} // principal -> roles
	direct    map[uuid.UUID]map[string]struct{}    // principal -> permissions
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{
		roles:     make(map[uuid.UUID]*Role),
		rolePerms: make(map[uuid.UUID]map[string]struct{}),
		assigned:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		direct:    make(map[uuid.UUID]map[string]struct{}),
	}
}

func (m *mockRoleRepo) Create(_ context.Context, r *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == r.Name {
			return ErrDuplicateRole
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.roles[r.ID] = r
	m.rolePerms[r.ID] = make(map[string]struct{})
	return nil
}

func (m *mockRoleRepo) GetByID(_ context.Context, id uuid.UUID) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	out.Permissions = nil
	for p := range m.rolePerms[id] {
		out.Permissions = append(out.Permissions, p)
	}
	return &out, nil
}

func (m *mockRoleRepo) List(_ context.Context) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Role
	for _, r := range m.roles {
		copy := *r
		out = append(out, &copy)
	}
	return out, nil
}

func (m *mockRoleRepo) AddPermissions(_ context.Context, roleID uuid.UUID, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rolePerms[roleID]
	if !ok {
		return ErrNotFound
	}
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return nil
}

func (m *mockRoleRepo) RemovePermissions(_ context.Context, roleID uuid.UUID, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rolePerms[roleID]
	if !ok {
		return ErrNotFound
	}
	for _, p := range permissions {
		delete(set, p)
	}
	return nil
}

func (m *mockRoleRepo) AssignToPrincipal(_ context.Context, principalID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assigned[principalID]; !ok {
		m.assigned[principalID] = make(map[uuid.UUID]struct{})
	}
	m.assigned[principalID][roleID] = struct{}{}
	return nil
}

func (m *mockRoleRepo) RemoveFromPrincipal(_ context.Context, principalID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assigned[principalID], roleID)
	return nil
}

func (m *mockRoleRepo) PrincipalRoles(_ context.Context, principalID uuid.UUID) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Role
	for roleID := range m.assigned[principalID] {
		if r, ok := m.roles[roleID]; ok {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *mockRoleRepo) GrantDirect(_ context.Context, principalID uuid.UUID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.direct[principalID]; !ok {
		m.direct[principalID] = make(map[string]struct{})
	}
	m.direct[principalID][permission] = struct{}{}
	return nil
}

func (m *mockRoleRepo) RevokeDirect(_ context.Context, principalID uuid.UUID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.direct[principalID], permission)
	return nil
}

func (m *mockRoleRepo) EffectivePermissions(_ context.Context, principalID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{})
	for roleID := range m.assigned[principalID] {
		for p := range m.rolePerms[roleID] {
			set[p] = struct{}{}
		}
	}
	for p := range m.direct[principalID] {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out, nil
}

// mockCatalog knows a fixed set of permission names.
type mockCatalog struct {
	known map[string]struct{}
}

func newMockCatalog(names ...string) *mockCatalog {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	return &mockCatalog{known: known}
}

func (m *mockCatalog) Missing(_ context.Context, names []string) ([]string, error) {
	var missing []string
	for _, n := range names {
		if _, ok := m.known[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

func newTestService(catalogNames ...string) (*Service, *mockRoleRepo) {
	repo := newMockRoleRepo()
	return NewService(repo, newMockCatalog(catalogNames...)), repo
}

func TestCreateRole(t *testing.T) {
	svc, _ := newTestService("beds.read", "labs.read")
	ctx := context.Background()

	r, err := svc.CreateRole(ctx, "NURSE", "ward nursing staff", []string{"beds.read", "labs.read"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Error("expected role id to be assigned")
	}
	if len(r.Permissions) != 2 {
		t.Errorf("expected 2 permissions, got %d", len(r.Permissions))
	}
}

func TestCreateRole_DuplicateName(t *testing.T) {
	svc, _ := newTestService("beds.read")
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "NURSE", "", []string{"beds.read"}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	_, err := svc.CreateRole(ctx, "NURSE", "", nil)
	if !errors.Is(err, ErrDuplicateRole) {
		t.Fatalf("expected ErrDuplicateRole, got %v", err)
	}
}

func TestCreateRole_UnknownPermission(t *testing.T) {
	svc, _ := newTestService("beds.read")

	_, err := svc.CreateRole(context.Background(), "NURSE", "", []string{"beds.read", "billing.update"})
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestAssignPermissions_SetSemantics(t *testing.T) {
	svc, _ := newTestService("beds.read", "labs.read")
	ctx := context.Background()

	r, err := svc.CreateRole(ctx, "NURSE", "", []string{"beds.read"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	// Assigning the same permission twice must not duplicate it.
	r, err = svc.AssignPermissions(ctx, r.ID, []string{"beds.read", "labs.read", "labs.read"})
	if err != nil {
		t.Fatalf("assign permissions: %v", err)
	}
	if len(r.Permissions) != 2 {
		t.Fatalf("expected 2 permissions after idempotent assign, got %d: %v",
			len(r.Permissions), r.Permissions)
	}
}

func TestAssignPermissions_UnknownRole(t *testing.T) {
	svc, _ := newTestService("beds.read")

	_, err := svc.AssignPermissions(context.Background(), uuid.New(), []string{"beds.read"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEffectivePermissions_Union(t *testing.T) {
	svc, _ := newTestService("beds.read", "labs.read", "meds.dispense")
	ctx := context.Background()

	nurse, err := svc.CreateRole(ctx, "NURSE", "", []string{"beds.read"})
	if err != nil {
		t.Fatalf("create nurse: %v", err)
	}
	pharmacist, err := svc.CreateRole(ctx, "PHARMACIST", "", []string{"meds.dispense"})
	if err != nil {
		t.Fatalf("create pharmacist: %v", err)
	}

	principal := uuid.New()
	if err := svc.AssignRole(ctx, principal, nurse.ID); err != nil {
		t.Fatalf("assign nurse: %v", err)
	}
	if err := svc.AssignRole(ctx, principal, pharmacist.ID); err != nil {
		t.Fatalf("assign pharmacist: %v", err)
	}
	if err := svc.GrantDirect(ctx, principal, "labs.read"); err != nil {
		t.Fatalf("grant direct: %v", err)
	}

	perms, err := svc.EffectivePermissions(ctx, principal)
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	for _, want := range []string{"beds.read", "meds.dispense", "labs.read"} {
		if _, ok := perms[want]; !ok {
			t.Errorf("expected %q in effective permissions", want)
		}
	}
	if len(perms) != 3 {
		t.Errorf("expected 3 permissions, got %d", len(perms))
	}
}

func TestEffectivePermissions_RevocationImmediate(t *testing.T) {
	svc, _ := newTestService("beds.read")
	ctx := context.Background()

	nurse, err := svc.CreateRole(ctx, "NURSE", "", []string{"beds.read"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	principal := uuid.New()
	if err := svc.AssignRole(ctx, principal, nurse.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	perms, err := svc.EffectivePermissions(ctx, principal)
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if _, ok := perms["beds.read"]; !ok {
		t.Fatal("expected beds.read before revocation")
	}

	if err := svc.RemoveRole(ctx, principal, nurse.ID); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	perms, err = svc.EffectivePermissions(ctx, principal)
	if err != nil {
		t.Fatalf("effective permissions after revocation: %v", err)
	}
	if _, ok := perms["beds.read"]; ok {
		t.Error("revoked role still grants beds.read; resolution must not cache")
	}
}

func TestGrantDirect_UnknownPermission(t *testing.T) {
	svc, _ := newTestService("beds.read")

	err := svc.GrantDirect(context.Background(), uuid.New(), "billing.update")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestRemovePermissions_DoesNotAffectOtherRoles(t *testing.T) {
	svc, _ := newTestService("beds.read")
	ctx := context.Background()

	nurse, _ := svc.CreateRole(ctx, "NURSE", "", []string{"beds.read"})
	charge, _ := svc.CreateRole(ctx, "CHARGE_NURSE", "", []string{"beds.read"})

	if _, err := svc.RemovePermissions(ctx, nurse.ID, []string{"beds.read"}); err != nil {
		t.Fatalf("remove permissions: %v", err)
	}

	got, err := svc.GetRole(ctx, charge.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(got.Permissions) != 1 || got.Permissions[0] != "beds.read" {
		t.Errorf("removing a permission from one role must not touch another: %v", got.Permissions)
	}
}
