package permission

import (
	"context"
	"sort"
	"strings"
)

// Service manages the permission catalog. Registration is idempotent:
// callers declare the permissions they rely on at startup and unknown
// names fail fast at role-creation and grant-issuance time instead of
// silently always-denying.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Ensure registers the given permission names, creating any that are
// missing. Duplicate and empty names collapse; results come back sorted
// by name regardless of input order.
func (s *Service) Ensure(ctx context.Context, names ...string) ([]*Permission, error) {
	normalized := normalizeNames(names)
	if len(normalized) == 0 {
		return nil, nil
	}
	perms, err := s.repo.Ensure(ctx, normalized)
	if err != nil {
		return nil, err
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (s *Service) List(ctx context.Context) ([]*Permission, error) {
	return s.repo.List(ctx)
}

// Missing returns the subset of names absent from the catalog, sorted.
func (s *Service) Missing(ctx context.Context, names []string) ([]string, error) {
	normalized := normalizeNames(names)
	if len(normalized) == 0 {
		return nil, nil
	}
	known, err := s.repo.Known(ctx, normalized)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range normalized {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// normalizeNames trims, lowercases, drops empties and deduplicates,
// preserving a deterministic sorted order.
func normalizeNames(names []string) []string {
	unique := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		unique[name] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for name := range unique {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
