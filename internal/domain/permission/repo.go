package permission

import "context"

type Repository interface {
	// Ensure registers every name that is not yet in the catalog and
	// returns the full records for all requested names. Existing names
	// are returned as-is; the operation is idempotent.
	Ensure(ctx context.Context, names []string) ([]*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
	// Known filters the given names down to those present in the catalog.
	Known(ctx context.Context, names []string) (map[string]bool, error)
}
