package breakglass

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, g *Grant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Grant, error)
	GetByTokenDigest(ctx context.Context, digest string) (*Grant, error)

	// Consume flips used=false to used=true as a single conditional
	// update. Exactly one of any number of racing callers succeeds; the
	// rest get ErrAlreadyUsed. This is the only mutation path for the
	// used flag besides Revoke.
	Consume(ctx context.Context, id uuid.UUID, usedAt time.Time) (*Grant, error)

	// Revoke marks an unused grant used with the revoked flag set, so a
	// manually expired credential can never authorize anything later.
	// Same conditional-update contract as Consume.
	Revoke(ctx context.Context, id uuid.UUID, usedAt time.Time) (*Grant, error)

	// ListActive returns unused, unrevoked, unexpired grants, newest
	// first, optionally restricted to one principal.
	ListActive(ctx context.Context, principalID *uuid.UUID, now time.Time) ([]*Grant, error)

	// FindActive returns active grants matching (principal, permission),
	// any scope, newest first. The caller filters on scope semantics.
	FindActive(ctx context.Context, principalID uuid.UUID, permission string, now time.Time) ([]*Grant, error)
}
