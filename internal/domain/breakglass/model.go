package breakglass

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Grant is a time-boxed, single-use emergency credential that authorizes
// one specific permission outside the normal role graph.
//
// Lifecycle: Issued(unused) -> Consumed(used) or Issued(unused) ->
// Expired. Expiry is derived from the clock at check time, never stored
// as a transition, so correctness does not depend on a timer firing.
// There is no way out of Consumed or Expired.
type Grant struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TokenDigest string     `db:"token_digest" json:"-"`
	PrincipalID uuid.UUID  `db:"principal_id" json:"principal_id"`
	Permission  string     `db:"permission" json:"permission"`
	// Scope optionally pins the grant to one resource. Empty scope acts
	// as a wildcard for the permission.
	Scope         string     `db:"scope" json:"scope,omitempty"`
	Justification string     `db:"justification" json:"justification"`
	IssuedBy      uuid.UUID  `db:"issued_by" json:"issued_by"`
	IssuedAt      time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	Used          bool       `db:"used" json:"used"`
	UsedAt        *time.Time `db:"used_at" json:"used_at,omitempty"`
	Revoked       bool       `db:"revoked" json:"revoked"`
}

// IssuedGrant carries the raw token alongside the grant. The token is
// only ever surfaced here, at issuance; the store keeps a digest and
// the audit trail records the grant ID, never the token itself.
type IssuedGrant struct {
	Grant
	Token string `json:"token"`
}

// Expired reports whether the grant has passed its expiry without
// being consumed.
func (g *Grant) Expired(now time.Time) bool {
	return !g.Used && now.After(g.ExpiresAt)
}

// Active reports whether the grant can still authorize a request.
func (g *Grant) Active(now time.Time) bool {
	return !g.Used && !g.Revoked && !now.After(g.ExpiresAt)
}

// MatchesScope reports whether the grant covers the requested resource
// scope. An unscoped grant covers any scope; a scoped grant covers only
// the exact resource it was issued for.
func (g *Grant) MatchesScope(scope string) bool {
	return g.Scope == "" || g.Scope == scope
}

var (
	// ErrGrantNotFound: no grant matches the presented token or lookup.
	ErrGrantNotFound = errors.New("breakglass: grant not found")
	// ErrGrantExpired: the grant passed its expiry before being used.
	ErrGrantExpired = errors.New("breakglass: grant expired")
	// ErrAlreadyUsed: the grant was consumed (or revoked) already. A
	// grant transitions unused -> used exactly once.
	ErrAlreadyUsed = errors.New("breakglass: grant already used")
	// ErrPrincipalMismatch: the grant was issued to a different principal.
	ErrPrincipalMismatch = errors.New("breakglass: grant issued to a different principal")
	// ErrPermissionMismatch: the grant covers a different permission.
	ErrPermissionMismatch = errors.New("breakglass: grant covers a different permission")
	// ErrScopeMismatch: the grant is pinned to a different resource scope.
	ErrScopeMismatch = errors.New("breakglass: grant pinned to a different scope")
	// ErrInvalidJustification: issuance requires a non-empty justification.
	ErrInvalidJustification = errors.New("breakglass: justification required")
	// ErrInvalidPermission: the permission is unknown to the catalog.
	ErrInvalidPermission = errors.New("breakglass: unknown permission")
	// ErrRateLimited: the issuer exceeded the issuance rate limit.
	ErrRateLimited = errors.New("breakglass: issuance rate limit exceeded")
)

// IsDenialReason reports whether the error is one of the validation
// failures that must collapse to a uniform Forbidden signal externally,
// so a denied caller cannot probe which check failed. The audit trail
// still records the precise reason for operators.
func IsDenialReason(err error) bool {
	return errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrGrantExpired) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrPrincipalMismatch) ||
		errors.Is(err, ErrPermissionMismatch) ||
		errors.Is(err, ErrScopeMismatch)
}
