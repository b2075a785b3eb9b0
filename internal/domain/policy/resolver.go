package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/domain/audit"
	"github.com/medguard/medguard/internal/domain/breakglass"
)

// Via states which path allowed a request.
const (
	ViaRole       = "role"
	ViaBreakGlass = "breakglass"
)

// Decision is the resolver's answer for one request. When the request
// was allowed by spending an emergency grant, GrantID identifies it so
// callers can correlate with the audit trail.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Via     string     `json:"via,omitempty"`
	GrantID *uuid.UUID `json:"grant_id,omitempty"`
}

// PermissionSource yields a principal's effective permission set.
// Satisfied by role.Service.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, principalID uuid.UUID) (map[string]struct{}, error)
}

// GrantConsumer spends a matching break-glass grant, if one exists.
// Satisfied by breakglass.Service.
type GrantConsumer interface {
	ConsumeMatching(ctx context.Context, principalID uuid.UUID, permission, scope, sourceIP string) (*breakglass.Grant, error)
}

// Resolver decides whether a principal may perform an action. The
// normal path is the role graph; only when that denies does the
// resolver look for a break-glass grant, so grants are never consumed
// by requests that would have succeeded anyway.
type Resolver struct {
	perms    PermissionSource
	grants   GrantConsumer
	recorder audit.Recorder
	logger   zerolog.Logger

	// auditDenials writes an audit entry for every denied decision.
	// Off by default: on a busy system denials are high-volume noise,
	// and the trail stays focused on privileged activity.
	auditDenials bool
}

func NewResolver(perms PermissionSource, grants GrantConsumer, recorder audit.Recorder, logger zerolog.Logger) *Resolver {
	return &Resolver{
		perms:    perms,
		grants:   grants,
		recorder: recorder,
		logger:   logger,
	}
}

// AuditDenials toggles audit entries for denied decisions.
func (r *Resolver) AuditDenials(on bool) { r.auditDenials = on }

// Authorize resolves one access request. A denied decision is not an
// error; the error return is reserved for infrastructure failures,
// which deny by default.
func (r *Resolver) Authorize(ctx context.Context, principalID uuid.UUID, permission, scope, sourceIP string) (Decision, error) {
	effective, err := r.perms.EffectivePermissions(ctx, principalID)
	if err != nil {
		return Decision{}, err
	}
	if _, ok := effective[permission]; ok {
		return Decision{Allowed: true, Via: ViaRole}, nil
	}

	grant, err := r.grants.ConsumeMatching(ctx, principalID, permission, scope, sourceIP)
	if err == nil {
		id := grant.ID
		return Decision{Allowed: true, Via: ViaBreakGlass, GrantID: &id}, nil
	}
	if !breakglass.IsDenialReason(err) {
		return Decision{}, err
	}

	if err := r.recordDenial(ctx, principalID, permission, scope, sourceIP); err != nil {
		return Decision{}, err
	}
	r.logger.Debug().
		Str("principal_id", principalID.String()).
		Str("permission", permission).
		Str("scope", scope).
		Msg("authorization_denied")
	return Decision{Allowed: false}, nil
}

func (r *Resolver) recordDenial(ctx context.Context, principalID uuid.UUID, permission, scope, sourceIP string) error {
	if !r.auditDenials {
		return nil
	}
	principal := principalID
	return r.recorder.Record(ctx, &audit.Entry{
		ActorID:      &principal,
		Action:       audit.ActionAuthorizeDenied,
		ResourceType: "permission",
		ResourceID:   permission,
		SourceIP:     sourceIP,
		Metadata: map[string]any{
			"scope": scope,
		},
	})
}
