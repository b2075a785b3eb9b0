package breakglass

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/domain/audit"
)

const (
	// DefaultTTL bounds the blast radius of an emergency credential
	// when the issuer does not specify a window.
	DefaultTTL = 15 * time.Minute
	// MaxTTL caps how long any grant may live regardless of the
	// requested window.
	MaxTTL = 4 * time.Hour
	// DefaultMaxIssuesPerHour limits how many grants one issuer can
	// mint within a rolling hour.
	DefaultMaxIssuesPerHour = 10

	// tokenBytes gives 128 bits of entropy per token.
	tokenBytes = 16
)

// Catalog is the slice of the permission catalog the service needs.
// Satisfied by permission.Service.
type Catalog interface {
	Missing(ctx context.Context, names []string) ([]string, error)
}

// Service owns the full lifecycle of break-glass grants: issuance,
// validation and consumption, listing, and manual revocation. Every
// issuance, use and revocation forces an audit entry synchronously;
// an audit write failure fails the operation.
type Service struct {
	repo     Repository
	catalog  Catalog
	recorder audit.Recorder
	logger   zerolog.Logger

	limiter     *issueRateLimit
	maxPerHour  int
	defaultTTL  time.Duration
	maxTTL      time.Duration
	now         func() time.Time
	generateKey func() (token, digest string, err error)
}

func NewService(repo Repository, catalog Catalog, recorder audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalog:     catalog,
		recorder:    recorder,
		logger:      logger,
		limiter:     newIssueRateLimit(),
		maxPerHour:  DefaultMaxIssuesPerHour,
		defaultTTL:  DefaultTTL,
		maxTTL:      MaxTTL,
		now:         time.Now,
		generateKey: generateToken,
	}
}

// MaxIssuesPerHour overrides the per-issuer issuance cap.
func (s *Service) MaxIssuesPerHour(n int) {
	if n > 0 {
		s.maxPerHour = n
	}
}

// IssueRequest describes a grant to mint.
type IssueRequest struct {
	PrincipalID   uuid.UUID
	Permission    string
	Scope         string
	Justification string
	TTL           time.Duration
	IssuedBy      uuid.UUID
	SourceIP      string
}

// Issue mints a single-use emergency grant. The raw token appears only
// in the returned IssuedGrant; issuance is audited independently of use
// so an unused grant remains visible to operators.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssuedGrant, error) {
	req.Justification = strings.TrimSpace(req.Justification)
	if req.Justification == "" {
		return nil, ErrInvalidJustification
	}

	req.Permission = strings.ToLower(strings.TrimSpace(req.Permission))
	missing, err := s.catalog.Missing(ctx, []string{req.Permission})
	if err != nil {
		return nil, fmt.Errorf("breakglass: check permission: %w", err)
	}
	if req.Permission == "" || len(missing) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPermission, req.Permission)
	}

	now := s.now()
	if !s.limiter.allow(req.IssuedBy, now, s.maxPerHour) {
		return nil, ErrRateLimited
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	token, digest, err := s.generateKey()
	if err != nil {
		return nil, fmt.Errorf("breakglass: generate token: %w", err)
	}

	g := &Grant{
		TokenDigest:   digest,
		PrincipalID:   req.PrincipalID,
		Permission:    req.Permission,
		Scope:         strings.TrimSpace(req.Scope),
		Justification: req.Justification,
		IssuedBy:      req.IssuedBy,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	issuer := req.IssuedBy
	entry := &audit.Entry{
		ActorID:      &issuer,
		Action:       audit.ActionBreakGlassIssue,
		ResourceType: "breakglass_grant",
		ResourceID:   g.ID.String(),
		SourceIP:     req.SourceIP,
		Metadata: map[string]any{
			"principal_id":  g.PrincipalID.String(),
			"permission":    g.Permission,
			"scope":         g.Scope,
			"justification": g.Justification,
			"expires_at":    g.ExpiresAt,
		},
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		// A grant whose issuance was never recorded must not stay
		// consumable: revoke the row before surfacing the error.
		if _, rerr := s.repo.Revoke(ctx, g.ID, now); rerr != nil {
			s.logger.Error().
				Err(rerr).
				Str("grant_id", g.ID.String()).
				Msg("break_glass_unaudited_grant_not_revoked")
		}
		return nil, err
	}

	s.logger.Warn().
		Str("type", "break_glass").
		Str("grant_id", g.ID.String()).
		Str("principal_id", g.PrincipalID.String()).
		Str("permission", g.Permission).
		Str("issued_by", g.IssuedBy.String()).
		Time("expires_at", g.ExpiresAt).
		Msg("break_glass_issued")

	return &IssuedGrant{Grant: *g, Token: token}, nil
}

// ValidateAndConsume checks a presented token against the requesting
// context and, on success, atomically flips the grant to used. Two
// concurrent calls racing on one token see exactly one success; the
// loser gets ErrAlreadyUsed. This and Revoke are the only paths that
// mutate the used flag.
func (s *Service) ValidateAndConsume(ctx context.Context, token string, principalID uuid.UUID, permission, scope, sourceIP string) (*Grant, error) {
	digest := digestToken(strings.TrimSpace(token))
	g, err := s.repo.GetByTokenDigest(ctx, digest)
	if err != nil {
		return nil, err
	}

	// Binding checks come before state checks: a token issued for
	// another principal or permission is rejected for that reason
	// regardless of whether it is also expired or spent.
	if g.PrincipalID != principalID {
		return nil, ErrPrincipalMismatch
	}
	if g.Permission != strings.ToLower(strings.TrimSpace(permission)) {
		return nil, ErrPermissionMismatch
	}
	if !g.MatchesScope(scope) {
		return nil, ErrScopeMismatch
	}

	now := s.now()
	if g.Expired(now) {
		return nil, ErrGrantExpired
	}
	if g.Used {
		return nil, ErrAlreadyUsed
	}

	consumed, err := s.repo.Consume(ctx, g.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.recordUse(ctx, consumed, sourceIP); err != nil {
		return nil, err
	}
	return consumed, nil
}

// ConsumeMatching finds an active grant bound to (principal, permission)
// whose scope covers the request and consumes it. This is the lookup
// the policy resolver performs when the role graph denies: the caller
// has no token in hand, the grant is matched by binding. Returns
// ErrGrantNotFound when no grant covers the request.
func (s *Service) ConsumeMatching(ctx context.Context, principalID uuid.UUID, permission, scope, sourceIP string) (*Grant, error) {
	now := s.now()
	candidates, err := s.repo.FindActive(ctx, principalID, strings.ToLower(strings.TrimSpace(permission)), now)
	if err != nil {
		return nil, err
	}

	for _, g := range candidates {
		if !g.MatchesScope(scope) {
			continue
		}
		consumed, err := s.repo.Consume(ctx, g.ID, now)
		if err != nil {
			// A racing request spent this candidate first; try the next.
			if IsDenialReason(err) {
				continue
			}
			return nil, err
		}
		if err := s.recordUse(ctx, consumed, sourceIP); err != nil {
			return nil, err
		}
		return consumed, nil
	}
	return nil, ErrGrantNotFound
}

// recordUse writes the mandatory breakglass.use entry. The entry
// references the grant ID, never the raw token, so nothing reusable
// leaks into the trail.
func (s *Service) recordUse(ctx context.Context, g *Grant, sourceIP string) error {
	principal := g.PrincipalID
	entry := &audit.Entry{
		ActorID:      &principal,
		Action:       audit.ActionBreakGlassUse,
		ResourceType: "breakglass_grant",
		ResourceID:   g.ID.String(),
		SourceIP:     sourceIP,
		Metadata: map[string]any{
			"permission":    g.Permission,
			"scope":         g.Scope,
			"justification": g.Justification,
			"issued_by":     g.IssuedBy.String(),
		},
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return err
	}

	s.logger.Warn().
		Str("type", "break_glass").
		Str("grant_id", g.ID.String()).
		Str("principal_id", g.PrincipalID.String()).
		Str("permission", g.Permission).
		Msg("break_glass_used")
	return nil
}

// ListActive returns unused, unexpired grants for administrative
// visibility, optionally restricted to one principal.
func (s *Service) ListActive(ctx context.Context, principalID *uuid.UUID) ([]*Grant, error) {
	return s.repo.ListActive(ctx, principalID, s.now())
}

// Expire revokes an unused grant before its natural expiry. A consumed
// grant cannot be revoked (ErrAlreadyUsed); a successfully revoked one
// is marked used so it can never authorize anything afterwards.
func (s *Service) Expire(ctx context.Context, grantID, actor uuid.UUID, sourceIP string) (*Grant, error) {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if g.Used {
		return nil, ErrAlreadyUsed
	}

	revoked, err := s.repo.Revoke(ctx, grantID, s.now())
	if err != nil {
		return nil, err
	}

	entry := &audit.Entry{
		ActorID:      &actor,
		Action:       audit.ActionBreakGlassRevoke,
		ResourceType: "breakglass_grant",
		ResourceID:   revoked.ID.String(),
		SourceIP:     sourceIP,
		Metadata: map[string]any{
			"principal_id":  revoked.PrincipalID.String(),
			"permission":    revoked.Permission,
			"justification": "revoked",
		},
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Warn().
		Str("type", "break_glass").
		Str("grant_id", revoked.ID.String()).
		Str("revoked_by", actor.String()).
		Msg("break_glass_revoked")
	return revoked, nil
}

// generateToken returns a fresh random token and its storage digest.
func generateToken() (string, string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token := hex.EncodeToString(buf)
	return token, digestToken(token), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
