package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MaxQueryLimit bounds a single trail page. Requests asking for more
// are clamped, never rejected.
const MaxQueryLimit = 500

// Recorder is what the rest of the core depends on to persist events.
// Satisfied by *Service; tests supply fakes.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// Service is the append-only audit trail. Record failures are
// fail-closed: an unrecorded privileged action must not succeed
// silently, so errors always propagate to the caller.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends the entry and emits a structured log line alongside
// the durable row. If the insert fails the enclosing privileged
// operation must fail with it.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return fmt.Errorf("audit: action required")
	}
	if e.ResourceType == "" {
		return fmt.Errorf("audit: resource type required")
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Msg("audit record failed")
		return fmt.Errorf("audit: record %s: %w", e.Action, err)
	}

	evt := s.logger.Info()
	if e.ActorID != nil {
		evt = evt.Str("actor_id", e.ActorID.String())
	}
	evt.
		Str("type", "audit").
		Str("entry_id", e.ID.String()).
		Str("action", e.Action).
		Str("resource_type", e.ResourceType).
		Str("resource_id", e.ResourceID).
		Time("recorded_at", e.RecordedAt).
		Msg("audit_entry")

	return nil
}

// Query returns matching entries newest-first. take is clamped to
// [1, MaxQueryLimit]; skip below zero is treated as zero.
func (s *Service) Query(ctx context.Context, f Filter, take, skip int) ([]*Entry, int, error) {
	if take <= 0 {
		take = 50
	}
	if take > MaxQueryLimit {
		take = MaxQueryLimit
	}
	if skip < 0 {
		skip = 0
	}
	return s.repo.Query(ctx, f, take, skip)
}
