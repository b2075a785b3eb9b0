package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const entryCols = `id, recorded_at, actor_id, action, resource_type, resource_id,
	before_state, after_state, metadata, source_ip`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var resourceID, sourceIP *string
	err := row.Scan(
		&e.ID, &e.RecordedAt, &e.ActorID, &e.Action, &e.ResourceType, &resourceID,
		&e.Before, &e.After, &e.Metadata, &sourceIP,
	)
	if resourceID != nil {
		e.ResourceID = *resourceID
	}
	if sourceIP != nil {
		e.SourceIP = *sourceIP
	}
	return &e, err
}

func (r *RepoPG) Insert(ctx context.Context, e *Entry) error {
	// GREATEST against the current maximum keeps recorded_at
	// monotonically non-decreasing even across clock adjustments.
	const q = `
		INSERT INTO audit_entry (
			recorded_at, actor_id, action, resource_type, resource_id,
			before_state, after_state, metadata, source_ip
		)
		SELECT GREATEST(NOW(), COALESCE(MAX(recorded_at), NOW())),
			$1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, '')
		FROM audit_entry
		RETURNING id, recorded_at`

	return r.pool.QueryRow(ctx, q,
		e.ActorID, e.Action, e.ResourceType, e.ResourceID,
		e.Before, e.After, e.Metadata, e.SourceIP,
	).Scan(&e.ID, &e.RecordedAt)
}

func (r *RepoPG) Query(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if f.ResourceType != "" {
		where = append(where, fmt.Sprintf("resource_type = $%d", idx))
		args = append(args, f.ResourceType)
		idx++
	}
	if f.ResourceID != "" {
		where = append(where, fmt.Sprintf("resource_id = $%d", idx))
		args = append(args, f.ResourceID)
		idx++
	}
	if f.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, *f.ActorID)
		idx++
	}
	if f.ActionPrefix != "" {
		where = append(where, fmt.Sprintf("action LIKE $%d", idx))
		args = append(args, f.ActionPrefix+"%")
		idx++
	}
	if !f.Since.IsZero() {
		where = append(where, fmt.Sprintf("recorded_at >= $%d", idx))
		args = append(args, f.Since)
		idx++
	}
	if !f.Until.IsZero() {
		where = append(where, fmt.Sprintf("recorded_at <= $%d", idx))
		args = append(args, f.Until)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_entry %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_entry %s ORDER BY recorded_at DESC, id DESC LIMIT $%d OFFSET $%d",
		entryCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
