package audit

import "context"

type Repository interface {
	// Insert appends the entry, assigning ID and RecordedAt server-side.
	Insert(ctx context.Context, e *Entry) error
	// Query returns matching entries newest-first plus the total match
	// count for pagination.
	Query(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
