package role

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a named, reusable bundle of permissions assignable to principals.
type Role struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

var (
	// ErrNotFound indicates the requested role does not exist.
	ErrNotFound = errors.New("role: not found")
	// ErrDuplicateRole indicates a role with the same name already exists.
	ErrDuplicateRole = errors.New("role: name already exists")
	// ErrUnknownPermission indicates a referenced permission is absent
	// from the catalog. The role graph validates, it never auto-registers.
	ErrUnknownPermission = errors.New("role: unknown permission")
)
